package z3ds

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// Reader implements the read path of spec §4.G: header parse, metadata
// parse, and random access into the zstd-compressed payload via a frame
// index rebuilt from the trailing seek-table footer. A mutex serializes
// ReadAt/Read/Seek because the underlying zstd decoder is not safe for
// concurrent use.
type Reader struct {
	mu sync.Mutex

	r    io.ReaderAt
	size int64

	hdr          header
	Metadata     []MetadataItem
	payloadStart int64
	frames       []frameRecord

	cursor int64
}

// NewReader opens r (of the given total size) for reading.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	const op = "z3ds.NewReader"
	hdrBuf := make([]byte, HeaderSize)
	if _, err := r.ReadAt(hdrBuf, 0); err != nil {
		return nil, coreerr.New(coreerr.KindIOError, op, err)
	}
	h, err := decodeHeader(hdrBuf)
	if err != nil {
		return nil, err
	}

	metaBuf := make([]byte, h.MetadataSize)
	if h.MetadataSize > 0 {
		if _, err := r.ReadAt(metaBuf, int64(h.HeaderSize)); err != nil {
			return nil, coreerr.New(coreerr.KindIOError, op, err)
		}
	}
	items, err := decodeMetadataItems(metaBuf)
	if err != nil {
		return nil, err
	}

	payloadStart := int64(h.HeaderSize) + int64(h.MetadataSize)
	payloadEnd := payloadStart + int64(h.CompressedSize)
	if payloadEnd > size {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("declared compressed size exceeds file size"))
	}
	footerBuf := make([]byte, size-payloadEnd)
	if len(footerBuf) > 0 {
		if _, err := r.ReadAt(footerBuf, payloadEnd); err != nil {
			return nil, coreerr.New(coreerr.KindIOError, op, err)
		}
	}
	frames, err := decodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}

	return &Reader{
		r:            r,
		size:         size,
		hdr:          h,
		Metadata:     items,
		payloadStart: payloadStart,
		frames:       frames,
	}, nil
}

// UncompressedSize returns the total decompressed length of the stream.
func (z *Reader) UncompressedSize() uint64 { return z.hdr.UncompressedSize }

// ReadAt decompresses and copies the bytes covering [off, off+len(p)) from
// the decompressed stream, matching spec §4.G's "read(buf, offset) calls
// the library's decompress-at".
func (z *Reader) ReadAt(p []byte, off int64) (int, error) {
	const op = "z3ds.Reader.ReadAt"
	if off < 0 {
		return 0, coreerr.New(coreerr.KindInvalidArgument, op, fmt.Errorf("negative offset"))
	}
	z.mu.Lock()
	defer z.mu.Unlock()

	total := 0
	for total < len(p) {
		pos := off + int64(total)
		if uint64(pos) >= z.hdr.UncompressedSize {
			if total == 0 {
				return 0, io.EOF
			}
			return total, io.EOF
		}
		fr, ok := frameAt(z.frames, uint64(pos))
		if !ok {
			return total, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("no frame covers offset %d", pos))
		}
		chunk, err := z.decodeFrame(fr)
		if err != nil {
			return total, err
		}
		start := uint64(pos) - fr.UncompressedOffset
		n := copy(p[total:], chunk[start:])
		total += n
	}
	return total, nil
}

func (z *Reader) decodeFrame(fr frameRecord) ([]byte, error) {
	const op = "z3ds.Reader.decodeFrame"
	compressed := make([]byte, fr.CompressedSize)
	if _, err := z.r.ReadAt(compressed, z.payloadStart+int64(fr.CompressedOffset)); err != nil {
		return nil, coreerr.New(coreerr.KindIOError, op, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, coreerr.New(coreerr.KindIOError, op, err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, make([]byte, 0, fr.UncompressedSize))
	if err != nil {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, err)
	}
	return out, nil
}

// Read advances the reader's own position cursor, matching spec §4.G's
// "read without offset advances the cursor".
func (z *Reader) Read(p []byte) (int, error) {
	n, err := z.ReadAt(p, z.cursor)
	z.cursor += int64(n)
	return n, err
}

// Seek implements {set, cur, end} positioning; a resulting negative
// position is rejected.
func (z *Reader) Seek(offset int64, whence int) (int64, error) {
	const op = "z3ds.Reader.Seek"
	z.mu.Lock()
	defer z.mu.Unlock()

	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = z.cursor + offset
	case io.SeekEnd:
		next = int64(z.hdr.UncompressedSize) + offset
	default:
		return 0, coreerr.New(coreerr.KindInvalidArgument, op, fmt.Errorf("bad whence %d", whence))
	}
	if next < 0 {
		return 0, coreerr.New(coreerr.KindInvalidArgument, op, fmt.Errorf("negative resulting position"))
	}
	z.cursor = next
	return next, nil
}
