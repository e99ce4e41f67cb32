package z3ds

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// DefaultFrameSize is used when the caller passes 0 for maxFrameSize.
const DefaultFrameSize = 256 * 1024

// ContentFrameSize is the size recommended by spec §4.G for content-
// container payloads.
const ContentFrameSize = 32 * 1024 * 1024

// WriteOptions configures an open-for-write z3ds stream.
type WriteOptions struct {
	// MaxFrameSize is the largest number of uncompressed bytes one zstd
	// frame holds. 0 selects DefaultFrameSize.
	MaxFrameSize uint32
	// UnderlyingMagic is recorded in the header so PeekUnderlyingMagic can
	// later report what kind of file this wraps.
	UnderlyingMagic [4]byte
	// Level selects the zstd compression level; zero uses the library
	// default.
	Level zstd.EncoderLevel
}

// Writer implements the write path of spec §4.G: header reservation,
// metadata emission, frame-by-frame zstd compression, and a trailing
// seek-table footer rewritten alongside the header on Close.
type Writer struct {
	w    io.WriteSeeker
	opts WriteOptions

	metadataSize uint32
	frames       []frameRecord

	curFrameUncompressed uint32
	totalUncompressed    uint64
	totalCompressed      uint64

	started bool
	closed  bool
}

// NewWriter opens w for writing, reserving header space and emitting
// metadata immediately (spec §4.G's "first Write triggers" steps 1-2 happen
// eagerly here rather than lazily, since Go callers expect NewWriter to
// leave the stream ready for sequential Write calls).
func NewWriter(w io.WriteSeeker, opts WriteOptions) (*Writer, error) {
	const op = "z3ds.NewWriter"
	if opts.MaxFrameSize == 0 {
		opts.MaxFrameSize = DefaultFrameSize
	}
	if _, err := w.Write(make([]byte, HeaderSize)); err != nil {
		return nil, coreerr.New(coreerr.KindIOError, op, err)
	}
	meta := encodeMetadataItems(builtinMetadata("zstd", time.Now(), opts.MaxFrameSize))
	if _, err := w.Write(meta); err != nil {
		return nil, coreerr.New(coreerr.KindIOError, op, err)
	}
	zw := &Writer{w: w, opts: opts, metadataSize: uint32(len(meta)), started: true}
	return zw, nil
}

// Write compresses p as one or more independent zstd frames. A frame never
// crosses a multiple of MaxFrameSize in the uncompressed stream, and each
// call starts a new frame: data from separate calls is never merged into
// one frame.
func (zw *Writer) Write(p []byte) (int, error) {
	const op = "z3ds.Writer.Write"
	if zw.closed {
		return 0, coreerr.New(coreerr.KindInvalidState, op, fmt.Errorf("write after close"))
	}
	written := 0
	for len(p) > 0 {
		room := int(zw.opts.MaxFrameSize) - int(zw.curFrameUncompressed)
		if room <= 0 {
			if err := zw.flushFrame(); err != nil {
				return written, err
			}
			room = int(zw.opts.MaxFrameSize)
		}
		n := len(p)
		if n > room {
			n = room
		}
		if err := zw.compressChunk(p[:n]); err != nil {
			return written, err
		}
		zw.curFrameUncompressed += uint32(n)
		zw.totalUncompressed += uint64(n)
		written += n
		p = p[n:]
	}
	return written, nil
}

// compressChunk independently compresses a single chunk as one complete
// zstd frame and appends it to the underlying writer, recording its frame
// record. Frames are kept whole (rather than streamed across the
// MaxFrameSize boundary) so each is independently decodable for random
// access, matching the seekable format's per-frame granularity.
func (zw *Writer) compressChunk(chunk []byte) error {
	const op = "z3ds.Writer.compressChunk"
	var levelOpt []zstd.EOption
	if zw.opts.Level != 0 {
		levelOpt = append(levelOpt, zstd.WithEncoderLevel(zw.opts.Level))
	}
	enc, err := zstd.NewWriter(nil, levelOpt...)
	if err != nil {
		return coreerr.New(coreerr.KindIOError, op, err)
	}
	compressed := enc.EncodeAll(chunk, nil)
	if err := enc.Close(); err != nil {
		return coreerr.New(coreerr.KindIOError, op, err)
	}
	if _, err := zw.w.Write(compressed); err != nil {
		return coreerr.New(coreerr.KindIOError, op, err)
	}
	zw.frames = append(zw.frames, frameRecord{
		CompressedOffset:   zw.totalCompressed,
		CompressedSize:     uint32(len(compressed)),
		UncompressedOffset: zw.totalUncompressed,
		UncompressedSize:   uint32(len(chunk)),
	})
	zw.totalCompressed += uint64(len(compressed))
	return nil
}

// flushFrame is retained for symmetry with the frame-rollover language of
// spec §4.G; with per-chunk independent frames (see compressChunk) there is
// no partially-open encoder state to flush, so this is a no-op placeholder
// hook for callers that want an explicit frame boundary mid-Write.
func (zw *Writer) flushFrame() error {
	zw.curFrameUncompressed = 0
	return nil
}

// Close finalizes the stream: emits the seek-table footer, then rewrites
// the reserved header with the now-known compressed/uncompressed sizes.
func (zw *Writer) Close() error {
	const op = "z3ds.Writer.Close"
	if zw.closed {
		return nil
	}
	zw.closed = true

	footer := encodeFooter(zw.frames)
	if _, err := zw.w.Write(footer); err != nil {
		return coreerr.New(coreerr.KindIOError, op, err)
	}

	h := header{
		UnderlyingMagic:  zw.opts.UnderlyingMagic,
		Version:          formatVersion,
		HeaderSize:       HeaderSize,
		MetadataSize:     zw.metadataSize,
		CompressedSize:   zw.totalCompressed,
		UncompressedSize: zw.totalUncompressed,
	}
	if _, err := zw.w.Seek(0, io.SeekStart); err != nil {
		return coreerr.New(coreerr.KindIOError, op, err)
	}
	if _, err := zw.w.Write(h.encode()); err != nil {
		return coreerr.New(coreerr.KindIOError, op, err)
	}
	return nil
}
