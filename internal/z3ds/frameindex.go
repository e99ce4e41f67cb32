package z3ds

import (
	"encoding/binary"
	"fmt"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// frameRecord describes one independently-decodable zstd frame within the
// compressed payload.
type frameRecord struct {
	CompressedOffset   uint64 // offset from the start of the compressed payload
	CompressedSize     uint32
	UncompressedOffset uint64 // offset from the start of the decompressed stream
	UncompressedSize   uint32
}

var footerMagic = [4]byte{'Z', '3', 'S', 'K'}

// encodeFooter serializes the frame index as a trailing seek-table footer,
// mirroring the real zstd seekable format's end-of-file seek table (frame
// count, per-frame {compressed-size, uncompressed-size} pairs, magic).
func encodeFooter(frames []frameRecord) []byte {
	buf := make([]byte, 4+len(frames)*8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(frames)))
	off := 4
	for _, f := range frames {
		binary.LittleEndian.PutUint32(buf[off:off+4], f.CompressedSize)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], f.UncompressedSize)
		off += 8
	}
	buf = append(buf, footerMagic[:]...)
	return buf
}

// decodeFooter parses a trailing seek-table footer and rebuilds the
// in-memory frame index with cumulative compressed/uncompressed offsets.
func decodeFooter(buf []byte) ([]frameRecord, error) {
	const op = "z3ds.decodeFooter"
	if len(buf) < 8 {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated footer"))
	}
	if string(buf[len(buf)-4:]) != string(footerMagic[:]) {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("bad footer magic"))
	}
	body := buf[:len(buf)-4]
	count := binary.LittleEndian.Uint32(body[0:4])
	body = body[4:]
	if len(body) < int(count)*8 {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated footer entries"))
	}
	frames := make([]frameRecord, count)
	var compOff, uncompOff uint64
	for i := range frames {
		off := i * 8
		compSize := binary.LittleEndian.Uint32(body[off : off+4])
		uncompSize := binary.LittleEndian.Uint32(body[off+4 : off+8])
		frames[i] = frameRecord{
			CompressedOffset:   compOff,
			CompressedSize:     compSize,
			UncompressedOffset: uncompOff,
			UncompressedSize:   uncompSize,
		}
		compOff += uint64(compSize)
		uncompOff += uint64(uncompSize)
	}
	return frames, nil
}

// footerSize returns the on-disk size of the footer for a given frame count.
func footerSize(frameCount int) int64 { return int64(4 + frameCount*8 + 4) }

// frameAt returns the frame covering uncompressed offset pos, if any.
func frameAt(frames []frameRecord, pos uint64) (frameRecord, bool) {
	for _, f := range frames {
		if pos >= f.UncompressedOffset && pos < f.UncompressedOffset+uint64(f.UncompressedSize) {
			return f, true
		}
	}
	return frameRecord{}, false
}
