// Package z3ds implements the seekable zstd-compressed container format:
// a fixed 0x20-byte header, a metadata item list, and a stream of zstd
// frames tracked by an explicit frame index. Grounded on
// original_source/common/zstd_compression.cpp's Z3DSReadIOFile /
// Z3DSWriteIOFile, which perform the same bookkeeping around
// ZSTD_seekable_*; this module does the equivalent bookkeeping on top of
// github.com/klauspost/compress/zstd's stock streaming API, since that
// library ships no built-in seekable format.
package z3ds

import (
	"encoding/binary"
	"fmt"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// HeaderSize is the fixed on-disk header length.
const HeaderSize = 0x20

var magic = [4]byte{'Z', '3', 'D', 'S'}

const formatVersion = 1

// header is the raw 0x20-byte preamble of a z3ds file.
type header struct {
	UnderlyingMagic  [4]byte
	Version          uint8
	HeaderSize       uint16
	MetadataSize     uint32
	CompressedSize   uint64
	UncompressedSize uint64
}

func (h header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], magic[:])
	copy(buf[4:8], h.UnderlyingMagic[:])
	buf[8] = h.Version
	buf[9] = 0 // reserved
	binary.LittleEndian.PutUint16(buf[10:12], h.HeaderSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.MetadataSize)
	binary.LittleEndian.PutUint64(buf[16:24], h.CompressedSize)
	binary.LittleEndian.PutUint64(buf[24:32], h.UncompressedSize)
	return buf[:HeaderSize]
}

func decodeHeader(buf []byte) (header, error) {
	const op = "z3ds.decodeHeader"
	if len(buf) < HeaderSize {
		return header{}, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated header"))
	}
	if string(buf[0:4]) != string(magic[:]) {
		return header{}, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("bad magic"))
	}
	var h header
	copy(h.UnderlyingMagic[:], buf[4:8])
	h.Version = buf[8]
	if h.Version != formatVersion {
		return header{}, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("unsupported version %d", h.Version))
	}
	h.HeaderSize = binary.LittleEndian.Uint16(buf[10:12])
	h.MetadataSize = binary.LittleEndian.Uint32(buf[12:16])
	h.CompressedSize = binary.LittleEndian.Uint64(buf[16:24])
	h.UncompressedSize = binary.LittleEndian.Uint64(buf[24:32])
	return h, nil
}

// PeekUnderlyingMagic reads the first HeaderSize bytes of raw and, if the
// z3ds magic and version match, returns the wrapped file's true magic. This
// lets the installer detect compressed inputs transparently without a full
// open.
func PeekUnderlyingMagic(raw []byte) ([4]byte, bool) {
	h, err := decodeHeader(raw)
	if err != nil {
		return [4]byte{}, false
	}
	return h.UnderlyingMagic, true
}
