// Package ncch implements the content-container crypto sink (§4.I): a
// streaming Writer that buffers the leading NCCH header, derives the
// primary/secondary keys and per-section counters, decrypts (or, run in
// reverse, encrypts) the exheader/exefs/romfs regions in place as bytes
// stream through, and passes everything else unchanged. Grounded 1:1 on
// original_source/core/hle/service/am/am.cpp's NCCHCryptoFile::Write.
package ncch

import (
	"encoding/binary"
	"fmt"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// HeaderSize is the fixed NCCH header length.
const HeaderSize = 0x200

// ExeFSHeaderSize is the fixed exefs header length.
const ExeFSHeaderSize = 0x200

// ExHeaderSize is the fixed extended-header length.
const ExHeaderSize = 0x400

var magic = [4]byte{'N', 'C', 'C', 'H'}

// header holds the NCCH header fields this sink needs. Unknown/unused
// fields from the real 0x200-byte layout are preserved verbatim in Raw so
// re-serialization (with the no_crypto bit forced to 1, matching the
// original's write-back) is exact.
type header struct {
	Raw [HeaderSize]byte

	Signature        [16]byte // first 16 bytes of the RSA signature field, used as keyY_primary
	PartitionID      [8]byte
	ProgramID        uint64
	Version          uint16
	NoCrypto         bool
	FixedKey         bool
	SeedCrypto       bool
	SecondaryKeySlot uint8 // 2-bit field: 0, 1, 10(=2), 11(=3) decimal per spec, encoded values below

	ExtHeaderSize uint32
	ExeFSOffset   uint32
	ExeFSSize     uint32
	RomFSOffset   uint32
	RomFSSize     uint32
}

// Byte offsets within the 0x200-byte NCCH header that this sink reads,
// matching Loader::NCCH_Header.
const (
	offSignature     = 0x000
	offMagic         = 0x100
	offPartitionID   = 0x108
	offProgramID     = 0x118
	offExtHeaderSize = 0x180
	offFlags         = 0x188 // 8-byte flag block
	offPlainRegionOff = 0x190
	offExeFSOffset   = 0x1A0
	offExeFSSize     = 0x1A4
	offRomFSOffset   = 0x1B0
	offRomFSSize     = 0x1B4
	offVersion       = 0x112 // u16_le, drives the CTR-derivation switch in §4.I
)

// flags byte indices within the 8-byte flag block at offFlags.
const (
	flagSecondaryKeySlot = 3 // secondary key slot selector: 0, 1, 10, 11
	flagContentPlatform  = 4
	flagContentType      = 5
	flagContentUnitSize  = 6
	flagBitmasks         = 7
)

// bitmask bits within flags[7], matching NCCH_Header::Flags bitfields.
const (
	bitFixedKey    = 1 << 0
	bitNoCrypto    = 1 << 2
	bitSeedCrypto  = 1 << 5
)

func parseHeader(buf []byte) (header, error) {
	const op = "ncch.parseHeader"
	if len(buf) != HeaderSize {
		return header{}, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("bad header size %d", len(buf)))
	}
	var h header
	copy(h.Raw[:], buf)
	copy(h.Signature[:], buf[offSignature:offSignature+16])
	copy(h.PartitionID[:], buf[offPartitionID:offPartitionID+8])
	h.ProgramID = binary.LittleEndian.Uint64(buf[offProgramID : offProgramID+8])
	h.ExtHeaderSize = binary.LittleEndian.Uint32(buf[offExtHeaderSize : offExtHeaderSize+4])
	h.ExeFSOffset = binary.LittleEndian.Uint32(buf[offExeFSOffset : offExeFSOffset+4])
	h.ExeFSSize = binary.LittleEndian.Uint32(buf[offExeFSSize : offExeFSSize+4])
	h.RomFSOffset = binary.LittleEndian.Uint32(buf[offRomFSOffset : offRomFSOffset+4])
	h.RomFSSize = binary.LittleEndian.Uint32(buf[offRomFSSize : offRomFSSize+4])

	h.Version = binary.LittleEndian.Uint16(buf[offVersion : offVersion+2])

	flagBlock := buf[offFlags : offFlags+8]
	bitmask := flagBlock[flagBitmasks]
	h.NoCrypto = bitmask&bitNoCrypto != 0
	h.FixedKey = bitmask&bitFixedKey != 0
	h.SeedCrypto = bitmask&bitSeedCrypto != 0

	slot, err := secondaryKeySlotFromSelector(flagBlock[flagSecondaryKeySlot])
	if err != nil {
		return header{}, coreerr.New(coreerr.KindInvalidFormat, op, err)
	}
	h.SecondaryKeySlot = slot

	return h, nil
}

// secondaryKeySlotFromSelector maps the raw flags[3] selector byte (values
// 0, 1, 10, 11, matching HW::AES::KeySlotID's Secure1..Secure4 ordering) to
// the normalized 0-3 index secondaryKeySlotNames expects.
func secondaryKeySlotFromSelector(b byte) (uint8, error) {
	switch b {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	case 10:
		return 2, nil
	case 11:
		return 3, nil
	default:
		return 0, fmt.Errorf("unknown secondary key slot selector %d", b)
	}
}

// isNCCH checks the 4-byte magic at offset 0x100.
func isNCCH(buf []byte) bool {
	if len(buf) < offMagic+4 {
		return false
	}
	return string(buf[offMagic:offMagic+4]) == string(magic[:])
}

// withNoCryptoBitForced returns a copy of raw with the no_crypto bit set to
// 1, matching the original's temporary flip around the header write-back
// (the payload on disk is always marked "no additional crypto" since the
// sink has already decrypted the payload before writing it out).
func withNoCryptoBitForced(raw [HeaderSize]byte) []byte {
	out := append([]byte(nil), raw[:]...)
	out[offFlags+flagBitmasks] |= bitNoCrypto
	return out
}
