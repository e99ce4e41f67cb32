package ncch

import "encoding/binary"

type regionKind int

const (
	regionExHeader regionKind = iota
	regionExeFSHeader
	regionExeFSPrimary
	regionExeFSSecondary
	regionRomFS
)

// region is one span of the output stream that requires decryption,
// matching NCCHCryptoFile::CryptoRegion. Offset/size/seekFrom are all
// relative to the start of the NCCH, where the header (always written
// first and unencrypted) occupies offset 0 and the exheader starts at 0x200.
type region struct {
	kind     regionKind
	offset   uint64
	size     uint64
	seekFrom uint64 // offset used as the CTR seek origin for this region
}

func (r region) end() uint64 { return r.offset + r.size }

func alignUp(v, align uint64) uint64 { return (v + align - 1) / align * align }

// buildRegions constructs the top-level region table from the parsed
// header, matching spec §4.I's region-table construction.
func buildRegions(h header) []region {
	var regions []region
	if h.ExtHeaderSize != 0 {
		regions = append(regions, region{
			kind:     regionExHeader,
			offset:   HeaderSize,
			size:     ExHeaderSize,
			seekFrom: HeaderSize,
		})
	}
	if h.ExeFSSize != 0 {
		off := uint64(h.ExeFSOffset) * blockSize
		regions = append(regions, region{
			kind:     regionExeFSHeader,
			offset:   off,
			size:     ExeFSHeaderSize,
			seekFrom: off,
		})
	}
	if h.RomFSSize != 0 {
		off := uint64(h.RomFSOffset) * blockSize
		regions = append(regions, region{
			kind:     regionRomFS,
			offset:   off,
			size:     uint64(h.RomFSSize) * blockSize,
			seekFrom: off,
		})
	}
	return regions
}

// exeFSSection is one of the 8 fixed-slot section records in the exefs
// header.
type exeFSSection struct {
	Name   string
	Offset uint32
	Size   uint32
}

const exeFSSectionCount = 8
const exeFSSectionRecordSize = 16 // 8-byte name + u32 offset + u32 size

func parseExeFSSections(header []byte) []exeFSSection {
	var out []exeFSSection
	for i := 0; i < exeFSSectionCount; i++ {
		off := i * exeFSSectionRecordSize
		nameRaw := header[off : off+8]
		end := 0
		for end < len(nameRaw) && nameRaw[end] != 0 {
			end++
		}
		name := string(nameRaw[:end])
		secOffset := binary.LittleEndian.Uint32(header[off+8 : off+12])
		size := binary.LittleEndian.Uint32(header[off+12 : off+16])
		if size == 0 {
			continue
		}
		out = append(out, exeFSSection{Name: name, Offset: secOffset, Size: size})
	}
	return out
}

// expandExeFSRegions appends one sub-region per non-empty section of a
// decrypted exefs header, matching spec §4.I: "icon"/"banner" use the
// primary key (exefsHdrRegion.offset marks where the exefs region as a
// whole starts), everything else uses the secondary key.
func expandExeFSRegions(exefsHdrRegion region, header []byte) []region {
	var out []region
	for _, sec := range parseExeFSSections(header) {
		kind := regionExeFSSecondary
		if sec.Name == "icon" || sec.Name == "banner" {
			kind = regionExeFSPrimary
		}
		out = append(out, region{
			kind:     kind,
			offset:   exefsHdrRegion.offset + ExeFSHeaderSize + uint64(sec.Offset),
			size:     alignUp(uint64(sec.Size), blockSize),
			seekFrom: exefsHdrRegion.offset,
		})
	}
	return out
}
