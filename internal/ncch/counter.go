package ncch

import "encoding/binary"

// sectionCounters holds the three per-section CTR values, matching
// NCCHCryptoFile's exheader_ctr/exefs_ctr/romfs_ctr.
type sectionCounters struct {
	ExHeader [16]byte
	ExeFS    [16]byte
	RomFS    [16]byte
}

const blockSize = 0x200

// deriveCounters implements spec §4.I's "Counter derivation" exactly, after
// https://github.com/d0k3/GodMode9's reference algorithm the original cites:
// version 0/2 uses the reversed partition-id plus a section tag byte;
// version 1 uses the partition-id verbatim plus a big-endian byte offset.
func deriveCounters(h header) sectionCounters {
	var c sectionCounters
	switch h.Version {
	case 0, 2:
		var rev [8]byte
		for i := range h.PartitionID {
			rev[i] = h.PartitionID[len(h.PartitionID)-1-i]
		}
		copy(c.ExHeader[:8], rev[:])
		c.ExeFS = c.ExHeader
		c.RomFS = c.ExHeader
		c.ExHeader[8] = 1
		c.ExeFS[8] = 2
		c.RomFS[8] = 3
	case 1:
		copy(c.ExHeader[:8], h.PartitionID[:])
		c.ExeFS = c.ExHeader
		c.RomFS = c.ExHeader
		binary.BigEndian.PutUint32(c.ExHeader[12:16], 0x200)
		binary.BigEndian.PutUint32(c.ExeFS[12:16], h.ExeFSOffset*blockSize)
		binary.BigEndian.PutUint32(c.RomFS[12:16], h.RomFSOffset*blockSize)
	}
	return c
}
