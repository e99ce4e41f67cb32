package ticket

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// rightsEntry is one {start-index, rights[1024 bits]} record of an
// entry-type-3 index-header, matching ContentIndex's entry-type-3 layout.
type rightsEntry struct {
	StartIndex uint16
	Rights     [128]byte // 1024 bits
}

// indexHeader describes one entry-array within the content index. Only
// EntryType 3 is understood; others are preserved verbatim and skipped on
// evaluation, per spec §9's "warn-and-skip, do not infer a parse".
type indexHeader struct {
	EntryType uint32
	entries   []rightsEntry
	rawOther  []byte // unparsed bytes for unsupported entry types, kept for round-trip
}

// ContentIndex is the ticket's trailing rights table.
type ContentIndex struct {
	headers []indexHeader
	rawLen  int // total trailing byte length, for round-trip serialization
}

// parseContentIndex parses the trailing content-index structure, whose
// total size is given by the second u32 of its own main header, matching
// Ticket::Load's handling of the content-index trailer.
func parseContentIndex(trailer []byte) (ContentIndex, error) {
	const op = "ticket.parseContentIndex"
	if len(trailer) == 0 {
		return ContentIndex{}, nil
	}
	if len(trailer) < 8 {
		return ContentIndex{}, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated content-index header"))
	}
	totalSize := binary.BigEndian.Uint32(trailer[4:8])
	if int(totalSize) > len(trailer) {
		return ContentIndex{}, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("content-index declares %d bytes, only %d available", totalSize, len(trailer)))
	}
	data := trailer[:totalSize]

	idx := ContentIndex{rawLen: int(totalSize)}
	// Header layout beyond the two leading u32s is undocumented in the
	// distillation; we scan for entry-type-3 blocks only, warning and
	// skipping anything else, per spec §9 Open Question #1.
	offset := 8
	for offset+4 <= len(data) {
		entryType := binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
		if entryType != 3 {
			slog.Warn("ticket: unsupported content-index entry type, skipping", "type", entryType)
			idx.headers = append(idx.headers, indexHeader{EntryType: entryType, rawOther: data[offset:]})
			break
		}
		if offset+2 > len(data) {
			break
		}
		count := binary.BigEndian.Uint16(data[offset : offset+2])
		offset += 2
		h := indexHeader{EntryType: entryType}
		for i := 0; i < int(count) && offset+130 <= len(data); i++ {
			var e rightsEntry
			e.StartIndex = binary.BigEndian.Uint16(data[offset : offset+2])
			copy(e.Rights[:], data[offset+2:offset+130])
			offset += 130
			h.entries = append(h.entries, e)
		}
		idx.headers = append(idx.headers, h)
	}
	return idx, nil
}

func (idx ContentIndex) serialize() []byte {
	if idx.rawLen == 0 && len(idx.headers) == 0 {
		return nil
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint32(out[4:8], uint32(idx.rawLen))
	body := make([]byte, 0, idx.rawLen)
	for _, h := range idx.headers {
		hdr := make([]byte, 4)
		binary.BigEndian.PutUint32(hdr, h.EntryType)
		body = append(body, hdr...)
		if h.EntryType != 3 {
			body = append(body, h.rawOther...)
			continue
		}
		count := make([]byte, 2)
		binary.BigEndian.PutUint16(count, uint16(len(h.entries)))
		body = append(body, count...)
		for _, e := range h.entries {
			eb := make([]byte, 2+128)
			binary.BigEndian.PutUint16(eb[:2], e.StartIndex)
			copy(eb[2:], e.Rights[:])
			body = append(body, eb...)
		}
	}
	out = append(out, body...)
	if len(out) < idx.rawLen {
		out = append(out, make([]byte, idx.rawLen-len(out))...)
	}
	return out[:max(idx.rawLen, 8)]
}

// HasRights evaluates the rights bitmap for query index q, implementing
// spec §4.E exactly: with no entries, grant iff q < 256; otherwise scan
// entries in order, deny at the first entry whose start-index exceeds q,
// and test bit (q-start-index) of a matching entry's 1024-bit field.
func (idx ContentIndex) HasRights(q uint16) bool {
	entries := idx.entryType3Entries()
	if len(entries) == 0 {
		return q < 256
	}
	for _, e := range entries {
		if e.StartIndex > q {
			return false
		}
		rel := q - e.StartIndex
		if rel < 1024 {
			byteIdx := rel / 8
			bitIdx := rel % 8
			if byteIdx < uint16(len(e.Rights)) && e.Rights[byteIdx]&(1<<bitIdx) != 0 {
				return true
			}
		}
	}
	return false
}

func (idx ContentIndex) entryType3Entries() []rightsEntry {
	for _, h := range idx.headers {
		if h.EntryType == 3 {
			return h.entries
		}
	}
	return nil
}
