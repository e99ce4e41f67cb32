package z3ds

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// MetadataItemBinary is the type tag for an opaque-bytes metadata item, the
// only item type defined.
const MetadataItemBinary uint8 = 1

// MetadataItem is one {type, name, data} record of the metadata list.
type MetadataItem struct {
	Type uint8
	Name string
	Data []byte
}

func encodeMetadataItems(items []MetadataItem) []byte {
	var out []byte
	out = append(out, 1) // metadata list format version
	for _, it := range items {
		rec := make([]byte, 1+1+2+len(it.Name)+len(it.Data))
		rec[0] = it.Type
		rec[1] = byte(len(it.Name))
		binary.LittleEndian.PutUint16(rec[2:4], uint16(len(it.Data)))
		copy(rec[4:4+len(it.Name)], it.Name)
		copy(rec[4+len(it.Name):], it.Data)
		out = append(out, rec...)
	}
	out = append(out, 0, 0, 0, 0) // zero item terminator
	return out
}

func decodeMetadataItems(buf []byte) ([]MetadataItem, error) {
	const op = "z3ds.decodeMetadataItems"
	if len(buf) < 1 {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("empty metadata block"))
	}
	buf = buf[1:] // skip version byte
	var items []MetadataItem
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated metadata item"))
		}
		typ := buf[0]
		nameLen := int(buf[1])
		dataLen := int(binary.LittleEndian.Uint16(buf[2:4]))
		if typ == 0 && nameLen == 0 && dataLen == 0 {
			break
		}
		buf = buf[4:]
		if len(buf) < nameLen+dataLen {
			return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated metadata item body"))
		}
		item := MetadataItem{Type: typ, Name: string(buf[:nameLen])}
		item.Data = append([]byte(nil), buf[nameLen:nameLen+dataLen]...)
		items = append(items, item)
		buf = buf[nameLen+dataLen:]
	}
	return items, nil
}

// builtinMetadata returns the always-present built-in items: compressor,
// date (ISO-8601 UTC), and maxframesize, per spec §4.G.
func builtinMetadata(compressor string, at time.Time, maxFrameSize uint32) []MetadataItem {
	frameSizeBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(frameSizeBytes, maxFrameSize)
	return []MetadataItem{
		{Type: MetadataItemBinary, Name: "compressor", Data: []byte(compressor)},
		{Type: MetadataItemBinary, Name: "date", Data: []byte(at.UTC().Format(time.RFC3339))},
		{Type: MetadataItemBinary, Name: "maxframesize", Data: frameSizeBytes},
	}
}
