// Package tmd implements the signed title-metadata record: the content
// chunk table, per-index counter derivation, and update-slot resolution.
// Grounded on original_source/core/file_sys/title_metadata.cpp and the
// content-listing calls in original_source/core/hle/service/am/am.cpp.
package tmd

import (
	"encoding/binary"
	"fmt"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// ContentTypeFlag bits, matching FileSys::TMDContentTypeFlag.
const (
	ContentTypeEncrypted uint16 = 1 << 0
	ContentTypeDisc      uint16 = 1 << 2
	ContentTypeCFM       uint16 = 1 << 3
	ContentTypeOptional  uint16 = 1 << 14
	ContentTypeShared    uint16 = 1 << 15
)

// ContentChunk is one record of the TMD content list.
type ContentChunk struct {
	ContentID uint32
	Index     uint16
	TypeFlags uint16
	Size      uint64
	Hash      [32]byte
}

const chunkSize = 4 + 2 + 2 + 8 + 32

// Counter builds the per-index 16-byte CTR value used to decrypt this
// content with the title key: ctr[0:2] = big-endian index, rest zero.
func (c ContentChunk) Counter() [16]byte {
	var ctr [16]byte
	binary.BigEndian.PutUint16(ctr[0:2], c.Index)
	return ctr
}

func (c ContentChunk) encrypted() bool { return c.TypeFlags&ContentTypeEncrypted != 0 }

// Header carries the TMD's signed preamble fields the rest of this module
// does not interpret beyond round-tripping.
type Header struct {
	SystemVersion uint16
	TitleVersion  uint16
	// ContentInfoHash is (NEW): a count+hash summary of the content chunk
	// table, recovered from am.cpp's WriteTitleMetadata re-serialization
	// path. Not re-derived here; callers that mutate Chunks should call
	// RecomputeContentInfoHash.
	ContentInfoHash [32]byte
}

// TMD is the parsed title-metadata body: header plus content chunk table.
type TMD struct {
	SigType   uint32
	Signature []byte
	Issuer    [64]byte
	TitleID   uint64
	Header    Header
	Chunks    []ContentChunk
}

var sigSizeTable = map[uint32]int{
	0x10000: 512,
	0x10001: 256,
	0x10002: 60,
}

func alignUp(v, align int) int { return (v + align - 1) / align * align }

const (
	issuerOff   = 0
	titleIDOff  = 0x4C
	sysVerOff   = 0x54
	titleVerOff = 0x9C
	contentCnt  = 0x9E
	infoHashOff = 0xA0
	bodySize    = 0xC4 // fixed body through content-info summary, before chunk table
)

// Load parses raw title metadata: sig-type (BE u32) selects the signature
// size/alignment exactly as Ticket.Load does, the fixed body holds
// issuer/title-id/versions/content-info-hash/content-count, followed by
// content_count chunk records.
func Load(raw []byte) (*TMD, error) {
	const op = "tmd.Load"
	if len(raw) < 4 {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated tmd"))
	}
	sigType := binary.BigEndian.Uint32(raw[:4])
	sigLen, ok := sigSizeTable[sigType]
	if !ok {
		return nil, coreerr.New(coreerr.KindUnsupportedCrypto, op, fmt.Errorf("unknown sig type %#x", sigType))
	}
	sigBlockLen := alignUp(4+sigLen, 0x40)
	if len(raw) < sigBlockLen+bodySize {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated tmd body"))
	}

	t := &TMD{SigType: sigType}
	t.Signature = append([]byte(nil), raw[4:4+sigLen]...)

	body := raw[sigBlockLen:]
	copy(t.Issuer[:], body[issuerOff:issuerOff+0x40])
	t.TitleID = binary.BigEndian.Uint64(body[titleIDOff : titleIDOff+8])
	t.Header.SystemVersion = binary.BigEndian.Uint16(body[sysVerOff : sysVerOff+2])
	t.Header.TitleVersion = binary.BigEndian.Uint16(body[titleVerOff : titleVerOff+2])
	count := binary.BigEndian.Uint16(body[contentCnt : contentCnt+2])
	copy(t.Header.ContentInfoHash[:], body[infoHashOff:infoHashOff+32])

	chunkStart := sigBlockLen + bodySize
	need := chunkStart + int(count)*chunkSize
	if len(raw) < need {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated content chunk table: need %d have %d", need, len(raw)))
	}
	t.Chunks = make([]ContentChunk, count)
	off := chunkStart
	for i := range t.Chunks {
		c := &t.Chunks[i]
		c.ContentID = binary.BigEndian.Uint32(raw[off : off+4])
		c.Index = binary.BigEndian.Uint16(raw[off+4 : off+6])
		c.TypeFlags = binary.BigEndian.Uint16(raw[off+6 : off+8])
		c.Size = binary.BigEndian.Uint64(raw[off+8 : off+16])
		copy(c.Hash[:], raw[off+16:off+48])
		off += chunkSize
	}
	return t, nil
}

// Serialize re-emits the TMD in the same layout Load parses.
func (t *TMD) Serialize() []byte {
	sigBlockLen := alignUp(4+len(t.Signature), 0x40)
	out := make([]byte, sigBlockLen+bodySize+len(t.Chunks)*chunkSize)
	binary.BigEndian.PutUint32(out[:4], t.SigType)
	copy(out[4:], t.Signature)

	body := out[sigBlockLen : sigBlockLen+bodySize]
	copy(body[issuerOff:issuerOff+0x40], t.Issuer[:])
	binary.BigEndian.PutUint64(body[titleIDOff:titleIDOff+8], t.TitleID)
	binary.BigEndian.PutUint16(body[sysVerOff:sysVerOff+2], t.Header.SystemVersion)
	binary.BigEndian.PutUint16(body[titleVerOff:titleVerOff+2], t.Header.TitleVersion)
	binary.BigEndian.PutUint16(body[contentCnt:contentCnt+2], uint16(len(t.Chunks)))
	copy(body[infoHashOff:infoHashOff+32], t.Header.ContentInfoHash[:])

	off := sigBlockLen + bodySize
	for _, c := range t.Chunks {
		binary.BigEndian.PutUint32(out[off:off+4], c.ContentID)
		binary.BigEndian.PutUint16(out[off+4:off+6], c.Index)
		binary.BigEndian.PutUint16(out[off+6:off+8], c.TypeFlags)
		binary.BigEndian.PutUint64(out[off+8:off+16], c.Size)
		copy(out[off+16:off+48], c.Hash[:])
		off += chunkSize
	}
	return out
}

// ContentCount reports the number of content chunks.
func (t *TMD) ContentCount() int { return len(t.Chunks) }

// ContentID returns the content-id of chunk i.
func (t *TMD) ContentID(i int) uint32 { return t.Chunks[i].ContentID }

// ContentSize returns the declared size of chunk i.
func (t *TMD) ContentSize(i int) uint64 { return t.Chunks[i].Size }

// ContentType returns the type-flags of chunk i.
func (t *TMD) ContentType(i int) uint16 { return t.Chunks[i].TypeFlags }

// HasEncryptedContent reports whether any chunk has the encrypted flag set.
func (t *TMD) HasEncryptedContent() bool {
	for _, c := range t.Chunks {
		if c.encrypted() {
			return true
		}
	}
	return false
}

// ChunkByIndex finds the chunk with the given TMD index, if any.
func (t *TMD) ChunkByIndex(index uint16) (ContentChunk, bool) {
	for _, c := range t.Chunks {
		if c.Index == index {
			return c, true
		}
	}
	return ContentChunk{}, false
}

// RecomputeContentInfoHash refreshes Header.ContentInfoHash after Chunks is
// mutated, matching am.cpp's re-serialization of the content-info summary
// whenever the chunk table changes (e.g. after update-slot resolution).
func (t *TMD) RecomputeContentInfoHash(hashFn func([]byte) [32]byte) {
	var buf []byte
	for _, c := range t.Chunks {
		enc := make([]byte, chunkSize)
		binary.BigEndian.PutUint32(enc[0:4], c.ContentID)
		binary.BigEndian.PutUint16(enc[4:6], c.Index)
		binary.BigEndian.PutUint16(enc[6:8], c.TypeFlags)
		binary.BigEndian.PutUint64(enc[8:16], c.Size)
		copy(enc[16:48], c.Hash[:])
		buf = append(buf, enc...)
	}
	t.Header.ContentInfoHash = hashFn(buf)
}
