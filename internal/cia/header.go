// Package cia implements the installable-archive parser (§4.J): a
// streaming state machine that buffers the fixed 0x2020-byte header plus
// the cert-chain/ticket/tmd sections, then dispatches content bytes to
// per-content crypto sinks. Grounded on
// original_source/core/hle/service/am/am.cpp's CIAFile::Write,
// ::WriteTicket, ::WriteTitleMetadata and ::WriteContentData.
package cia

import (
	"encoding/binary"
	"fmt"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// HeaderSize is the fixed archive header length: 0x20 bytes of scalar
// fields followed by a 0x2000-byte content-index bitmap.
const HeaderSize = 0x2020

const contentIndexBitmapSize = 0x2000

// Header is the parsed archive preamble.
type Header struct {
	HeaderSize     uint32
	Type           uint16
	Version        uint16
	CertChainSize  uint32
	TicketSize     uint32
	TMDSize        uint32
	MetaSize       uint32
	ContentSize    uint64
	ContentIndex   [contentIndexBitmapSize]byte
}

func alignUp(v uint64, align uint64) uint64 { return (v + align - 1) / align * align }

// ParseHeader parses the fixed 0x2020-byte archive header.
func ParseHeader(raw []byte) (Header, error) {
	const op = "cia.ParseHeader"
	if len(raw) < HeaderSize {
		return Header{}, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated archive header"))
	}
	var h Header
	h.HeaderSize = binary.LittleEndian.Uint32(raw[0x00:0x04])
	h.Type = binary.LittleEndian.Uint16(raw[0x04:0x06])
	h.Version = binary.LittleEndian.Uint16(raw[0x06:0x08])
	h.CertChainSize = binary.LittleEndian.Uint32(raw[0x08:0x0C])
	h.TicketSize = binary.LittleEndian.Uint32(raw[0x0C:0x10])
	h.TMDSize = binary.LittleEndian.Uint32(raw[0x10:0x14])
	h.MetaSize = binary.LittleEndian.Uint32(raw[0x14:0x18])
	h.ContentSize = binary.LittleEndian.Uint64(raw[0x18:0x20])
	copy(h.ContentIndex[:], raw[0x20:0x20+contentIndexBitmapSize])
	if h.HeaderSize != HeaderSize {
		return Header{}, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("unexpected header size %#x", h.HeaderSize))
	}
	return h, nil
}

// Serialize re-emits the header in the same layout ParseHeader expects.
func (h Header) Serialize() []byte {
	out := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(out[0x00:0x04], HeaderSize)
	binary.LittleEndian.PutUint16(out[0x04:0x06], h.Type)
	binary.LittleEndian.PutUint16(out[0x06:0x08], h.Version)
	binary.LittleEndian.PutUint32(out[0x08:0x0C], h.CertChainSize)
	binary.LittleEndian.PutUint32(out[0x0C:0x10], h.TicketSize)
	binary.LittleEndian.PutUint32(out[0x10:0x14], h.TMDSize)
	binary.LittleEndian.PutUint32(out[0x14:0x18], h.MetaSize)
	binary.LittleEndian.PutUint64(out[0x18:0x20], h.ContentSize)
	copy(out[0x20:0x20+contentIndexBitmapSize], h.ContentIndex[:])
	return out
}

// sectionOffsets is the derived byte layout of every section, each aligned
// to 0x40 from the end of the previous one, per spec §4.J.
type sectionOffsets struct {
	CertChainOffset uint64
	TicketOffset    uint64
	TMDOffset       uint64
	ContentOffset   uint64
	MetaOffset      uint64
	End             uint64
}

func (h Header) offsets() sectionOffsets {
	var o sectionOffsets
	o.CertChainOffset = alignUp(HeaderSize, 0x40)
	o.TicketOffset = alignUp(o.CertChainOffset+uint64(h.CertChainSize), 0x40)
	o.TMDOffset = alignUp(o.TicketOffset+uint64(h.TicketSize), 0x40)
	o.ContentOffset = alignUp(o.TMDOffset+uint64(h.TMDSize), 0x40)
	o.MetaOffset = alignUp(o.ContentOffset+h.ContentSize, 0x40)
	o.End = o.MetaOffset + uint64(h.MetaSize)
	return o
}

// TicketBounds returns the ticket section's byte offset and declared
// length within the archive, for callers that need to peek the ticket
// (and so the title-id) before streaming the rest of the archive through
// an Importer.
func (h Header) TicketBounds() (offset, size uint64) {
	o := h.offsets()
	return o.TicketOffset, uint64(h.TicketSize)
}

// HasContentIndex reports whether bit i of the content-index bitmap is set,
// i.e. whether content index i is declared present in this archive.
func (h Header) HasContentIndex(i uint16) bool {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8) // bitmap is big-endian-bit-order per byte
	if int(byteIdx) >= len(h.ContentIndex) {
		return false
	}
	return h.ContentIndex[byteIdx]&(1<<bitIdx) != 0
}

// SetContentIndex marks content index i as present in the bitmap.
func (h *Header) SetContentIndex(i uint16) {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	if int(byteIdx) < len(h.ContentIndex) {
		h.ContentIndex[byteIdx] |= 1 << bitIdx
	}
}
