package cia

import (
	"io"

	"github.com/azahar-emu/titlecore/internal/crypto"
	"github.com/azahar-emu/titlecore/internal/tmd"
)

// ContentSinkOpener opens the backing sink for one declared content, at the
// registry-assigned path, already wrapped by the per-console (§4.H) and
// optional compression (§4.G) layers. The returned writer receives the
// content-container crypto sink's (§4.I) output.
type ContentSinkOpener func(chunk tmd.ContentChunk) (io.WriteCloser, error)

// contentState tracks one declared content's dispatch progress.
type contentState struct {
	chunk        tmd.ContentChunk
	sink         io.WriteCloser
	ctrStream    *crypto.CTRStream
	bytesWritten uint64
	offset       uint64 // this content's start offset within the content block
}

func (c *contentState) end() uint64 { return c.offset + c.chunk.Size }

// buildContentStates lays out each declared content sequentially within the
// content block, in TMD chunk order, and opens its sink.
func buildContentStates(chunks []tmd.ContentChunk, titleKey [16]byte, open ContentSinkOpener) ([]*contentState, error) {
	states := make([]*contentState, len(chunks))
	var offset uint64
	for i, c := range chunks {
		sink, err := open(c)
		if err != nil {
			return nil, err
		}
		st := &contentState{chunk: c, sink: sink, offset: offset}
		if c.TypeFlags&tmd.ContentTypeEncrypted != 0 {
			ctr := c.Counter()
			st.ctrStream = crypto.NewCTRStream(titleKey[:], ctr[:])
		}
		states[i] = st
		offset += c.Size
	}
	return states, nil
}

// writeInto feeds buf (already positioned at content-block-relative offset
// blockOffset) to every content whose declared range it overlaps, per spec
// §4.J step 4: decrypt in place if flagged encrypted, then forward the
// content-relative sub-range to that content's sink.
func writeInto(states []*contentState, blockOffset uint64, buf []byte) error {
	rangeStart := blockOffset
	rangeEnd := blockOffset + uint64(len(buf))
	for _, st := range states {
		lo := max64(rangeStart, st.offset)
		hi := min64(rangeEnd, st.end())
		if lo >= hi {
			continue
		}
		sub := buf[lo-rangeStart : hi-rangeStart]
		contentRelOffset := lo - st.offset

		var toWrite []byte
		if st.ctrStream != nil {
			toWrite = st.ctrStream.CryptAt(int64(contentRelOffset), sub)
		} else {
			toWrite = sub
		}
		if _, err := st.sink.Write(toWrite); err != nil {
			return err
		}
		st.bytesWritten += uint64(len(toWrite))
	}
	return nil
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// allComplete reports whether every content has bytesWritten >= declared
// size, the finalization-commit precondition of spec §4.J.
func allComplete(states []*contentState) bool {
	for _, st := range states {
		if st.bytesWritten < st.chunk.Size {
			return false
		}
	}
	return true
}

// SyntheticHeader fabricates an archive header for CDN-sourced content with
// no real archive wrapper present, sized from the given ticket/TMD byte
// lengths and content total, matching am.cpp's CIAFile handling of
// CDN-delivered title installs (no on-disk .cia container, just raw
// ticket/tmd/content blobs fed directly).
func SyntheticHeader(ticketSize, tmdSize uint32, contentSize uint64) Header {
	return Header{
		Type:          0,
		Version:       0,
		CertChainSize: 0,
		TicketSize:    ticketSize,
		TMDSize:       tmdSize,
		MetaSize:      0,
		ContentSize:   contentSize,
	}
}
