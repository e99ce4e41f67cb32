package cia

import (
	"fmt"

	"github.com/azahar-emu/titlecore/internal/coreerr"
	"github.com/azahar-emu/titlecore/internal/crypto"
	"github.com/azahar-emu/titlecore/internal/ticket"
	"github.com/azahar-emu/titlecore/internal/tmd"
	"github.com/azahar-emu/titlecore/internal/unique"
)

// Dependencies are the registry-provided collaborators an Importer needs:
// ticket/TMD persistence, content sink construction, and old-slot lookup
// for finalization. These are supplied by internal/registry (§4.K), which
// owns the on-disk directory layout.
type Dependencies struct {
	ConsoleState  *unique.ConsoleState
	CTCertPrivate crypto.ECCPrivateKey

	PersistTicket func(t *ticket.Ticket) error
	// ResolveUpdateSlotAndOld returns the slot number the new TMD should be
	// written to, and the previously-authoritative TMD/slot if one exists.
	ResolveUpdateSlotAndOld func(titleID uint64) (newSlot uint32, oldTMD *tmd.TMD, oldSlot uint32, hadOld bool, err error)
	PersistTMD              func(titleID uint64, slot uint32, t *tmd.TMD) error
	OpenContentSink         ContentSinkOpener
	// DeleteStaleContent removes a content-id no longer referenced by the
	// new TMD, used when diffing against the old update-slot TMD at commit.
	DeleteStaleContent func(titleID uint64, contentID uint32) error
	DeleteTMDSlot      func(titleID uint64, slot uint32) error
	DeleteTitleContent func(titleID uint64) error // abort path: wipe content/ only
}

// Importer is the installable-archive parser's streaming state machine.
type Importer struct {
	deps Dependencies

	state        InstallState
	totalWritten uint64
	accumulator  []byte

	header       Header
	offsets      sectionOffsets
	headerParsed bool

	titleID       uint64
	finalTicket   *ticket.Ticket
	finalTMD      *tmd.TMD
	contentStates []*contentState

	newSlot uint32
	oldTMD  *tmd.TMD
	oldSlot uint32
	hadOld  bool

	errState error
}

// NewImporter constructs an Importer ready to receive sequential writes
// starting at offset 0.
func NewImporter(deps Dependencies) *Importer {
	return &Importer{deps: deps, state: InstallStarted}
}

// State returns the importer's current install state.
func (im *Importer) State() InstallState { return im.state }

// Err returns any error the importer has captured.
func (im *Importer) Err() error { return im.errState }

// Write feeds the next contiguous byte-range to the importer. offset must
// equal the number of bytes already consumed; a mismatch is reported as
// invalid-import-state rather than silently producing garbage, per spec
// §5's ordering rule.
func (im *Importer) Write(offset uint64, buf []byte) error {
	const op = "cia.Importer.Write"
	if im.errState != nil {
		return im.errState
	}
	if offset != im.totalWritten {
		err := coreerr.New(coreerr.KindInvalidState, op, fmt.Errorf("non-sequential write: expected offset %d, got %d", im.totalWritten, offset))
		im.errState = err
		return err
	}

	for len(buf) > 0 {
		if im.state < TMDLoaded {
			n, err := im.accumulate(buf)
			if err != nil {
				im.errState = err
				return err
			}
			buf = buf[n:]
			continue
		}

		n, err := im.dispatchContent(buf)
		if err != nil {
			im.errState = err
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// accumulate buffers pre-content-block bytes (header, cert-chain, ticket,
// tmd), parsing each section as soon as enough bytes are available, per
// spec §4.J steps 1-3.
func (im *Importer) accumulate(buf []byte) (int, error) {
	const op = "cia.Importer.accumulate"

	threshold := HeaderSize
	if im.headerParsed {
		threshold = int(im.offsets.ContentOffset)
	}
	need := threshold - len(im.accumulator)
	take := need
	if take > len(buf) {
		take = len(buf)
	}
	im.accumulator = append(im.accumulator, buf[:take]...)
	im.totalWritten += uint64(take)

	if !im.headerParsed && len(im.accumulator) >= HeaderSize {
		h, err := ParseHeader(im.accumulator[:HeaderSize])
		if err != nil {
			return take, err
		}
		im.header = h
		im.offsets = h.offsets()
		im.headerParsed = true
		im.state = HeaderLoaded
	}

	if im.headerParsed && len(im.accumulator) >= int(im.offsets.ContentOffset) {
		if err := im.loadTicketAndTMD(); err != nil {
			return take, err
		}
		im.state = TMDLoaded
	}

	return take, nil
}

func (im *Importer) loadTicketAndTMD() error {
	const op = "cia.Importer.loadTicketAndTMD"

	ticketRaw := im.accumulator[im.offsets.TicketOffset : im.offsets.TicketOffset+uint64(im.header.TicketSize)]
	t, err := ticket.Load(ticketRaw)
	if err != nil {
		return err
	}
	if err := t.DoTitlekeyFixup(im.deps.ConsoleState, im.deps.CTCertPrivate); err != nil {
		return err
	}
	if im.deps.PersistTicket != nil {
		if err := im.deps.PersistTicket(t); err != nil {
			return err
		}
	}
	im.state = TicketLoaded
	im.finalTicket = t

	tmdRaw := im.accumulator[im.offsets.TMDOffset : im.offsets.TMDOffset+uint64(im.header.TMDSize)]
	parsedTMD, err := tmd.Load(tmdRaw)
	if err != nil {
		return err
	}
	im.finalTMD = parsedTMD
	im.titleID = parsedTMD.TitleID

	if im.deps.ResolveUpdateSlotAndOld != nil {
		slot, oldTMD, oldSlot, hadOld, err := im.deps.ResolveUpdateSlotAndOld(im.titleID)
		if err != nil {
			return err
		}
		im.newSlot, im.oldTMD, im.oldSlot, im.hadOld = slot, oldTMD, oldSlot, hadOld
	}
	if im.deps.PersistTMD != nil {
		if err := im.deps.PersistTMD(im.titleID, im.newSlot, parsedTMD); err != nil {
			return err
		}
	}

	if im.deps.OpenContentSink == nil {
		return coreerr.New(coreerr.KindInvalidState, op, fmt.Errorf("no content sink opener configured"))
	}
	states, err := buildContentStates(parsedTMD.Chunks, im.finalTicket.TitleKey, im.deps.OpenContentSink)
	if err != nil {
		return err
	}
	im.contentStates = states
	return nil
}

// dispatchContent feeds bytes within the content block to the content
// sinks; bytes in the trailing meta block (if any) are consumed and
// discarded, matching spec §4.J step 4 (meta block is out of scope for
// installed-content dispatch).
func (im *Importer) dispatchContent(buf []byte) (int, error) {
	blockOffset := im.totalWritten - im.offsets.ContentOffset
	contentEnd := im.offsets.MetaOffset - im.offsets.ContentOffset

	n := len(buf)
	if blockOffset >= contentEnd {
		// Past the content block entirely (meta bytes); discard.
		im.totalWritten += uint64(n)
		return n, nil
	}
	remaining := contentEnd - blockOffset
	if uint64(n) > remaining {
		n = int(remaining)
	}
	if err := writeInto(im.contentStates, blockOffset, buf[:n]); err != nil {
		return n, err
	}
	im.totalWritten += uint64(n)
	im.state = ContentWritten
	return n, nil
}

// Close finalizes the install: commits iff every content reached its
// declared size, diffing and pruning the previous update-slot TMD's
// orphaned contents; otherwise aborts by wiping the title's content
// directory while preserving the title directory (and its save data).
func (im *Importer) Close() error {
	if im.errState != nil {
		return im.errState
	}
	for _, st := range im.contentStates {
		_ = st.sink.Close()
	}
	if im.finalTMD == nil || !allComplete(im.contentStates) {
		return im.abort()
	}
	return im.commit()
}

func (im *Importer) commit() error {
	if im.hadOld && im.oldTMD != nil {
		for _, oc := range im.oldTMD.Chunks {
			stillReferenced := false
			for _, nc := range im.finalTMD.Chunks {
				if nc.ContentID == oc.ContentID {
					stillReferenced = true
					break
				}
			}
			if stillReferenced {
				continue
			}
			if im.deps.DeleteStaleContent != nil {
				if err := im.deps.DeleteStaleContent(im.titleID, oc.ContentID); err != nil {
					return err
				}
			}
		}
		if im.oldSlot != im.newSlot && im.deps.DeleteTMDSlot != nil {
			if err := im.deps.DeleteTMDSlot(im.titleID, im.oldSlot); err != nil {
				return err
			}
		}
	}
	return nil
}

func (im *Importer) abort() error {
	if im.deps.DeleteTitleContent != nil {
		return im.deps.DeleteTitleContent(im.titleID)
	}
	return nil
}
