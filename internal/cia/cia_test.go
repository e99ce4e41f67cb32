package cia

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azahar-emu/titlecore/internal/ticket"
	"github.com/azahar-emu/titlecore/internal/tmd"
)

// memSink is an in-memory io.WriteCloser capturing everything written to
// it, used to verify content dispatch without touching the filesystem.
type memSink struct {
	buf    bytes.Buffer
	closed bool
}

func (m *memSink) Write(p []byte) (int, error) { return m.buf.Write(p) }
func (m *memSink) Close() error                { m.closed = true; return nil }

func buildArchive(t *testing.T, tk *ticket.Ticket, tm *tmd.TMD, content []byte) []byte {
	t.Helper()
	ticketRaw := tk.Serialize()
	tmdRaw := tm.Serialize()

	h := Header{
		CertChainSize: 0,
		TicketSize:    uint32(len(ticketRaw)),
		TMDSize:       uint32(len(tmdRaw)),
		MetaSize:      0,
		ContentSize:   uint64(len(content)),
	}
	offs := h.offsets()

	out := make([]byte, offs.End)
	copy(out[0:HeaderSize], h.Serialize())
	copy(out[offs.TicketOffset:], ticketRaw)
	copy(out[offs.TMDOffset:], tmdRaw)
	copy(out[offs.ContentOffset:], content)
	return out
}

func buildUnencryptedFixture(t *testing.T) (*ticket.Ticket, *tmd.TMD, []byte) {
	t.Helper()
	tk := &ticket.Ticket{SigType: 0x10002, Signature: make([]byte, 60)}
	tk.TitleID = 0x0004000000001234
	tk.ConsoleID = 0 // common ticket, no fixup needed

	tm := &tmd.TMD{SigType: 0x10002, Signature: make([]byte, 60), TitleID: tk.TitleID}
	content := []byte("hello world, this is unencrypted content")
	tm.Chunks = []tmd.ContentChunk{
		{ContentID: 0, Index: 0, TypeFlags: 0, Size: uint64(len(content))},
	}
	return tk, tm, content
}

func TestImporterCommitsOnFullWrite(t *testing.T) {
	tk, tm, content := buildUnencryptedFixture(t)
	archive := buildArchive(t, tk, tm, content)

	var sink memSink
	var persistedTicket *ticket.Ticket
	var persistedTMD *tmd.TMD

	deps := Dependencies{
		PersistTicket: func(got *ticket.Ticket) error { persistedTicket = got; return nil },
		ResolveUpdateSlotAndOld: func(titleID uint64) (uint32, *tmd.TMD, uint32, bool, error) {
			return 0, nil, 0, false, nil
		},
		PersistTMD: func(titleID uint64, slot uint32, got *tmd.TMD) error { persistedTMD = got; return nil },
		OpenContentSink: func(chunk tmd.ContentChunk) (io.WriteCloser, error) {
			return &sink, nil
		},
	}
	im := NewImporter(deps)

	require.NoError(t, im.Write(0, archive))
	require.Equal(t, ContentWritten, im.State())

	require.NoError(t, im.Close())
	require.True(t, sink.closed)
	require.Equal(t, content, sink.buf.Bytes())
	require.NotNil(t, persistedTicket)
	require.NotNil(t, persistedTMD)
}

func TestImporterRejectsNonSequentialWrite(t *testing.T) {
	tk, tm, content := buildUnencryptedFixture(t)
	archive := buildArchive(t, tk, tm, content)

	im := NewImporter(Dependencies{
		OpenContentSink: func(chunk tmd.ContentChunk) (io.WriteCloser, error) { return &memSink{}, nil },
	})

	require.NoError(t, im.Write(0, archive[:100]))
	err := im.Write(50, archive[100:]) // not contiguous
	require.Error(t, err)
}

func TestImporterAbortsOnIncompleteContent(t *testing.T) {
	tk, tm, content := buildUnencryptedFixture(t)
	archive := buildArchive(t, tk, tm, content)

	var abortedTitle uint64
	var sink memSink
	deps := Dependencies{
		OpenContentSink: func(chunk tmd.ContentChunk) (io.WriteCloser, error) { return &sink, nil },
		DeleteTitleContent: func(titleID uint64) error {
			abortedTitle = titleID
			return nil
		},
	}
	im := NewImporter(deps)

	// Withhold the last few content bytes.
	h, err := ParseHeader(archive)
	require.NoError(t, err)
	truncated := archive[:h.offsets().ContentOffset+uint64(len(content))-5]
	require.NoError(t, im.Write(0, truncated))
	require.NoError(t, im.Close())
	require.Equal(t, tk.TitleID, abortedTitle)
}
