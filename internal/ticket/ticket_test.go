package ticket

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azahar-emu/titlecore/internal/crypto"
	"github.com/azahar-emu/titlecore/internal/unique"
)

func TestLoadSerializeRoundTrip(t *testing.T) {
	tk := &Ticket{SigType: 0x10002, Signature: make([]byte, 60)}
	copy(tk.Issuer[:], "Root-CA-test")
	tk.TitleKey = [16]byte{0x11, 0x22}
	tk.TicketID = 0x0102030405060708
	tk.ConsoleID = 0
	tk.TitleID = 0x0004000000001234
	tk.CommonKeyIndex = 1

	raw := tk.Serialize()
	got, err := Load(raw)
	require.NoError(t, err)
	require.Equal(t, tk.TitleKey, got.TitleKey)
	require.Equal(t, tk.TicketID, got.TicketID)
	require.Equal(t, tk.TitleID, got.TitleID)
	require.Equal(t, tk.CommonKeyIndex, got.CommonKeyIndex)

	raw2 := got.Serialize()
	require.Equal(t, raw, raw2)
}

func TestCommonTicketFixupIsNoop(t *testing.T) {
	tk := &Ticket{SigType: 0x10002, Signature: make([]byte, 60)}
	tk.ConsoleID = 0
	tk.TitleKey = [16]byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11}
	want := tk.TitleKey

	err := tk.DoTitlekeyFixup(&unique.ConsoleState{}, crypto.ECCPrivateKey{})
	require.NoError(t, err)
	require.Equal(t, want, tk.TitleKey)
}

func TestPersonalizedTicketFixupRejectsMissingOTP(t *testing.T) {
	tk := &Ticket{SigType: 0x10002, Signature: make([]byte, 60)}
	tk.ConsoleID = 1

	err := tk.DoTitlekeyFixup(&unique.ConsoleState{}, crypto.ECCPrivateKey{})
	require.Error(t, err)
}

func TestRightsBitmapEmptyTable(t *testing.T) {
	var idx ContentIndex
	require.True(t, idx.HasRights(0))
	require.True(t, idx.HasRights(255))
	require.False(t, idx.HasRights(256))
}

func TestRightsBitmapSingleEntry(t *testing.T) {
	var e rightsEntry
	e.StartIndex = 5
	e.Rights[0] = 1 << 3 // bit 3 set
	idx := ContentIndex{headers: []indexHeader{{EntryType: 3, entries: []rightsEntry{e}}}}

	require.True(t, idx.HasRights(8))  // 8-5=3, bit 3 set
	require.False(t, idx.HasRights(7)) // 7-5=2, bit 2 clear
	require.False(t, idx.HasRights(4)) // start-index(5) > q(4): deny
}

func TestRightsBitmapTrailingIndexHeaderSkipped(t *testing.T) {
	idx, err := parseContentIndex(unsupportedTrailer())
	require.NoError(t, err)
	require.True(t, idx.HasRights(0))
}

func unsupportedTrailer() []byte {
	trailer := make([]byte, 16)
	binary.BigEndian.PutUint32(trailer[4:8], 16)
	binary.BigEndian.PutUint32(trailer[8:12], 99) // unsupported entry type
	return trailer
}
