package tmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTMD() *TMD {
	t := &TMD{SigType: 0x10002, Signature: make([]byte, 60), TitleID: 0x0004000000001234}
	copy(t.Issuer[:], "Root-CA-test")
	t.Chunks = []ContentChunk{
		{ContentID: 0, Index: 0, TypeFlags: ContentTypeEncrypted},
		{ContentID: 1, Index: 1, TypeFlags: 0},
	}
	return t
}

func TestLoadSerializeRoundTrip(t *testing.T) {
	orig := sampleTMD()
	raw := orig.Serialize()

	got, err := Load(raw)
	require.NoError(t, err)
	require.Equal(t, orig.TitleID, got.TitleID)
	require.Len(t, got.Chunks, 2)
	require.Equal(t, orig.Chunks, got.Chunks)

	raw2 := got.Serialize()
	require.Equal(t, raw, raw2)
}

func TestContentChunkCounter(t *testing.T) {
	c := ContentChunk{Index: 0x0102}
	ctr := c.Counter()
	require.Equal(t, byte(0x01), ctr[0])
	require.Equal(t, byte(0x02), ctr[1])
	for _, b := range ctr[2:] {
		require.Equal(t, byte(0), b)
	}
}

func TestHasEncryptedContent(t *testing.T) {
	tm := sampleTMD()
	require.True(t, tm.HasEncryptedContent())

	tm.Chunks[0].TypeFlags = 0
	require.False(t, tm.HasEncryptedContent())
}

func TestResolveUpdateSlotEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	target, _, _, had, err := ResolveUpdateSlot(dir)
	require.NoError(t, err)
	require.False(t, had)
	require.Equal(t, uint32(0), target)
}

func TestResolveUpdateSlotSingleSlotBumps(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SlotName(0)), []byte("x"), 0o644))

	target, base, update, had, err := ResolveUpdateSlot(dir)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, uint32(0), base)
	require.Equal(t, uint32(0), update)
	require.Equal(t, uint32(1), target)
}

func TestResolveUpdateSlotTwoSlotsReplacesUpdate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SlotName(0)), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SlotName(1)), []byte("x"), 0o644))

	target, base, update, had, err := ResolveUpdateSlot(dir)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, uint32(0), base)
	require.Equal(t, uint32(1), update)
	require.Equal(t, uint32(1), target)
}

func TestResolveUpdateSlotIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SlotName(0)), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	_, base, update, had, err := ResolveUpdateSlot(dir)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, uint32(0), base)
	require.Equal(t, uint32(0), update)
}
