package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTitleFixture(t *testing.T, root string, titleID uint64) {
	t.Helper()
	dir := ContentDir(root, titleID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
}

func TestScanMediaRootFindsInstalledTitles(t *testing.T) {
	root := t.TempDir()
	writeTitleFixture(t, root, 0x0004000000001234)
	writeTitleFixture(t, root, 0x00040000deadbeef)

	// A title directory with no content/ is not yet installed.
	require.NoError(t, os.MkdirAll(TitleDir(root, 0x0004000011112222), 0o755))

	results, err := scanMediaRoot(root, MediaNAND)
	require.NoError(t, err)
	require.Len(t, results, 2)

	found := map[uint64]bool{}
	for _, r := range results {
		require.Equal(t, MediaNAND, r.Media)
		found[r.TitleID] = true
	}
	require.True(t, found[0x0004000000001234])
	require.True(t, found[0x00040000deadbeef])
}

func TestScanMediaRootMissingRootIsNotError(t *testing.T) {
	results, err := scanMediaRoot(filepath.Join(t.TempDir(), "nonexistent"), MediaSDMC)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestScanTicketsParsesFilenamePattern(t *testing.T) {
	nandRoot := t.TempDir()
	dir := TicketDir(nandRoot)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	titleID := uint64(0x0004000000001234)
	require.NoError(t, os.WriteFile(TicketPath(nandRoot, titleID, 1), []byte("tik1"), 0o644))
	require.NoError(t, os.WriteFile(TicketPath(nandRoot, titleID, 2), []byte("tik2"), 0o644))
	// A non-ticket file in the same directory is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644))

	tickets, err := scanTickets(nandRoot)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{1, 2}, tickets[titleID])
}
