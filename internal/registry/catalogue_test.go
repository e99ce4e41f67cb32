package registry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

func newTestCatalogue(t *testing.T) *Catalogue {
	t.Helper()
	roots := Roots{NAND: t.TempDir(), SDMC: t.TempDir()}
	return NewCatalogue(roots)
}

func TestScanAllPopulatesProgramLists(t *testing.T) {
	cat := newTestCatalogue(t)
	writeTitleFixture(t, cat.roots.NAND, 0x0004000000001111)
	writeTitleFixture(t, cat.roots.SDMC, 0x0004000000002222)

	require.NoError(t, cat.ScanAll())
	require.True(t, cat.HasProgram(MediaNAND, 0x0004000000001111))
	require.True(t, cat.HasProgram(MediaSDMC, 0x0004000000002222))
	require.False(t, cat.HasProgram(MediaNAND, 0x0004000000002222))
	require.Equal(t, 1, cat.NumPrograms(MediaNAND))
}

func TestScanAllPopulatesTicketMultimap(t *testing.T) {
	cat := newTestCatalogue(t)
	titleID := uint64(0x0004000000001111)
	require.NoError(t, os.MkdirAll(TicketDir(cat.roots.NAND), 0o755))
	require.NoError(t, os.WriteFile(TicketPath(cat.roots.NAND, titleID, 9), []byte("x"), 0o644))

	require.NoError(t, cat.ScanAll())
	require.ElementsMatch(t, []uint64{9}, cat.Tickets(titleID))
}

func TestAddTicketIsIdempotent(t *testing.T) {
	cat := newTestCatalogue(t)
	cat.AddTicket(1, 100)
	cat.AddTicket(1, 100)
	cat.AddTicket(1, 200)
	require.ElementsMatch(t, []uint64{100, 200}, cat.Tickets(1))
}

func TestImportTitleContextRequiresBeginFirst(t *testing.T) {
	cat := newTestCatalogue(t)
	err := cat.StopImportTitle(5)
	require.True(t, coreerr.Is(err, coreerr.KindNotFound))
}

func TestCatalogueDrivesImportContextThroughCommit(t *testing.T) {
	cat := newTestCatalogue(t)
	cat.BeginImportTitle(0x10)
	ctx, ok := cat.ImportTitleContext(0x10)
	require.True(t, ok)
	require.Equal(t, ImportWaitingForImport, ctx.State)

	require.NoError(t, cat.EndImportTitle(0x10))
	require.NoError(t, cat.CommitImportTitles([]uint64{0x10}, false))

	ctx, ok = cat.ImportTitleContext(0x10)
	require.True(t, ok)
	require.Equal(t, ImportNeedsCleanup, ctx.State)
	require.Equal(t, 1, cat.NumImportTitleContexts(ImportNeedsCleanup))
}

func TestDeleteImportTitleContextRemovesOutright(t *testing.T) {
	cat := newTestCatalogue(t)
	cat.BeginImportTitle(0x20)
	cat.DeleteImportTitleContext(0x20)
	_, ok := cat.ImportTitleContext(0x20)
	require.False(t, ok)
}

func TestDeleteTitleRemovesDirectoryAndListing(t *testing.T) {
	cat := newTestCatalogue(t)
	titleID := uint64(0x0004000000003333)
	writeTitleFixture(t, cat.roots.NAND, titleID)
	require.NoError(t, cat.ScanAll())
	require.True(t, cat.HasProgram(MediaNAND, titleID))

	require.NoError(t, cat.DeleteTitle(MediaNAND, titleID))
	require.False(t, cat.HasProgram(MediaNAND, titleID))
	_, err := os.Stat(TitleDir(cat.roots.NAND, titleID))
	require.True(t, os.IsNotExist(err))
}
