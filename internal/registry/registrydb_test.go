package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *RegistryDB {
	t.Helper()
	db, err := OpenRegistryDB("sqlite", filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRegistryDBSaveAndLoadImportContexts(t *testing.T) {
	db := openTestDB(t)

	ctx := &ImportContext{TitleID: 0x1234, State: ImportWaitingForCommit}
	require.NoError(t, db.SaveImportContext(ctx))

	loaded, err := db.LoadImportContexts()
	require.NoError(t, err)
	require.Equal(t, ImportWaitingForCommit, loaded[0x1234].State)
}

func TestRegistryDBReplaceImportContextsOverwrites(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveImportContext(&ImportContext{TitleID: 1, State: ImportResumable}))
	require.NoError(t, db.SaveImportContext(&ImportContext{TitleID: 2, State: ImportResumable}))

	require.NoError(t, db.ReplaceImportContexts(map[uint64]*ImportContext{
		1: {TitleID: 1, State: ImportNeedsCleanup},
	}))

	loaded, err := db.LoadImportContexts()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, ImportNeedsCleanup, loaded[1].State)
}

func TestRegistryDBReconcileDropsTicketsForMissingTitles(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveTicket(1, 100))
	require.NoError(t, db.SaveTicket(2, 200))

	require.NoError(t, db.Reconcile(CatalogueSnapshot{
		NAND:    []uint64{1},
		Tickets: map[uint64][]uint64{1: {100}},
	}))

	var rows []ticketRow
	require.NoError(t, db.gdb.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, uint64(1), rows[0].TitleID)
}

func TestCatalogueSetDBReconcilesAndRestoresContexts(t *testing.T) {
	cat := newTestCatalogue(t)
	writeTitleFixture(t, cat.roots.NAND, 0x10)
	require.NoError(t, cat.ScanAll())

	db := openTestDB(t)
	require.NoError(t, db.SaveImportContext(&ImportContext{TitleID: 0x10, State: ImportWaitingForImport}))

	require.NoError(t, cat.SetDB(db))
	ctx, ok := cat.ImportTitleContext(0x10)
	require.True(t, ok)
	require.Equal(t, ImportWaitingForImport, ctx.State)
}
