package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

func TestImportTitleContextLifecycle(t *testing.T) {
	ctx := &ImportContext{TitleID: 0x42}
	beginImportTitle(ctx)
	require.Equal(t, ImportWaitingForImport, ctx.State)

	endImportTitle(ctx)
	require.Equal(t, ImportWaitingForCommit, ctx.State)
}

func TestStopThenResumeReturnsToWaitingForImport(t *testing.T) {
	ctx := &ImportContext{TitleID: 0x42, State: ImportWaitingForImport}
	stopImportTitle(ctx)
	require.Equal(t, ImportResumable, ctx.State)

	require.NoError(t, resumeImportTitle(ctx))
	require.Equal(t, ImportWaitingForImport, ctx.State)
}

func TestResumeFromWrongStateFails(t *testing.T) {
	ctx := &ImportContext{TitleID: 0x42, State: ImportWaitingForCommit}
	err := resumeImportTitle(ctx)
	require.True(t, coreerr.Is(err, coreerr.KindInvalidState))
}

func TestCancelImportTitleAlwaysMovesToDeleting(t *testing.T) {
	for _, start := range []ImportState{ImportWaitingForImport, ImportResumable, ImportWaitingForCommit, ImportNeedsCleanup} {
		ctx := &ImportContext{TitleID: 1, State: start}
		cancelImportTitle(ctx)
		require.Equal(t, ImportDeleting, ctx.State)
	}
}

func TestCommitImportTitlesMovesListedToNeedsCleanup(t *testing.T) {
	contexts := map[uint64]*ImportContext{
		1: {TitleID: 1, State: ImportWaitingForCommit},
		2: {TitleID: 2, State: ImportWaitingForCommit},
	}
	commitImportTitles(contexts, []uint64{1}, false)
	require.Equal(t, ImportNeedsCleanup, contexts[1].State)
	require.Equal(t, ImportWaitingForCommit, contexts[2].State)
}

func TestCommitImportTitlesWithCleanupPrunesStaleStates(t *testing.T) {
	contexts := map[uint64]*ImportContext{
		1: {TitleID: 1, State: ImportWaitingForCommit},
		2: {TitleID: 2, State: ImportResumable},
		3: {TitleID: 3, State: ImportWaitingForImport},
		4: {TitleID: 4, State: ImportDeleting},
	}
	commitImportTitles(contexts, []uint64{1}, true)

	// title 1 became needs-cleanup then was pruned by the cleanup pass.
	_, has1 := contexts[1]
	_, has2 := contexts[2]
	_, has3 := contexts[3]
	_, has4 := contexts[4]
	require.False(t, has1)
	require.False(t, has2)
	require.False(t, has3)
	require.True(t, has4) // deleting is not in the pruned set
}

func TestFullScenarioFromSpecExample(t *testing.T) {
	// begin_import_title(T) then stop_import_title(T) then
	// resume_import_title(T) leaves the context in waiting-for-import;
	// subsequent end_import_title yields waiting-for-commit;
	// commit_import_titles([T], cleanup=false) yields needs-cleanup.
	ctx := &ImportContext{TitleID: 7}
	beginImportTitle(ctx)
	stopImportTitle(ctx)
	require.NoError(t, resumeImportTitle(ctx))
	require.Equal(t, ImportWaitingForImport, ctx.State)

	endImportTitle(ctx)
	require.Equal(t, ImportWaitingForCommit, ctx.State)

	contexts := map[uint64]*ImportContext{7: ctx}
	commitImportTitles(contexts, []uint64{7}, false)
	require.Equal(t, ImportNeedsCleanup, ctx.State)
}
