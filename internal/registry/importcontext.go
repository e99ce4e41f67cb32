package registry

import (
	"fmt"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// ImportState is one node of the import-context state machine (spec §4.K).
type ImportState int

const (
	ImportWaitingForImport ImportState = iota
	ImportResumable
	ImportWaitingForCommit
	ImportNeedsCleanup
	ImportDeleting
)

func (s ImportState) String() string {
	switch s {
	case ImportWaitingForImport:
		return "waiting-for-import"
	case ImportResumable:
		return "resumable"
	case ImportWaitingForCommit:
		return "waiting-for-commit"
	case ImportNeedsCleanup:
		return "needs-cleanup"
	case ImportDeleting:
		return "deleting"
	default:
		return "unknown"
	}
}

// ImportContext tracks one title's in-flight import, driven purely by the
// named transitions below; there is no timeout, matching spec §5's
// cancellation note.
type ImportContext struct {
	TitleID uint64
	State   ImportState
}

// ImportContentContext is the per-content analogue of ImportContext,
// following the same machine (spec §4.K, "per-content contexts follow the
// same machine").
type ImportContentContext struct {
	TitleID   uint64
	ContentID uint32
	State     ImportState
}

func newImportError(op string, from ImportState, event string) error {
	return coreerr.New(coreerr.KindInvalidState, op, fmt.Errorf("%s: invalid from state %s", event, from))
}

// beginImportTitle transitions (or creates) T's context to waiting-for-import.
func beginImportTitle(ctx *ImportContext) {
	ctx.State = ImportWaitingForImport
}

// stopImportTitle moves an in-progress import to resumable.
func stopImportTitle(ctx *ImportContext) {
	ctx.State = ImportResumable
}

// resumeImportTitle moves a resumable context back to waiting-for-import;
// any other source state is rejected.
func resumeImportTitle(ctx *ImportContext) error {
	const op = "registry.resumeImportTitle"
	if ctx.State != ImportResumable {
		return newImportError(op, ctx.State, "resume_import_title")
	}
	ctx.State = ImportWaitingForImport
	return nil
}

// cancelImportTitle moves a context to deleting from any state, matching
// am.cpp's unconditional cancel path.
func cancelImportTitle(ctx *ImportContext) {
	ctx.State = ImportDeleting
}

// endImportTitle moves a context to waiting-for-commit.
func endImportTitle(ctx *ImportContext) {
	ctx.State = ImportWaitingForCommit
}

// commitImportTitles advances every context in contexts whose title-id is
// listed in titleIDs from waiting-for-commit to needs-cleanup; when cleanup
// is true, every context across the whole map left in
// {resumable, waiting-for-import, needs-cleanup} is pruned outright.
func commitImportTitles(contexts map[uint64]*ImportContext, titleIDs []uint64, cleanup bool) {
	for _, id := range titleIDs {
		if ctx, ok := contexts[id]; ok && ctx.State == ImportWaitingForCommit {
			ctx.State = ImportNeedsCleanup
		}
	}
	if !cleanup {
		return
	}
	for id, ctx := range contexts {
		switch ctx.State {
		case ImportResumable, ImportWaitingForImport, ImportNeedsCleanup:
			delete(contexts, id)
		}
	}
}
