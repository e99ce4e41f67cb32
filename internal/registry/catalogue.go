package registry

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

// installPacing caps how often a new archive install can begin, independent
// of the ciaInstallMu critical section itself: a caller hammering install
// after a failure still only starts a new attempt at this rate.
const installPacing = rate.Limit(2) // installs/sec, burst of 1

// Catalogue is the installed-title registry's in-memory state: the three
// per-media title-id arrays, the ticket multimap, and the import-context
// maps, all guarded by a single mutex (am_lists_mutex in the original).
// Grounded on am.cpp's AM::Module member layout.
type Catalogue struct {
	roots Roots

	mu       sync.Mutex
	nand     map[uint64]struct{}
	sdmc     map[uint64]struct{}
	gamecard map[uint64]struct{}

	tickets map[uint64][]uint64 // title-id -> ticket-ids

	titleContexts   map[uint64]*ImportContext
	contentContexts map[uint64][]*ImportContentContext

	// systemUpdaterMu is the process-wide advisory lock serializing
	// system-title updates against each other.
	systemUpdaterMu sync.Mutex
	// ciaInstallMu serializes the archive-install critical section
	// against itself (the "cia-installing" flag of spec §5).
	ciaInstallMu   sync.Mutex
	installLimiter *rate.Limiter

	db *RegistryDB
}

// NewCatalogue constructs an empty catalogue rooted at roots. Call ScanAll
// to populate it from disk, and SetDB to attach durable import-context
// bookkeeping.
func NewCatalogue(roots Roots) *Catalogue {
	return &Catalogue{
		roots:           roots,
		nand:            make(map[uint64]struct{}),
		sdmc:            make(map[uint64]struct{}),
		gamecard:        make(map[uint64]struct{}),
		tickets:         make(map[uint64][]uint64),
		titleContexts:   make(map[uint64]*ImportContext),
		contentContexts: make(map[uint64][]*ImportContentContext),
		installLimiter:  rate.NewLimiter(installPacing, 1),
	}
}

// SetDB attaches a durability side-index and reconciles it against the
// current directory-scan truth, per SPEC_FULL §4.K: on process start the
// directory layout wins and the side-index is brought up to date, not the
// other way around.
func (c *Catalogue) SetDB(db *RegistryDB) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	if db == nil {
		return nil
	}
	if err := db.Reconcile(c.snapshotLocked()); err != nil {
		return err
	}
	restored, err := db.LoadImportContexts()
	if err != nil {
		return err
	}
	for id, ctx := range restored {
		c.titleContexts[id] = ctx
	}
	return nil
}

// snapshotLocked must be called with mu held.
func (c *Catalogue) snapshotLocked() CatalogueSnapshot {
	snap := CatalogueSnapshot{Tickets: make(map[uint64][]uint64, len(c.tickets))}
	for id := range c.nand {
		snap.NAND = append(snap.NAND, id)
	}
	for id := range c.sdmc {
		snap.SDMC = append(snap.SDMC, id)
	}
	for id, tks := range c.tickets {
		snap.Tickets[id] = append([]uint64(nil), tks...)
	}
	sort.Slice(snap.NAND, func(i, j int) bool { return snap.NAND[i] < snap.NAND[j] })
	sort.Slice(snap.SDMC, func(i, j int) bool { return snap.SDMC[i] < snap.SDMC[j] })
	return snap
}

// CatalogueSnapshot is the directory-scan truth handed to RegistryDB.Reconcile.
type CatalogueSnapshot struct {
	NAND, SDMC []uint64
	Tickets    map[uint64][]uint64
}

// ScanAll enumerates the NAND and SDMC title directories (depth 2, per spec
// §4.K) and the ticket directory, replacing the in-memory sets. GameCard
// titles are not discovered this way (no fixed GameCard media root); callers
// insert them with SetGameCardTitle when a card is mounted.
func (c *Catalogue) ScanAll() error {
	nandResults, err := scanMediaRoot(c.roots.NAND, MediaNAND)
	if err != nil {
		return coreerr.New(coreerr.KindIOError, "registry.ScanAll", err)
	}
	sdmcResults, err := scanMediaRoot(c.roots.SDMC, MediaSDMC)
	if err != nil {
		return coreerr.New(coreerr.KindIOError, "registry.ScanAll", err)
	}
	tickets, err := scanTickets(c.roots.NAND)
	if err != nil {
		return coreerr.New(coreerr.KindIOError, "registry.ScanAll", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nand = make(map[uint64]struct{}, len(nandResults))
	for _, r := range nandResults {
		c.nand[r.TitleID] = struct{}{}
	}
	c.sdmc = make(map[uint64]struct{}, len(sdmcResults))
	for _, r := range sdmcResults {
		c.sdmc[r.TitleID] = struct{}{}
	}
	c.tickets = tickets
	return nil
}

// SetGameCardTitle records (or clears) the currently-inserted GameCard's title.
func (c *Catalogue) SetGameCardTitle(titleID uint64, present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if present {
		c.gamecard[titleID] = struct{}{}
	} else {
		delete(c.gamecard, titleID)
	}
}

// NumPrograms returns the number of installed titles for a media type.
func (c *Catalogue) NumPrograms(media MediaType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.setFor(media))
}

// ProgramList returns every installed title-id for a media type, sorted.
func (c *Catalogue) ProgramList(media MediaType) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.setFor(media)
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Catalogue) setFor(media MediaType) map[uint64]struct{} {
	switch media {
	case MediaNAND:
		return c.nand
	case MediaSDMC:
		return c.sdmc
	case MediaGameCard:
		return c.gamecard
	default:
		return nil
	}
}

// HasProgram reports whether titleID is installed on media.
func (c *Catalogue) HasProgram(media MediaType, titleID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.setFor(media)[titleID]
	return ok
}

// DeleteTitle removes titleID's on-disk directory from media and drops it
// from the in-memory program list (delete_user_program / DeleteTitle).
// GameCard titles have no on-disk directory to remove; only the in-memory
// entry is cleared.
func (c *Catalogue) DeleteTitle(media MediaType, titleID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.setFor(media)
	if set == nil {
		return coreerr.New(coreerr.KindInvalidArgument, "registry.DeleteTitle", fmt.Errorf("unknown media type"))
	}
	if root, ok := c.roots.root(media); ok {
		if err := os.RemoveAll(TitleDir(root, titleID)); err != nil && !os.IsNotExist(err) {
			return coreerr.New(coreerr.KindIOError, "registry.DeleteTitle", err)
		}
	}
	delete(set, titleID)
	return nil
}

// AddTicket records that ticketID is one of titleID's installed tickets.
func (c *Catalogue) AddTicket(titleID, ticketID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.tickets[titleID] {
		if existing == ticketID {
			return
		}
	}
	c.tickets[titleID] = append(c.tickets[titleID], ticketID)
	if c.db != nil {
		_ = c.db.SaveTicket(titleID, ticketID)
	}
}

// Tickets returns the ticket-ids installed for titleID.
func (c *Catalogue) Tickets(titleID uint64) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.tickets[titleID]...)
}

// BeginImportTitle creates or resets T's import context to waiting-for-import.
func (c *Catalogue) BeginImportTitle(titleID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, ok := c.titleContexts[titleID]
	if !ok {
		ctx = &ImportContext{TitleID: titleID}
		c.titleContexts[titleID] = ctx
	}
	beginImportTitle(ctx)
	c.persistContextLocked(ctx)
}

// StopImportTitle moves T's import context to resumable.
func (c *Catalogue) StopImportTitle(titleID uint64) error {
	ctx, err := c.mustContext(titleID, "registry.StopImportTitle")
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stopImportTitle(ctx)
	c.persistContextLocked(ctx)
	return nil
}

// ResumeImportTitle moves T's import context from resumable back to
// waiting-for-import.
func (c *Catalogue) ResumeImportTitle(titleID uint64) error {
	ctx, err := c.mustContext(titleID, "registry.ResumeImportTitle")
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := resumeImportTitle(ctx); err != nil {
		return err
	}
	c.persistContextLocked(ctx)
	return nil
}

// CancelImportTitle moves T's import context to deleting.
func (c *Catalogue) CancelImportTitle(titleID uint64) error {
	ctx, err := c.mustContext(titleID, "registry.CancelImportTitle")
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cancelImportTitle(ctx)
	c.persistContextLocked(ctx)
	return nil
}

// EndImportTitle moves T's import context to waiting-for-commit.
func (c *Catalogue) EndImportTitle(titleID uint64) error {
	ctx, err := c.mustContext(titleID, "registry.EndImportTitle")
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	endImportTitle(ctx)
	c.persistContextLocked(ctx)
	return nil
}

// CommitImportTitles advances the listed titles' contexts from
// waiting-for-commit to needs-cleanup, pruning stale contexts across the
// whole map when cleanup is set.
func (c *Catalogue) CommitImportTitles(titleIDs []uint64, cleanup bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	commitImportTitles(c.titleContexts, titleIDs, cleanup)
	if c.db != nil {
		return c.db.ReplaceImportContexts(c.titleContexts)
	}
	return nil
}

// DeleteImportTitleContext removes T's context outright, regardless of state.
func (c *Catalogue) DeleteImportTitleContext(titleID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.titleContexts, titleID)
	if c.db != nil {
		_ = c.db.DeleteImportContext(titleID)
	}
}

// ImportTitleContext returns a copy of T's import context, if any.
func (c *Catalogue) ImportTitleContext(titleID uint64) (ImportContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, ok := c.titleContexts[titleID]
	if !ok {
		return ImportContext{}, false
	}
	return *ctx, true
}

// NumImportTitleContexts counts contexts matching the given state filter.
func (c *Catalogue) NumImportTitleContexts(filter ImportState) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ctx := range c.titleContexts {
		if ctx.State == filter {
			n++
		}
	}
	return n
}

func (c *Catalogue) mustContext(titleID uint64, op string) (*ImportContext, error) {
	c.mu.Lock()
	ctx, ok := c.titleContexts[titleID]
	c.mu.Unlock()
	if !ok {
		return nil, coreerr.New(coreerr.KindNotFound, op, fmt.Errorf("no import context for title %016x", titleID))
	}
	return ctx, nil
}

// persistContextLocked must be called with mu held.
func (c *Catalogue) persistContextLocked(ctx *ImportContext) {
	if c.db != nil {
		_ = c.db.SaveImportContext(ctx)
	}
}

// LockSystemUpdater / UnlockSystemUpdater expose the process-wide advisory
// mutex serializing system-title updates (spec §4.K "system-updater" lock).
func (c *Catalogue) LockSystemUpdater()   { c.systemUpdaterMu.Lock() }
func (c *Catalogue) UnlockSystemUpdater() { c.systemUpdaterMu.Unlock() }

// LockCIAInstall waits for the install rate limiter, then acquires the
// "cia-installing" flag that serializes an archive-install critical section
// against itself. UnlockCIAInstall releases it.
func (c *Catalogue) LockCIAInstall() error {
	if err := c.installLimiter.Wait(context.Background()); err != nil {
		return coreerr.New(coreerr.KindIOError, "registry.LockCIAInstall", err)
	}
	c.ciaInstallMu.Lock()
	return nil
}
func (c *Catalogue) UnlockCIAInstall() { c.ciaInstallMu.Unlock() }
