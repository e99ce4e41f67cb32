package registry

import (
	"os"

	"github.com/azahar-emu/titlecore/internal/cia"
	"github.com/azahar-emu/titlecore/internal/crypto"
	"github.com/azahar-emu/titlecore/internal/keystore"
	"github.com/azahar-emu/titlecore/internal/ncch"
	"github.com/azahar-emu/titlecore/internal/ticket"
	"github.com/azahar-emu/titlecore/internal/tmd"
	"github.com/azahar-emu/titlecore/internal/unique"
)

// InstallerOptions configures NewCIADependencies.
type InstallerOptions struct {
	Media                MediaType
	Store                *keystore.Store
	ConsoleState         *unique.ConsoleState
	CTCertPrivate        crypto.ECCPrivateKey
	DecryptionAuthorized bool
	Seeds                ncch.SeedLookup
	Compress             bool
}

// NewCIADependencies wires a cia.Importer's registry-provided collaborators
// to this catalogue for an import already known to belong to titleID (the
// caller resolves this from the archive's ticket before streaming the rest
// of the file, mirroring begin_import_title(T)'s caller-supplied T):
// ticket persistence into the ticket multimap and ticket.db, TMD persistence
// into the title's update-slot directory (§4.F), and content sinks layered
// per §4.H/§4.G/§4.I.
func (c *Catalogue) NewCIADependencies(titleID uint64, opts InstallerOptions) cia.Dependencies {
	wrapKey, wrapIV, _ := WrappingKeyIVForConsole(opts.ConsoleState)

	return cia.Dependencies{
		ConsoleState:  opts.ConsoleState,
		CTCertPrivate: opts.CTCertPrivate,

		PersistTicket: func(t *ticket.Ticket) error {
			if err := os.MkdirAll(TicketDir(c.roots.NAND), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(TicketPath(c.roots.NAND, t.TitleID, t.TicketID), t.Serialize(), 0o644); err != nil {
				return err
			}
			c.AddTicket(t.TitleID, t.TicketID)
			return nil
		},

		ResolveUpdateSlotAndOld: func(titleID uint64) (uint32, *tmd.TMD, uint32, bool, error) {
			root, _ := c.roots.root(opts.Media)
			dir := ContentDir(root, titleID)
			target, _, update, hadExisting, err := tmd.ResolveUpdateSlot(dir)
			if err != nil {
				return 0, nil, 0, false, err
			}
			if !hadExisting {
				return target, nil, 0, false, nil
			}
			raw, err := os.ReadFile(tmd.SlotPath(dir, update))
			if err != nil {
				return target, nil, update, true, nil
			}
			old, err := tmd.Load(raw)
			if err != nil {
				return target, nil, update, true, nil
			}
			return target, old, update, true, nil
		},

		PersistTMD: func(titleID uint64, slot uint32, t *tmd.TMD) error {
			root, _ := c.roots.root(opts.Media)
			dir := ContentDir(root, titleID)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			return os.WriteFile(tmd.SlotPath(dir, slot), t.Serialize(), 0o644)
		},

		OpenContentSink: OpenContentSink(titleID, ContentSinkOptions{
			Roots:                c.roots,
			Media:                opts.Media,
			Store:                opts.Store,
			DecryptionAuthorized: opts.DecryptionAuthorized,
			Seeds:                opts.Seeds,
			Compress:             opts.Compress,
			WrapKey:              wrapKey,
			WrapIV:               wrapIV,
		}),

		DeleteStaleContent: func(titleID uint64, contentID uint32) error {
			root, _ := c.roots.root(opts.Media)
			err := os.Remove(ContentFilePath(root, titleID, contentID))
			if os.IsNotExist(err) {
				return nil
			}
			return err
		},

		DeleteTMDSlot: func(titleID uint64, slot uint32) error {
			root, _ := c.roots.root(opts.Media)
			err := os.Remove(tmd.SlotPath(ContentDir(root, titleID), slot))
			if os.IsNotExist(err) {
				return nil
			}
			return err
		},

		DeleteTitleContent: func(titleID uint64) error {
			root, _ := c.roots.root(opts.Media)
			err := os.RemoveAll(ContentDir(root, titleID))
			if os.IsNotExist(err) {
				return nil
			}
			return err
		},
	}
}
