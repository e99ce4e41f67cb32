package registry

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RegistryDB is the (NEW, domain stack) durability side-index for the
// registry's ticket multimap and import-context bookkeeping, mirroring the
// teacher's sqlite.DB-backed voucher/session store so that in-flight import
// state survives a process restart. The directory layout under Roots
// remains the source of truth for installed content; this side-table only
// ever gets reconciled against it, never the reverse.
type RegistryDB struct {
	gdb *gorm.DB
}

// ticketRow persists one (title-id, ticket-id) multimap entry.
type ticketRow struct {
	TitleID  uint64 `gorm:"primaryKey;autoIncrement:false;index:idx_ticket_title"`
	TicketID uint64 `gorm:"primaryKey;autoIncrement:false"`
}

// importContextRow persists one ImportContext.
type importContextRow struct {
	TitleID uint64 `gorm:"primaryKey;autoIncrement:false"`
	State   int
}

func (ticketRow) TableName() string        { return "registry_tickets" }
func (importContextRow) TableName() string { return "registry_import_contexts" }

// OpenRegistryDB opens (creating if absent) the side-index's schema at dsn,
// dialed through dbType's gorm driver ("sqlite" for a single-console CLI
// install, "postgres" for a shared multi-console deployment fronted by the
// same registry).
func OpenRegistryDB(dbType, dsn string) (*RegistryDB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(dbType) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("registry: unsupported database type %q (must be sqlite or postgres)", dbType)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	if err := gdb.AutoMigrate(&ticketRow{}, &importContextRow{}); err != nil {
		return nil, fmt.Errorf("migrate registry db: %w", err)
	}
	return &RegistryDB{gdb: gdb}, nil
}

// Reconcile brings the side-index's ticket rows in line with the
// directory-scan truth: rows for titles no longer present on disk are
// dropped, and tickets discovered on disk but missing from the side-index
// are inserted.
func (db *RegistryDB) Reconcile(snap CatalogueSnapshot) error {
	known := make(map[uint64]bool, len(snap.NAND)+len(snap.SDMC))
	for _, id := range snap.NAND {
		known[id] = true
	}
	for _, id := range snap.SDMC {
		known[id] = true
	}

	var rows []ticketRow
	if err := db.gdb.Find(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		if !known[r.TitleID] {
			if err := db.gdb.Delete(&ticketRow{}, "title_id = ? AND ticket_id = ?", r.TitleID, r.TicketID).Error; err != nil {
				return err
			}
		}
	}
	for titleID, ticketIDs := range snap.Tickets {
		for _, ticketID := range ticketIDs {
			row := ticketRow{TitleID: titleID, TicketID: ticketID}
			if err := db.gdb.Where(row).FirstOrCreate(&row).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveTicket upserts one (title-id, ticket-id) multimap entry.
func (db *RegistryDB) SaveTicket(titleID, ticketID uint64) error {
	row := ticketRow{TitleID: titleID, TicketID: ticketID}
	return db.gdb.Where(row).FirstOrCreate(&row).Error
}

// SaveImportContext upserts one title's import-context row.
func (db *RegistryDB) SaveImportContext(ctx *ImportContext) error {
	row := importContextRow{TitleID: ctx.TitleID, State: int(ctx.State)}
	return db.gdb.Save(&row).Error
}

// DeleteImportContext removes titleID's import-context row outright.
func (db *RegistryDB) DeleteImportContext(titleID uint64) error {
	return db.gdb.Delete(&importContextRow{}, "title_id = ?", titleID).Error
}

// ReplaceImportContexts overwrites the side-index with exactly the contexts
// present in contexts, used after CommitImportTitles prunes in memory.
func (db *RegistryDB) ReplaceImportContexts(contexts map[uint64]*ImportContext) error {
	return db.gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM registry_import_contexts").Error; err != nil {
			return err
		}
		for _, ctx := range contexts {
			row := importContextRow{TitleID: ctx.TitleID, State: int(ctx.State)}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadImportContexts restores every persisted import context, used to
// repopulate the in-memory map on process start.
func (db *RegistryDB) LoadImportContexts() (map[uint64]*ImportContext, error) {
	var rows []importContextRow
	if err := db.gdb.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint64]*ImportContext, len(rows))
	for _, r := range rows {
		out[r.TitleID] = &ImportContext{TitleID: r.TitleID, State: ImportState(r.State)}
	}
	return out, nil
}

// Close releases the underlying database connection.
func (db *RegistryDB) Close() error {
	sqlDB, err := db.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
