// Package registry implements the installed-title registry (§4.K): the
// on-disk directory layout, discovery scans, the ticket (title-id,
// ticket-id) multimap, and the import-context state machine. Grounded on
// original_source/core/hle/service/am/am.cpp's title/content path helpers
// (GetTitlePath, GetTitleMetadataPath, GetTitleContentPath) and the
// ImportTitleContext bookkeeping in am.h.
package registry

import (
	"fmt"
	"path/filepath"
)

// MediaType is the persistence target for an installed title.
type MediaType int

const (
	MediaNAND MediaType = iota
	MediaSDMC
	MediaGameCard
)

func (m MediaType) String() string {
	switch m {
	case MediaNAND:
		return "nand"
	case MediaSDMC:
		return "sdmc"
	case MediaGameCard:
		return "gamecard"
	default:
		return "unknown"
	}
}

// Roots is the set of on-disk media roots the registry scans and writes
// under.
type Roots struct {
	NAND string
	SDMC string
}

func (r Roots) root(m MediaType) (string, bool) {
	switch m {
	case MediaNAND:
		return r.NAND, true
	case MediaSDMC:
		return r.SDMC, true
	default:
		return "", false
	}
}

// splitTitleID splits a 64-bit title-id into its high/low 32-bit halves,
// each rendered as 8 lowercase hex digits, matching the registry's
// directory-naming convention.
func splitTitleID(titleID uint64) (high, low string) {
	return fmt.Sprintf("%08x", uint32(titleID>>32)), fmt.Sprintf("%08x", uint32(titleID))
}

// TitleDir returns {media-root}/title/{high:08x}/{low:08x}.
func TitleDir(root string, titleID uint64) string {
	high, low := splitTitleID(titleID)
	return filepath.Join(root, "title", high, low)
}

// ContentDir returns the title's content/ subdirectory, holding both the
// {N:08x}.tmd update slots and the {content-id:08x}.app content files.
func ContentDir(root string, titleID uint64) string {
	return filepath.Join(TitleDir(root, titleID), "content")
}

// ContentFilePath returns the on-disk path for one content-id of a title.
func ContentFilePath(root string, titleID uint64, contentID uint32) string {
	return filepath.Join(ContentDir(root, titleID), fmt.Sprintf("%08x.app", contentID))
}

// TicketPath returns {nand-root}/dbs/ticket.db/{title-id:016X}.{ticket-id:016X}.tik.
func TicketPath(nandRoot string, titleID, ticketID uint64) string {
	return filepath.Join(nandRoot, "dbs", "ticket.db", fmt.Sprintf("%016X.%016X.tik", titleID, ticketID))
}

// TicketDir returns the directory all tickets live under.
func TicketDir(nandRoot string) string {
	return filepath.Join(nandRoot, "dbs", "ticket.db")
}
