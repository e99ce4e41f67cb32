package registry

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ScanResult is one title discovered by a directory scan.
type ScanResult struct {
	Media   MediaType
	TitleID uint64
}

// TitleDirRoot returns {media-root}/title.
func TitleDirRoot(root string) string { return filepath.Join(root, "title") }

// scanMediaRoot enumerates root/title/{high}/{low} to a fixed depth of 2,
// constructing a title-id from the two hex path components whenever a
// content/ directory exists for that leaf (an empty title directory with no
// content is not considered installed), matching scan_all's leaf test.
func scanMediaRoot(root string, media MediaType) ([]ScanResult, error) {
	titleRoot := TitleDirRoot(root)
	highEntries, err := os.ReadDir(titleRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []ScanResult
	for _, highEntry := range highEntries {
		if !highEntry.IsDir() {
			continue
		}
		high, err := strconv.ParseUint(highEntry.Name(), 16, 32)
		if err != nil {
			continue
		}
		lowEntries, err := os.ReadDir(filepath.Join(titleRoot, highEntry.Name()))
		if err != nil {
			continue
		}
		for _, lowEntry := range lowEntries {
			if !lowEntry.IsDir() {
				continue
			}
			low, err := strconv.ParseUint(lowEntry.Name(), 16, 32)
			if err != nil {
				continue
			}
			titleID := (high << 32) | low
			contentDir := ContentDir(root, titleID)
			if info, err := os.Stat(contentDir); err == nil && info.IsDir() {
				out = append(out, ScanResult{Media: media, TitleID: titleID})
			}
		}
	}
	return out, nil
}

// scanTickets enumerates nandRoot's ticket directory, parsing filenames of
// the form {title-id:016X}.{ticket-id:016X}.tik into the title-id -> []ticket-id
// multimap.
func scanTickets(nandRoot string) (map[uint64][]uint64, error) {
	out := make(map[uint64][]uint64)
	dir := TicketDir(nandRoot)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".tik")
		if name == e.Name() {
			continue // no .tik suffix
		}
		parts := strings.SplitN(name, ".", 2)
		if len(parts) != 2 {
			continue
		}
		titleID, err := strconv.ParseUint(parts[0], 16, 64)
		if err != nil {
			continue
		}
		ticketID, err := strconv.ParseUint(parts[1], 16, 64)
		if err != nil {
			continue
		}
		out[titleID] = append(out[titleID], ticketID)
	}
	return out, nil
}
