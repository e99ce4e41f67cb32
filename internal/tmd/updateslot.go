package tmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/azahar-emu/titlecore/internal/coreerr"
)

var slotFileRe = regexp.MustCompile(`^([0-9a-fA-F]{8})\.tmd$`)

// SlotName formats a slot number as the registry's "{N:08x}.tmd" filename.
func SlotName(n uint32) string { return fmt.Sprintf("%08x.tmd", n) }

// listSlots returns every {N:08x}.tmd slot number present in dir, in no
// particular order.
func listSlots(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var slots []uint32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := slotFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[1], 16, 32)
		if err != nil {
			continue
		}
		slots = append(slots, uint32(n))
	}
	return slots, nil
}

// ResolveUpdateSlot implements spec §4.F's update-slot rule: scan dir for
// "{N:08x}.tmd" files, compute base = min(N) and update = max(N); the
// incoming write goes to (update+1 if base==update else update):08x.tmd.
// An empty directory resolves to slot 0.
func ResolveUpdateSlot(dir string) (target uint32, base uint32, update uint32, hadExisting bool, err error) {
	const op = "tmd.ResolveUpdateSlot"
	slots, lerr := listSlots(dir)
	if lerr != nil {
		return 0, 0, 0, false, coreerr.New(coreerr.KindIOError, op, lerr)
	}
	if len(slots) == 0 {
		return 0, 0, 0, false, nil
	}
	base, update = slots[0], slots[0]
	for _, s := range slots[1:] {
		if s < base {
			base = s
		}
		if s > update {
			update = s
		}
	}
	if base == update {
		target = update + 1
	} else {
		target = update
	}
	return target, base, update, true, nil
}

// SlotPath joins dir with the slot filename for n.
func SlotPath(dir string, n uint32) string { return filepath.Join(dir, SlotName(n)) }
