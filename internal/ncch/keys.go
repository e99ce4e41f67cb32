package ncch

import (
	"fmt"

	"github.com/azahar-emu/titlecore/internal/coreerr"
	"github.com/azahar-emu/titlecore/internal/crypto"
	"github.com/azahar-emu/titlecore/internal/keystore"
)

// SeedLookup resolves a program-id's seed for seed-crypto content, matching
// FileSys::GetSeed. Callers without a seed database may pass nil; seed-crypto
// content then fails key derivation with KindNotFound.
type SeedLookup func(programID uint64) ([16]byte, bool)

var secondaryKeySlotNames = map[uint8]string{
	0: "NCCHSecure1",
	1: "NCCHSecure2",
	2: "NCCHSecure3",
	3: "NCCHSecure4",
}

// deriveKeys computes the primary and secondary AES keys for an encrypted
// NCCH, matching NCCHCryptoFile::Write's key-derivation block exactly:
// fixed_key forces both keys to zero; otherwise keyY_primary is the
// header's signature-derived bytes, keyY_secondary is either the same value
// or a seed-mixed SHA-256 digest, and both keys are composed through the
// key store's slot machinery (primary always via NCCHSecure1, secondary via
// the slot named by the header's 2-bit secondary-key-slot field).
func deriveKeys(st *keystore.Store, h header, seeds SeedLookup) (primary, secondary [16]byte, err error) {
	const op = "ncch.deriveKeys"
	if h.FixedKey {
		return [16]byte{}, [16]byte{}, nil
	}

	keyYPrimary := h.Signature

	keyYSecondary := keyYPrimary
	if h.SeedCrypto {
		var seed [16]byte
		var ok bool
		if seeds != nil {
			seed, ok = seeds(h.ProgramID)
		}
		if !ok {
			return [16]byte{}, [16]byte{}, coreerr.New(coreerr.KindNotFound, op, fmt.Errorf("seed for program %016x not found", h.ProgramID))
		}
		mix := make([]byte, 32)
		copy(mix[:16], keyYPrimary[:])
		copy(mix[16:], seed[:])
		digest := crypto.SHA256(mix)
		copy(keyYSecondary[:], digest[:16])
	}

	st.SetSlotY("NCCHSecure1", keyYPrimary)
	primaryNormal, ok := st.Slot("NCCHSecure1").Normal()
	if !ok {
		return [16]byte{}, [16]byte{}, coreerr.New(coreerr.KindNotFound, op, fmt.Errorf("NCCHSecure1 KeyX missing"))
	}
	primary = primaryNormal

	slotName, ok := secondaryKeySlotNames[h.SecondaryKeySlot]
	if !ok {
		return [16]byte{}, [16]byte{}, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("bad secondary key slot %d", h.SecondaryKeySlot))
	}
	st.SetSlotY(slotName, keyYSecondary)
	secondaryNormal, ok := st.Slot(slotName).Normal()
	if !ok {
		return [16]byte{}, [16]byte{}, coreerr.New(coreerr.KindNotFound, op, fmt.Errorf("%s KeyX missing", slotName))
	}
	secondary = secondaryNormal

	return primary, secondary, nil
}
