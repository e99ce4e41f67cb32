package unique

import "github.com/azahar-emu/titlecore/internal/crypto"

// movableLFCSSize and movableFullSize are the two on-disk sizes LoadMovable
// accepts: a bare LocalFriendCodeSeedB-shaped file, or the "full" variant
// carrying an additional CMAC key-Y blob, matching MovableSed/MovableSedFull.
const (
	movableLFCSSize = 12 + 0x100 // seed + RSA-2048 signature
	movableKeyYSize = 16
	movableFullSize = movableLFCSSize + movableKeyYSize
)

// MovableSed is the movable seed: a LocalFriendCodeSeedB plus, in the
// "full" on-disk variant, an additional key-Y blob. Its signature check
// delegates entirely to the embedded LocalFriendCodeSeedB, matching
// MovableSed::VerifySignature.
type MovableSed struct {
	LFCS LocalFriendCodeSeedB
	KeyY *[16]byte // nil unless the full variant was loaded
}

func (m *MovableSed) VerifySignature(lfcsKey crypto.RSAKey) bool {
	return m.LFCS.VerifySignature(lfcsKey)
}

// LoadMovable parses either on-disk size, matching
// HW::UniqueData::LoadMovable.
func LoadMovable(raw []byte, lfcsKey crypto.RSAKey) (*MovableSed, SecureDataLoadStatus) {
	if len(raw) != movableFullSize && len(raw) != movableLFCSSize {
		return nil, StatusInvalid
	}
	m := &MovableSed{}
	copy(m.LFCS.Seed[:], raw[:12])
	m.LFCS.Signature = raw[12:movableLFCSSize]
	if len(raw) == movableFullSize {
		var keyY [16]byte
		copy(keyY[:], raw[movableLFCSSize:movableFullSize])
		m.KeyY = &keyY
	}
	if m.VerifySignature(lfcsKey) {
		return m, StatusLoaded
	}
	return m, StatusInvalidSignature
}
