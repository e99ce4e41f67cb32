package keystore

import (
	"bytes"
	_ "embed"
	"io"

	"github.com/azahar-emu/titlecore/internal/crypto"
)

// defaultPreset is a minimal placeholder preset table embedded into the
// binary, used only when the caller supplies no on-disk key table. Real
// console key tables are never shipped with this module; callers running
// against real console data must supply their own via Default(r) or
// LoadPresetKeys. The zero-key decrypt path below exists for the common
// real-world shape of these tables (an AES-CBC, zero-key/zero-IV wrapped
// blob), matching HW::AES::LoadPresetKeys's fallback branch.
//
//go:embed testdata/default_preset.txt
var defaultPreset []byte

func fallbackPresetReader() io.Reader {
	return bytes.NewReader(defaultPreset)
}

// DecryptZeroKeyBlob decrypts a preset-table blob that was wrapped with
// AES-CBC using an all-zero 16-byte key and IV, the scheme
// HW::AES::LoadPresetKeys falls back to when no plaintext table is found
// on disk.
func DecryptZeroKeyBlob(blob []byte) []byte {
	var zeroKey, zeroIV [16]byte
	return crypto.AESCBCDecrypt(zeroKey[:], zeroIV[:], blob)
}
