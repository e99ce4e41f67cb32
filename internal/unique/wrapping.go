package unique

import (
	"encoding/binary"

	"github.com/azahar-emu/titlecore/internal/crypto"
)

// CryptoFilePurpose tags which per-console wrapping-file use case a key is
// being derived for (movable.sed, NFC data, ...), matching
// UniqueCryptoFileID.
type CryptoFilePurpose uint32

const (
	PurposeMovable CryptoFilePurpose = iota
	PurposeNFC
	// PurposeTitleContent wraps installed-title content/TMD files under
	// title/, matching the registry's per-title CryptoIOFile purpose.
	PurposeTitleContent
)

// WrappingKeyIV derives the per-console AES-CTR key and partial IV for
// purpose, matching HW::UniqueData::OpenUniqueCryptoFile: digest =
// SHA256(CTCert.public_key || device_id || purpose); key = digest[0:16];
// ctr = digest[16:28] || u32_be(0).
func WrappingKeyIV(ctCertPublic crypto.ECCPublicKey, deviceID uint32, purpose CryptoFilePurpose) (key [16]byte, ctr [16]byte) {
	hashData := make([]byte, 0, 60+4+4)
	hashData = append(hashData, ctCertPublic.X[:]...)
	hashData = append(hashData, ctCertPublic.Y[:]...)
	var idBuf, purposeBuf [4]byte
	binary.BigEndian.PutUint32(idBuf[:], deviceID)
	binary.BigEndian.PutUint32(purposeBuf[:], uint32(purpose))
	hashData = append(hashData, idBuf[:]...)
	hashData = append(hashData, purposeBuf[:]...)

	digest := crypto.SHA256(hashData)
	copy(key[:], digest[0:16])
	copy(ctr[:12], digest[16:28])
	// ctr[12:16] stays zero, matching the original's 12-byte partial IV
	// plus a zeroed trailing u32 counter word.
	return key, ctr
}
