package crypto

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // SHA-1 is a mandated wire-format primitive, not a new design choice.
	"crypto/sha256"
)

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// SHA1 returns the SHA-1 digest of data. SHA-1 is required by the ticket
// title-key fixup algorithm (§4.E) and console OTP/CTCert verification; it
// is not a cryptographic choice made by this module.
func SHA1(data []byte) [20]byte {
	return sha1.Sum(data)
}

// HMACSHA256 computes HMAC-SHA256(key, data), the primitive the key store's
// nfcSecretNHmacKey entries are keys for; nothing in this module calls it.
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
