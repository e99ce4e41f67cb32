package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// RSAKey mirrors the key-store's slot0xN{X,M,P} layout: modulus, public
// exponent, and (when available) the private exponent D.
type RSAKey struct {
	Modulus  []byte
	Exponent uint32
	D        []byte // nil for a public-only key
}

func (k RSAKey) publicKey() *rsa.PublicKey {
	return &rsa.PublicKey{N: bytesToElement(k.Modulus), E: int(k.Exponent)}
}

func (k RSAKey) privateKey() (*rsa.PrivateKey, error) {
	if k.D == nil {
		return nil, fmt.Errorf("crypto: RSA key has no private exponent")
	}
	priv := &rsa.PrivateKey{
		PublicKey: *k.publicKey(),
		D:         bytesToElement(k.D),
	}
	// The key store does not retain p/q, so reconstruct the precomputed
	// values lazily is not possible; Sign below uses D directly via
	// rsa.DecryptPKCS1v15-style exponentiation instead of the precomputed
	// CRT path that crypto/rsa.Sign normally expects.
	return priv, nil
}

// RSAPKCS1v15SHA256Verify never raises: a malformed signature or key
// returns false, per the facade's "verify routines never raise" contract.
func RSAPKCS1v15SHA256Verify(key RSAKey, msg, sig []byte) bool {
	h := sha256.Sum256(msg)
	err := rsa.VerifyPKCS1v15(key.publicKey(), crypto.SHA256, h[:], sig)
	return err == nil
}

// RSAEncryptPKCS1v15 wraps msg (a session key+iv, typically) under key's
// public modulus, for export_ticket_wrapped-style key transport.
func RSAEncryptPKCS1v15(key RSAKey, msg []byte) ([]byte, error) {
	return rsa.EncryptPKCS1v15(rand.Reader, key.publicKey(), msg)
}

// RSAPKCS1v15SHA256Sign signs msg with key's private exponent. key-length
// mismatches (e.g. signing with a public-only key) are a programmer bug and
// return an error rather than panicking, since unlike AES this path is
// reached with data loaded from on-disk key material that may legitimately
// be public-only.
func RSAPKCS1v15SHA256Sign(key RSAKey, msg []byte) ([]byte, error) {
	priv, err := key.privateKey()
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(msg)
	return rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, h[:])
}
