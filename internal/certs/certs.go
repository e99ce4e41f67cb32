// Package certs implements the generic signed-body certificate object:
// (sig-type, signature, body, public-key), with ECDSA (sect233r1)
// verification, signing, and ECDH agreement. RSA public keys are carried and
// serialized, but Verify, VerifyMyself and Sign handle ECC only; an RSA
// certificate never verifies or signs. Grounded on
// original_source/core/file_sys/certificate.cpp.
package certs

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/azahar-emu/titlecore/internal/crypto"
)

// SignatureType tags the signature/key scheme a Certificate uses.
type SignatureType uint32

const (
	SignatureRSA4096SHA256 SignatureType = 0x10000
	SignatureRSA2048SHA256 SignatureType = 0x10001
	SignatureECDSASHA256   SignatureType = 0x10002
)

// KeyType tags the public-key encoding carried in the certificate body.
type KeyType uint32

const (
	KeyTypeRSA4096 KeyType = 0
	KeyTypeRSA2048 KeyType = 1
	KeyTypeECC     KeyType = 2
)

// Body is the certificate's signed payload.
type Body struct {
	Issuer     [64]byte
	KeyType    KeyType
	Name       [64]byte
	Expiration uint32
}

// Certificate is a signed object: sig-type, signature bytes, body, and
// embedded public key (ECC 2x30 bytes, or RSA modulus+exponent).
type Certificate struct {
	SigType   SignatureType
	Signature []byte

	Body Body

	eccPublic    crypto.ECCPublicKey
	eccPrivate   *crypto.ECCPrivateKey
	rsaPublic    crypto.RSAKey
}

// FromPrebuiltECC constructs a Certificate whose private key, public key,
// and signature are all supplied directly (the console's own CTCert is
// derived this way from OTP fields, not freshly generated — see
// internal/unique.BuildCTCert).
func FromPrebuiltECC(issuer, name [64]byte, expiration uint32, priv crypto.ECCPrivateKey, sig crypto.ECCSignature) *Certificate {
	c := &Certificate{
		SigType: SignatureECDSASHA256,
		Body: Body{
			Issuer:     issuer,
			KeyType:    KeyTypeECC,
			Name:       name,
			Expiration: expiration,
		},
		eccPrivate: &priv,
	}
	c.eccPublic = crypto.MakeECCPublicKey(priv)
	c.Signature = sig.RS[:]
	return c
}

// BuildECC generates a fresh sect233r1 keypair and signs the new
// certificate's body with parent's private key, matching
// FileSys::Certificate::BuildECC(parent, issuer, name, expiration). parent
// is borrowed only to sign; the returned certificate holds no
// back-reference to it (spec §9 design note on cyclic references).
func BuildECC(parent *Certificate, issuer, name [64]byte, expiration uint32) (*Certificate, error) {
	priv, pub, err := crypto.GenerateECCKeyPair()
	if err != nil {
		return nil, fmt.Errorf("certs: generate keypair: %w", err)
	}
	c := &Certificate{
		SigType: SignatureECDSASHA256,
		Body: Body{
			Issuer:     issuer,
			KeyType:    KeyTypeECC,
			Name:       name,
			Expiration: expiration,
		},
		eccPrivate: &priv,
		eccPublic:  pub,
	}
	sig, err := parent.Sign(c.SerializeBody())
	if err != nil {
		return nil, fmt.Errorf("certs: sign with parent: %w", err)
	}
	c.Signature = sig.RS[:]

	if !c.VerifyMyself(parent.PublicKeyECC()) {
		slog.Error("certs: failed to verify newly generated certificate")
	}
	return c, nil
}

// PublicKeyECC returns the certificate's ECC public key.
func (c *Certificate) PublicKeyECC() crypto.ECCPublicKey { return c.eccPublic }

// PrivateKeyECC returns the certificate's ECC private key, if any (only set
// for certificates this process built or derived, not ones merely loaded
// for verification).
func (c *Certificate) PrivateKeyECC() (crypto.ECCPrivateKey, bool) {
	if c.eccPrivate == nil {
		return crypto.ECCPrivateKey{}, false
	}
	return *c.eccPrivate, true
}

// VerifyMyself checks the certificate's signature against parentPublic. It
// logs a warning and returns false for an unsupported signature type; a
// signature that fails to verify returns false without logging. It does
// not panic, matching
// FileSys::Certificate::VerifyMyself's "log, don't throw" contract (the one
// place in this module a crypto failure is deliberately swallowed into a
// plain bool rather than propagated as a typed error, per spec §4.D).
func (c *Certificate) VerifyMyself(parentPublic crypto.ECCPublicKey) bool {
	if c.SigType != SignatureECDSASHA256 {
		slog.Warn("certs: unimplemented signature type in VerifyMyself", "type", c.SigType)
		return false
	}
	var sig crypto.ECCSignature
	copy(sig.RS[:], c.Signature)
	return crypto.ECDSASect233r1Verify(c.SerializeBody(), sig, parentPublic)
}

// Verify checks signature over data against this certificate's own public
// key, dispatching by key type. Unsupported key types return false without
// raising.
func (c *Certificate) Verify(data []byte, sig crypto.ECCSignature) bool {
	if c.Body.KeyType != KeyTypeECC {
		return false
	}
	return crypto.ECDSASect233r1Verify(data, sig, c.eccPublic)
}

// Sign signs data with this certificate's own ECC private key.
func (c *Certificate) Sign(data []byte) (crypto.ECCSignature, error) {
	if c.Body.KeyType != KeyTypeECC || c.eccPrivate == nil {
		return crypto.ECCSignature{}, fmt.Errorf("certs: certificate has no ECC private key")
	}
	return crypto.ECDSASect233r1Sign(data, *c.eccPrivate)
}

// ECDHAgree computes an ECDH shared secret between this certificate's
// private key and othersPublic.
func (c *Certificate) ECDHAgree(othersPublic crypto.ECCPublicKey) ([]byte, error) {
	if c.Body.KeyType != KeyTypeECC || c.eccPrivate == nil {
		return nil, fmt.Errorf("certs: tried to agree with a non-ECC or keyless certificate")
	}
	return crypto.ECDHSect233r1Agree(*c.eccPrivate, othersPublic), nil
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}

// SerializeSignature returns the 0x40-aligned {sig-type, signature} block.
func (c *Certificate) SerializeSignature() []byte {
	out := make([]byte, alignUp(4+len(c.Signature), 0x40))
	binary.BigEndian.PutUint32(out, uint32(c.SigType))
	copy(out[4:], c.Signature)
	return out
}

// SerializeBody returns the 0x40-aligned {body, public-key} block.
func (c *Certificate) SerializeBody() []byte {
	pubKey := c.publicKeyBytes()
	size := binary.Size(rawBody{})
	out := make([]byte, alignUp(size+len(pubKey), 0x40))
	rb := rawBody{KeyType: uint32(c.Body.KeyType), Expiration: c.Body.Expiration}
	copy(rb.Issuer[:], c.Body.Issuer[:])
	copy(rb.Name[:], c.Body.Name[:])
	copy(out[:size], rb.encode())
	copy(out[size:], pubKey)
	return out
}

func (c *Certificate) publicKeyBytes() []byte {
	if c.Body.KeyType == KeyTypeECC {
		out := make([]byte, 60)
		copy(out[:30], c.eccPublic.X[:])
		copy(out[30:], c.eccPublic.Y[:])
		return out
	}
	out := make([]byte, len(c.rsaPublic.Modulus)+4)
	binary.BigEndian.PutUint32(out, c.rsaPublic.Exponent)
	copy(out[4:], c.rsaPublic.Modulus)
	return out
}

// Serialize returns the full wire form: signature block followed by body
// block, matching FileSys::Certificate::Serialize.
func (c *Certificate) Serialize() []byte {
	return append(c.SerializeSignature(), c.SerializeBody()...)
}

// rawBody is the fixed-size portion of Body as it appears on the wire.
type rawBody struct {
	Issuer     [64]byte
	KeyType    uint32
	Name       [64]byte
	Expiration uint32
}

func (r rawBody) encode() []byte {
	out := make([]byte, binary.Size(r))
	copy(out[:64], r.Issuer[:])
	binary.BigEndian.PutUint32(out[64:68], r.KeyType)
	copy(out[68:132], r.Name[:])
	binary.BigEndian.PutUint32(out[132:136], r.Expiration)
	return out
}
