package crypto

import (
	"crypto/sha256"
	"fmt"
	"math/big"
)

// ECCPrivateKey and ECCPublicKey mirror the fixed-size wire layout the
// original HW::ECC::PrivateKey/PublicKey structs use: a 30-byte private
// scalar and a 60-byte (x||y) public point, big-endian.
type ECCPrivateKey struct {
	X [30]byte
}

type ECCPublicKey struct {
	X, Y [30]byte
}

type ECCSignature struct {
	RS [60]byte
}

func (k ECCPrivateKey) scalar() *big.Int { return bytesToElement(k.X[:]) }

func (k ECCPublicKey) point() ec2nPoint {
	return ec2nPoint{x: bytesToElement(k.X[:]), y: bytesToElement(k.Y[:])}
}

// GenerateECCKeyPair creates a fresh sect233r1 keypair, equivalent to
// HW::ECC::GenerateKeyPair.
func GenerateECCKeyPair() (ECCPrivateKey, ECCPublicKey, error) {
	k, err := generateScalar()
	if err != nil {
		return ECCPrivateKey{}, ECCPublicKey{}, fmt.Errorf("crypto: generate ecc key: %w", err)
	}
	pub := scalarMul(k, basePoint())
	var priv ECCPrivateKey
	copy(priv.X[:], elementToBytes(k, 30))
	var pk ECCPublicKey
	copy(pk.X[:], elementToBytes(pub.x, 30))
	copy(pk.Y[:], elementToBytes(pub.y, 30))
	return priv, pk, nil
}

// MakeECCPublicKey derives the public point for a private scalar, mirroring
// HW::ECC::MakePublicKey. The Nintendo key generator does not reduce the
// scalar mod the subgroup order, so callers that loaded a private key from
// console data must reduce it first (see FixupPrivateScalar).
func MakeECCPublicKey(priv ECCPrivateKey) ECCPublicKey {
	pub := scalarMul(priv.scalar(), basePoint())
	var pk ECCPublicKey
	copy(pk.X[:], elementToBytes(pub.x, 30))
	copy(pk.Y[:], elementToBytes(pub.y, 30))
	return pk
}

// FixupPrivateScalar reduces a raw console-supplied private scalar modulo
// the subgroup order, matching HW::ECC::CreateECCPrivateKey's fix_up path:
// CryptoPP rejects scalars outside [0, n) and Nintendo's own key generator
// never enforced that bound.
func FixupPrivateScalar(x []byte) ECCPrivateKey {
	v := new(big.Int).Mod(bytesToElement(x), sect233r1N)
	var priv ECCPrivateKey
	copy(priv.X[:], elementToBytes(v, 30))
	return priv
}

// ECDSASect233r1Sign signs data with an ECDSA-SHA256 scheme over sect233r1,
// equivalent to HW::ECC::Sign.
func ECDSASect233r1Sign(data []byte, priv ECCPrivateKey) (ECCSignature, error) {
	h := sha256.Sum256(data)
	e := hashToScalar(h[:])
	d := priv.scalar()

	for {
		k, err := generateScalar()
		if err != nil {
			return ECCSignature{}, fmt.Errorf("crypto: ecdsa sign: %w", err)
		}
		r := new(big.Int).Mod(scalarMul(k, basePoint()).x, sect233r1N)
		if r.Sign() == 0 {
			continue
		}
		kInv := new(big.Int).ModInverse(k, sect233r1N)
		if kInv == nil {
			continue
		}
		s := new(big.Int).Mul(r, d)
		s.Add(s, e)
		s.Mul(s, kInv)
		s.Mod(s, sect233r1N)
		if s.Sign() == 0 {
			continue
		}
		var sig ECCSignature
		copy(sig.RS[:30], elementToBytes(r, 30))
		copy(sig.RS[30:], elementToBytes(s, 30))
		return sig, nil
	}
}

// ECDSASect233r1Verify never raises: an invalid signature simply returns
// false, per the crypto facade's "verify routines never raise" contract.
func ECDSASect233r1Verify(data []byte, sig ECCSignature, pub ECCPublicKey) bool {
	r := bytesToElement(sig.RS[:30])
	s := bytesToElement(sig.RS[30:])
	if r.Sign() == 0 || r.Cmp(sect233r1N) >= 0 || s.Sign() == 0 || s.Cmp(sect233r1N) >= 0 {
		return false
	}
	h := sha256.Sum256(data)
	e := hashToScalar(h[:])

	sInv := new(big.Int).ModInverse(s, sect233r1N)
	if sInv == nil {
		return false
	}
	u1 := new(big.Int).Mul(e, sInv)
	u1.Mod(u1, sect233r1N)
	u2 := new(big.Int).Mul(r, sInv)
	u2.Mod(u2, sect233r1N)

	p1 := scalarMul(u1, basePoint())
	p2 := scalarMul(u2, pub.point())
	sum := ec2nAdd(p1, p2)
	if sum.isInfinity() {
		return false
	}
	v := new(big.Int).Mod(sum.x, sect233r1N)
	return v.Cmp(r) == 0
}

// ECDHSect233r1Agree computes the shared x-coordinate of priv*othersPublic,
// equivalent to HW::ECC::Agree (CryptoPP's NoCofactorMultiplication ECDH).
func ECDHSect233r1Agree(priv ECCPrivateKey, othersPublic ECCPublicKey) []byte {
	shared := scalarMul(priv.scalar(), othersPublic.point())
	if shared.isInfinity() {
		return make([]byte, 30)
	}
	return elementToBytes(shared.x, 30)
}

// hashToScalar truncates/reduces a hash digest to a scalar mod n, the usual
// ECDSA bit-length adjustment (sect233r1's order is 233 bits, so a 256-bit
// SHA-256 digest is simply taken mod n).
func hashToScalar(h []byte) *big.Int {
	return new(big.Int).Mod(bytesToElement(h), sect233r1N)
}
