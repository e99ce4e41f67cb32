package crypto

import (
	"crypto/rand"
	"math/big"
)

// sect233r1 (NIST B-233) domain parameters, polynomial basis, as consumed
// by CryptoPP::ASN1::sect233r1() in the original source. No library in the
// reference pack implements GF(2^m) binary-field curves, so the field
// (gf2m.go) and this curve are hand-rolled on math/big; see DESIGN.md.
var (
	sect233r1A = big.NewInt(1)
	sect233r1B = hexBig("066647EDE6C332C7F8C0923BB58213B333B20E9CE4281FE115F7D8F90AD")
	sect233r1Gx = hexBig("0FAC9DFCBAC8313BB2139F1BB755FEF65BC391F8B36F8F8EB7371FD558B")
	sect233r1Gy = hexBig("1006A08A41903350678E58528BEBF8A0BEFF867A7CA36716F7E01F81052")
	sect233r1N  = hexBig("01000000000000000000000000000013E974E72F8A6922031D2603CFE0D7")
)

func hexBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("crypto: invalid sect233r1 constant " + s)
	}
	return v
}

// ec2nPoint is an affine point on the sect233r1 curve y^2+xy = x^3+a*x^2+b
// over GF(2^233). A nil x denotes the point at infinity.
type ec2nPoint struct {
	x, y *big.Int
}

func infinity() ec2nPoint { return ec2nPoint{} }

func (p ec2nPoint) isInfinity() bool { return p.x == nil }

// double implements the standard binary-curve point-doubling formula:
// lambda = x + y/x; x3 = lambda^2 + lambda + a; y3 = x^2 + (lambda+1)*x3.
func ec2nDouble(p ec2nPoint) ec2nPoint {
	f := sect233r1Field
	if p.isInfinity() || p.x.Sign() == 0 {
		return infinity()
	}
	lambda := f.add(p.x, f.div(p.y, p.x))
	x3 := f.add(f.add(f.sq(lambda), lambda), sect233r1A)
	y3 := f.add(f.sq(p.x), f.mul(f.add(lambda, bigOne), x3))
	return ec2nPoint{x: x3, y: y3}
}

var bigOne = big.NewInt(1)

// add implements the standard binary-curve point-addition formula for
// distinct, non-inverse points; it dispatches to double/infinity for the
// degenerate cases.
func ec2nAdd(p, q ec2nPoint) ec2nPoint {
	f := sect233r1Field
	if p.isInfinity() {
		return q
	}
	if q.isInfinity() {
		return p
	}
	if p.x.Cmp(q.x) == 0 {
		// -P = (x, x+y) on this curve; P+(-P) = infinity.
		if f.add(f.add(p.x, p.y), q.y).Sign() == 0 {
			return infinity()
		}
		return ec2nDouble(p)
	}
	lambda := f.div(f.add(p.y, q.y), f.add(p.x, q.x))
	x3 := f.add(f.add(f.add(f.sq(lambda), lambda), f.add(p.x, q.x)), sect233r1A)
	y3 := f.add(f.add(f.mul(lambda, f.add(p.x, x3)), x3), p.y)
	return ec2nPoint{x: x3, y: y3}
}

// scalarMul computes k*P via double-and-add, matching CryptoPP's default
// (non-constant-time) EC2N scalar multiplication used for key generation,
// signing, and ECDH agreement.
func scalarMul(k *big.Int, p ec2nPoint) ec2nPoint {
	result := infinity()
	addend := p
	kk := new(big.Int).Set(k)
	for kk.Sign() != 0 {
		if kk.Bit(0) == 1 {
			result = ec2nAdd(result, addend)
		}
		addend = ec2nDouble(addend)
		kk.Rsh(kk, 1)
	}
	return result
}

func basePoint() ec2nPoint {
	return ec2nPoint{x: new(big.Int).Set(sect233r1Gx), y: new(big.Int).Set(sect233r1Gy)}
}

// generateScalar returns a uniformly random scalar in [1, n).
func generateScalar() (*big.Int, error) {
	for {
		k, err := rand.Int(rand.Reader, sect233r1N)
		if err != nil {
			return nil, err
		}
		if k.Sign() != 0 {
			return k, nil
		}
	}
}
