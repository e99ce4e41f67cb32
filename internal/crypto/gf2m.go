package crypto

import "math/big"

// binaryField implements GF(2^m) polynomial arithmetic over a fixed
// irreducible reduction polynomial, the way CryptoPP's PolynomialMod2 /
// EC2N types implicitly do for sect233r1. Elements are represented as
// *big.Int bitmasks: bit i set means the polynomial has a term z^i.
type binaryField struct {
	m   int      // field degree (233 for sect233r1)
	mod *big.Int // reduction polynomial, degree m, bit m set
}

func newBinaryField(m int, modTerms ...int) *binaryField {
	mod := new(big.Int)
	mod.SetBit(mod, m, 1)
	for _, t := range modTerms {
		mod.SetBit(mod, t, 1)
	}
	return &binaryField{m: m, mod: mod}
}

// sect233r1Field is GF(2^233) reduced by z^233 + z^74 + 1.
var sect233r1Field = newBinaryField(233, 74, 0)

func (f *binaryField) degree(a *big.Int) int {
	return a.BitLen() - 1
}

// mulNoReduce is carry-less ("XOR") polynomial multiplication.
func (f *binaryField) mulNoReduce(a, b *big.Int) *big.Int {
	result := new(big.Int)
	tmp := new(big.Int).Set(a)
	bb := new(big.Int).Set(b)
	for bb.Sign() != 0 {
		if bb.Bit(0) == 1 {
			result.Xor(result, tmp)
		}
		tmp.Lsh(tmp, 1)
		bb.Rsh(bb, 1)
	}
	return result
}

// reduce performs polynomial long division modulo f.mod, returning the
// remainder.
func (f *binaryField) reduce(a *big.Int) *big.Int {
	r := new(big.Int).Set(a)
	modDeg := f.m
	for f.degree(r) >= modDeg {
		shift := f.degree(r) - modDeg
		shifted := new(big.Int).Lsh(f.mod, uint(shift))
		r.Xor(r, shifted)
	}
	return r
}

func (f *binaryField) mul(a, b *big.Int) *big.Int {
	return f.reduce(f.mulNoReduce(a, b))
}

func (f *binaryField) add(a, b *big.Int) *big.Int {
	return new(big.Int).Xor(a, b)
}

func (f *binaryField) sq(a *big.Int) *big.Int {
	return f.mul(a, a)
}

// inverse computes the multiplicative inverse of a in GF(2^m) via the
// polynomial extended Euclidean algorithm.
func (f *binaryField) inverse(a *big.Int) *big.Int {
	if a.Sign() == 0 {
		return new(big.Int)
	}
	u := new(big.Int).Set(a)
	v := new(big.Int).Set(f.mod)
	g1 := big.NewInt(1)
	g2 := new(big.Int)

	for u.Cmp(big.NewInt(1)) != 0 {
		j := f.degree(u) - f.degree(v)
		if j < 0 {
			u, v = v, u
			g1, g2 = g2, g1
			j = -j
		}
		shifted := new(big.Int).Lsh(v, uint(j))
		u.Xor(u, shifted)
		shiftedG := new(big.Int).Lsh(g2, uint(j))
		g1.Xor(g1, shiftedG)
	}
	return g1
}

func (f *binaryField) div(a, b *big.Int) *big.Int {
	return f.mul(a, f.inverse(b))
}

// trace computes Tr(a) = a + a^2 + a^4 + ... + a^(2^(m-1)), used to solve
// the quadratic z^2+z=c that half-trace / point-decompression needs. Not
// required for the affine-only operations this module performs, but kept
// for completeness of the facade.
func (f *binaryField) trace(a *big.Int) *big.Int {
	t := new(big.Int).Set(a)
	x := new(big.Int).Set(a)
	for i := 1; i < f.m; i++ {
		x = f.sq(x)
		t.Xor(t, x)
	}
	return t
}

func bytesToElement(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

func elementToBytes(a *big.Int, size int) []byte {
	out := make([]byte, size)
	a.FillBytes(out)
	return out
}
