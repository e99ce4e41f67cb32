package keystore

import "math/big"

var mod128 = new(big.Int).Lsh(big.NewInt(1), 128)

// rol128 rotates the 16-byte big-endian value v left by bits, modulo 2^128.
func rol128(v [16]byte, bits uint) [16]byte {
	n := new(big.Int).SetBytes(v[:])
	bits %= 128
	left := new(big.Int).Lsh(n, bits)
	right := new(big.Int).Rsh(n, 128-bits)
	result := new(big.Int).Or(left, right)
	result.Mod(result, mod128)
	var out [16]byte
	result.FillBytes(out[:])
	return out
}

func xor16(a, b [16]byte) [16]byte {
	var out [16]byte
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// add128 adds a and b as 128-bit big-endian integers, modulo 2^128.
func add128(a, b [16]byte) [16]byte {
	an := new(big.Int).SetBytes(a[:])
	bn := new(big.Int).SetBytes(b[:])
	sum := new(big.Int).Add(an, bn)
	sum.Mod(sum, mod128)
	var out [16]byte
	sum.FillBytes(out[:])
	return out
}

// generateNormalKey implements the spec's key-slot rule:
// Normal = ROL128((ROL128(X,2) XOR Y) + C, 87) mod 2^128.
func generateNormalKey(x, y, generatorConstant [16]byte) [16]byte {
	step1 := rol128(x, 2)
	step2 := xor16(step1, y)
	step3 := add128(step2, generatorConstant)
	return rol128(step3, 87)
}
