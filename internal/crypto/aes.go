// Package crypto is the uniform facade over the primitives the rest of this
// module needs: AES-CBC/CTR, SHA-1/256, RSA-PKCS1v15, ECDSA/ECDH over
// sect233r1, and HMAC. AES/SHA/RSA are commodity primitives specified "by
// contract, not by implementation" and are implemented directly on
// crypto/aes, crypto/cipher, crypto/sha1, crypto/sha256 and crypto/rsa: no
// library in the reference pack improves on the standard library for these,
// and the facade's job is a stable call surface, not a novel implementation.
// sect233r1 has no stdlib or pack-library support at all (see sect233r1.go).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// AESCBCEncrypt encrypts in using AES-CBC with the given key and IV. len(in)
// must be a multiple of the AES block size; key-length mismatches are a
// programmer bug and panic, per the facade's failure model.
func AESCBCEncrypt(key, iv, in []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(fmt.Sprintf("crypto: bad AES key: %v", err))
	}
	if len(in)%aes.BlockSize != 0 {
		panic("crypto: AES-CBC input not block aligned")
	}
	out := make([]byte, len(in))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, in)
	return out
}

// AESCBCDecrypt is the inverse of AESCBCEncrypt.
func AESCBCDecrypt(key, iv, in []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(fmt.Sprintf("crypto: bad AES key: %v", err))
	}
	if len(in)%aes.BlockSize != 0 {
		panic("crypto: AES-CBC input not block aligned")
	}
	out := make([]byte, len(in))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, in)
	return out
}

// CTRStream is an AES-CTR keystream that supports seeking to an arbitrary
// 16-byte-aligned byte offset without re-deriving prior blocks — the one
// thing crypto/cipher's Stream interface (via NewCTR) cannot do, since it
// only advances forward. The counter block is recomputed directly from the
// base IV plus the block offset on every Seek.
type CTRStream struct {
	block   cipher.Block
	baseCtr [16]byte
}

// NewCTRStream builds a keystream over key/iv, equivalent to the facade's
// aes_ctr_{enc,dec} pair combined with seek support.
func NewCTRStream(key, iv []byte) *CTRStream {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(fmt.Sprintf("crypto: bad AES key: %v", err))
	}
	s := &CTRStream{block: block}
	copy(s.baseCtr[:], iv)
	return s
}

// streamAt returns a cipher.Stream whose keystream begins at byteOffset,
// which must be a multiple of aes.BlockSize.
func (s *CTRStream) streamAt(byteOffset int64) cipher.Stream {
	if byteOffset%aes.BlockSize != 0 {
		panic("crypto: CTR seek offset not block aligned")
	}
	ctr := addBlocksToCounter(s.baseCtr, byteOffset/aes.BlockSize)
	return cipher.NewCTR(s.block, ctr[:])
}

// CryptAt XORs in with the keystream starting at byteOffset, returning the
// result. Used for both encryption and decryption (CTR mode is symmetric).
func (s *CTRStream) CryptAt(byteOffset int64, in []byte) []byte {
	skip := byteOffset % aes.BlockSize
	stream := s.streamAt(byteOffset - skip)
	if skip != 0 {
		discard := make([]byte, skip)
		stream.XORKeyStream(discard, discard)
	}
	out := make([]byte, len(in))
	stream.XORKeyStream(out, in)
	return out
}

func addBlocksToCounter(base [16]byte, blocks int64) [16]byte {
	var ctr [16]byte
	copy(ctr[:], base[:])
	carry := blocks
	for i := 15; i >= 0 && carry != 0; i-- {
		sum := int64(ctr[i]) + (carry & 0xff)
		ctr[i] = byte(sum)
		carry = (carry >> 8) + (sum >> 8)
	}
	return ctr
}

// AESCTREncrypt/AESCTRDecrypt encrypt or decrypt in, starting the keystream
// at offset 0. CTR mode is its own inverse.
func AESCTREncrypt(key, ctr []byte, in []byte) []byte {
	return NewCTRStream(key, ctr).CryptAt(0, in)
}

func AESCTRDecrypt(key, ctr []byte, in []byte) []byte {
	return NewCTRStream(key, ctr).CryptAt(0, in)
}
