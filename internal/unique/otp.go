// Package unique loads and validates console-unique identity data: the OTP
// (one-time-programmable) block, the derived console certificate (CTCert),
// the SecureInfo_A / LocalFriendCodeSeed_B RSA-signed records, and the
// movable seed. Grounded on original_source/core/hw/unique_data.cpp.
//
// Decryption of a real console's OTP itself is explicitly out of scope
// (spec Non-goals): the magic/hash mechanics below are structurally
// faithful to the original but this package does not attempt to reproduce
// the exact byte layout of genuine Nintendo OTP data, which is undocumented
// console-unique key material.
package unique

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/azahar-emu/titlecore/internal/coreerr"
	"github.com/azahar-emu/titlecore/internal/crypto"
)

const otpSize = 256
const otpBodySize = 224

var otpMagic = [4]byte{0xDE, 0xAD, 0xB0, 0x0F}

// OTP is the parsed console one-time-programmable block.
type OTP struct {
	DeviceID            uint32
	Dev                  bool
	CTCertExpiration     uint32
	CTCertPrivateKeyX    [30]byte
	CTCertSignatureRS    [60]byte
	valid                bool
}

func (o *OTP) Valid() bool { return o.valid }

// LoadOTP reads raw (exactly 256 bytes), matching HW::UniqueData::LoadOTP /
// FileSys::OTP::Load: if the plaintext magic is absent, AES-CBC-decrypt in
// place with key/iv, recheck the magic, then verify the trailing 32-byte
// SHA-256 hash over the first 224 bytes.
func LoadOTP(raw []byte, key, iv []byte) (*OTP, error) {
	const op = "unique.LoadOTP"
	if len(raw) != otpSize {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("expected %d bytes, got %d", otpSize, len(raw)))
	}

	buf := make([]byte, otpSize)
	copy(buf, raw)
	if !bytes.Equal(buf[:4], otpMagic[:]) {
		buf = crypto.AESCBCDecrypt(key, iv, buf)
		if !bytes.Equal(buf[:4], otpMagic[:]) {
			return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("bad OTP magic"))
		}
	}

	body := buf[:otpBodySize]
	trailingHash := buf[otpBodySize:otpSize]
	digest := crypto.SHA256(body)
	if !bytes.Equal(digest[:], trailingHash) {
		return nil, coreerr.New(coreerr.KindHashMismatch, op, fmt.Errorf("OTP body hash mismatch"))
	}

	o := &OTP{valid: true}
	o.DeviceID = binary.BigEndian.Uint32(buf[4:8])
	o.Dev = buf[8] != 0
	o.CTCertExpiration = binary.BigEndian.Uint32(buf[0x0C:0x10])
	copy(o.CTCertPrivateKeyX[:], buf[0x10:0x2E])
	copy(o.CTCertSignatureRS[:], buf[0x2E:0x6A])
	return o, nil
}
