package unique

import (
	"log/slog"

	"github.com/azahar-emu/titlecore/internal/crypto"
)

// RegionCount mirrors the original Region::COUNT used by the region-changed
// detection loop below.
const RegionCount = 7

// SecureDataLoadStatus mirrors HW::UniqueData::SecureDataLoadStatus.
type SecureDataLoadStatus int

const (
	StatusLoaded SecureDataLoadStatus = iota
	StatusNotFound
	StatusInvalid
	StatusInvalidSignature
	StatusRegionChanged
	StatusIOError
)

// SecureInfoABody is the RSA-signed region/serial record, signed by the
// "secureInfo" RSA slot.
type SecureInfoABody struct {
	Region       byte
	SerialNumber [16]byte
}

type SecureInfoA struct {
	Body      SecureInfoABody
	Signature []byte
}

func (s *SecureInfoABody) encode() []byte {
	out := make([]byte, 17)
	out[0] = s.Region
	copy(out[1:], s.SerialNumber[:])
	return out
}

// VerifySignature checks SecureInfoA's signature with the secureInfo RSA
// key, matching SecureInfoA::VerifySignature.
func (s *SecureInfoA) VerifySignature(secureInfoKey crypto.RSAKey) bool {
	return crypto.RSAPKCS1v15SHA256Verify(secureInfoKey, s.Body.encode(), s.Signature)
}

// LoadSecureInfoA parses raw and reports Loaded / InvalidSignature /
// RegionChanged, the latter when the signature validates only after
// substituting a different region byte — i.e. the file is genuine but the
// console's region changed since it was issued. Matches
// HW::UniqueData::LoadSecureInfoA.
func LoadSecureInfoA(raw []byte, secureInfoKey crypto.RSAKey) (*SecureInfoA, SecureDataLoadStatus) {
	if len(raw) < 17+4 {
		return nil, StatusInvalid
	}
	s := &SecureInfoA{}
	s.Body.Region = raw[0]
	copy(s.Body.SerialNumber[:], raw[1:17])
	s.Signature = raw[17:]

	if s.VerifySignature(secureInfoKey) {
		return s, StatusLoaded
	}

	orig := s.Body.Region
	for region := byte(0); region < RegionCount; region++ {
		if region == orig {
			continue
		}
		s.Body.Region = region
		if s.VerifySignature(secureInfoKey) {
			slog.Warn("unique: SecureInfo_A is region changed and its signature invalid")
			s.Body.Region = orig
			return s, StatusRegionChanged
		}
	}
	s.Body.Region = orig
	slog.Warn("unique: SecureInfo_A signature check failed")
	return s, StatusInvalidSignature
}

// LocalFriendCodeSeedB is the RSA-signed friend-code seed, signed by the
// "lfcs" RSA slot.
type LocalFriendCodeSeedB struct {
	Seed      [12]byte
	Signature []byte
}

func (l *LocalFriendCodeSeedB) body() []byte { return l.Seed[:] }

func (l *LocalFriendCodeSeedB) VerifySignature(lfcsKey crypto.RSAKey) bool {
	return crypto.RSAPKCS1v15SHA256Verify(lfcsKey, l.body(), l.Signature)
}

// LoadLocalFriendCodeSeedB matches HW::UniqueData::LoadLocalFriendCodeSeedB.
func LoadLocalFriendCodeSeedB(raw []byte, lfcsKey crypto.RSAKey) (*LocalFriendCodeSeedB, SecureDataLoadStatus) {
	if len(raw) < 12 {
		return nil, StatusInvalid
	}
	l := &LocalFriendCodeSeedB{}
	copy(l.Seed[:], raw[:12])
	l.Signature = raw[12:]
	if l.VerifySignature(lfcsKey) {
		return l, StatusLoaded
	}
	slog.Warn("unique: LocalFriendCodeSeed_B signature check failed")
	return l, StatusInvalidSignature
}
