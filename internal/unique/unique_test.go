package unique

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azahar-emu/titlecore/internal/certs"
	"github.com/azahar-emu/titlecore/internal/crypto"
)

func TestLoadOTPRejectsWrongSize(t *testing.T) {
	_, err := LoadOTP(make([]byte, 10), make([]byte, 16), make([]byte, 16))
	require.Error(t, err)
}

func TestLoadOTPPlaintextMagicAndHash(t *testing.T) {
	raw := make([]byte, otpSize)
	copy(raw[:4], otpMagic[:])
	binary.BigEndian.PutUint32(raw[4:8], 0xCAFEBABE)
	raw[8] = 0 // retail

	digest := crypto.SHA256(raw[:otpBodySize])
	copy(raw[otpBodySize:], digest[:])

	otp, err := LoadOTP(raw, make([]byte, 16), make([]byte, 16))
	require.NoError(t, err)
	require.True(t, otp.Valid())
	require.Equal(t, uint32(0xCAFEBABE), otp.DeviceID)
	require.False(t, otp.Dev)
}

func TestLoadOTPHashMismatch(t *testing.T) {
	raw := make([]byte, otpSize)
	copy(raw[:4], otpMagic[:])
	// leave trailing hash as zero, which will not match
	_, err := LoadOTP(raw, make([]byte, 16), make([]byte, 16))
	require.Error(t, err)
}

func TestBuildCTCertVerifiesAgainstRoot(t *testing.T) {
	rootPriv, rootPub, err := crypto.GenerateECCKeyPair()
	require.NoError(t, err)
	root := certs.FromPrebuiltECC([64]byte{}, [64]byte{}, 0, rootPriv, crypto.ECCSignature{})

	childPriv, childPub, err := crypto.GenerateECCKeyPair()
	require.NoError(t, err)

	var issuer, name [64]byte
	copy(issuer[:], issuerRetail)
	copy(name[:], "CT00000001-00")

	cert := certs.FromPrebuiltECC(issuer, name, 0, childPriv, crypto.ECCSignature{})
	sig, err := root.Sign(cert.SerializeBody())
	require.NoError(t, err)

	raw := make([]byte, otpSize)
	copy(raw[:4], otpMagic[:])
	binary.BigEndian.PutUint32(raw[4:8], 1)
	raw[8] = 0
	copy(raw[0x10:0x2E], childPriv.X[:])
	copy(raw[0x2E:0x6A], sig.RS[:])
	digest := crypto.SHA256(raw[:otpBodySize])
	copy(raw[otpBodySize:], digest[:])

	otp, err := LoadOTP(raw, make([]byte, 16), make([]byte, 16))
	require.NoError(t, err)

	got, err := BuildCTCert(otp, rootPub)
	require.NoError(t, err)
	require.Equal(t, childPub, got.PublicKeyECC())
}

func TestWrappingKeyIVIsDeterministic(t *testing.T) {
	pub := crypto.ECCPublicKey{}
	k1, c1 := WrappingKeyIV(pub, 42, PurposeMovable)
	k2, c2 := WrappingKeyIV(pub, 42, PurposeMovable)
	require.Equal(t, k1, k2)
	require.Equal(t, c1, c2)

	k3, _ := WrappingKeyIV(pub, 43, PurposeMovable)
	require.NotEqual(t, k1, k3)
}
