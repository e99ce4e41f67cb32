package unique

import (
	"fmt"
	"log/slog"

	"github.com/azahar-emu/titlecore/internal/certs"
	"github.com/azahar-emu/titlecore/internal/crypto"
)

const (
	issuerDev   = "Nintendo CA - G3_NintendoCTR2dev"
	issuerRetail = "Nintendo CA - G3_NintendoCTR2prod"
)

// BuildCTCert derives the console's own certificate from OTP fields, the way
// HW::UniqueData::LoadOTP does: issuer selected by dev/retail flag, name
// "CT{device_id:08X}-{system_type:02X}", private key/signature taken
// directly from the OTP rather than freshly generated.
func BuildCTCert(o *OTP, rootPublic crypto.ECCPublicKey) (*certs.Certificate, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("unique: OTP not valid")
	}

	var issuer [64]byte
	issuerStr := issuerRetail
	if o.Dev {
		issuerStr = issuerDev
	}
	copy(issuer[:], issuerStr)

	var name [64]byte
	copy(name[:], fmt.Sprintf("CT%08X-%02X", o.DeviceID, systemTypeByte(o)))

	priv := crypto.FixupPrivateScalar(o.CTCertPrivateKeyX[:])
	var sig crypto.ECCSignature
	copy(sig.RS[:], o.CTCertSignatureRS[:])

	cert := certs.FromPrebuiltECC(issuer, name, o.CTCertExpiration, priv, sig)

	if !cert.VerifyMyself(rootPublic) {
		slog.Error("unique: CTCert failed verification against root public key")
		return nil, fmt.Errorf("unique: CTCert failed verification")
	}
	return cert, nil
}

func systemTypeByte(o *OTP) byte {
	if o.Dev {
		return 1
	}
	return 0
}
