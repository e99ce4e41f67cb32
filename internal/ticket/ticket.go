// Package ticket implements the signed ticket record: parsing, serializing,
// personalized-ticket title-key fixup, and content-rights evaluation.
// Grounded on original_source/core/file_sys/ticket.cpp.
package ticket

import (
	"encoding/binary"
	"fmt"

	"github.com/azahar-emu/titlecore/internal/coreerr"
	"github.com/azahar-emu/titlecore/internal/crypto"
	"github.com/azahar-emu/titlecore/internal/unique"
)

const bodySize = 356

// sigSizeTable maps a signature-type tag to its raw signature length, used
// to locate the body offset. Matches ticket.cpp's Load.
var sigSizeTable = map[uint32]int{
	0x10000: 512, // RSA-4096
	0x10001: 256, // RSA-2048
	0x10002: 60,  // ECDSA
}

func alignUp(v, align int) int { return (v + align - 1) / align * align }

// Limit is one entry of the ticket's 8-entry limits table.
type Limit struct {
	Type  uint32
	Value uint32
}

// Ticket is the parsed 356-byte ticket body plus its trailing content
// index.
type Ticket struct {
	SigType         uint32
	Signature       []byte
	Issuer          [64]byte
	ECCPublicKey    [60]byte
	TitleKey        [16]byte
	TicketID        uint64
	ConsoleID       uint32
	TitleID         uint64
	CommonKeyIndex  uint8
	Limits          [8]Limit
	Content         ContentIndex
}

// Load parses raw per spec §4.E / §3: sig-type (BE u32) determines the
// signature size (table above, 0x40-aligned); body starts at
// align_up(4+sig_size, 0x40) and is 356 bytes; a trailing content-index
// structure follows whose size is read from its own header.
func Load(raw []byte) (*Ticket, error) {
	const op = "ticket.Load"
	if len(raw) < 4 {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated ticket"))
	}
	sigType := binary.BigEndian.Uint32(raw[:4])
	sigLen, ok := sigSizeTable[sigType]
	if !ok {
		return nil, coreerr.New(coreerr.KindUnsupportedCrypto, op, fmt.Errorf("unknown sig type %#x", sigType))
	}
	sigBlockLen := alignUp(4+sigLen, 0x40)
	if len(raw) < sigBlockLen+bodySize {
		return nil, coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("truncated ticket body"))
	}

	t := &Ticket{SigType: sigType}
	t.Signature = append([]byte(nil), raw[4:4+sigLen]...)

	body := raw[sigBlockLen : sigBlockLen+bodySize]
	copy(t.Issuer[:], body[0:0x40])
	copy(t.ECCPublicKey[:], body[0x40:0x7C])
	copy(t.TitleKey[:], body[0x7C:0x8C])
	t.TicketID = binary.BigEndian.Uint64(body[0x8C:0x94])
	t.ConsoleID = binary.BigEndian.Uint32(body[0x94:0x98])
	t.TitleID = binary.BigEndian.Uint64(body[0x98:0xA0])
	t.CommonKeyIndex = body[0xA0]
	limitsOff := 0xB0
	for i := 0; i < 8; i++ {
		off := limitsOff + i*8
		if off+8 > len(body) {
			break
		}
		t.Limits[i] = Limit{
			Type:  binary.BigEndian.Uint32(body[off : off+4]),
			Value: binary.BigEndian.Uint32(body[off+4 : off+8]),
		}
	}

	trailer := raw[sigBlockLen+bodySize:]
	idx, err := parseContentIndex(trailer)
	if err != nil {
		return nil, err
	}
	t.Content = idx

	return t, nil
}

// Serialize re-emits the ticket in the same layout Load parses, satisfying
// the round-trip invariant parse(serialize(parse(b))) == parse(b).
func (t *Ticket) Serialize() []byte {
	sigBlockLen := alignUp(4+len(t.Signature), 0x40)
	out := make([]byte, sigBlockLen+bodySize)
	binary.BigEndian.PutUint32(out[:4], t.SigType)
	copy(out[4:], t.Signature)

	body := out[sigBlockLen : sigBlockLen+bodySize]
	copy(body[0:0x40], t.Issuer[:])
	copy(body[0x40:0x7C], t.ECCPublicKey[:])
	copy(body[0x7C:0x8C], t.TitleKey[:])
	binary.BigEndian.PutUint64(body[0x8C:0x94], t.TicketID)
	binary.BigEndian.PutUint32(body[0x94:0x98], t.ConsoleID)
	binary.BigEndian.PutUint64(body[0x98:0xA0], t.TitleID)
	body[0xA0] = t.CommonKeyIndex
	for i, l := range t.Limits {
		off := 0xB0 + i*8
		if off+8 > len(body) {
			break
		}
		binary.BigEndian.PutUint32(body[off:off+4], l.Type)
		binary.BigEndian.PutUint32(body[off+4:off+8], l.Value)
	}

	return append(out, t.Content.serialize()...)
}

// IsPersonalized reports whether this ticket requires per-console fixup,
// matching the "console-id != 0" invariant of spec §3.
func (t *Ticket) IsPersonalized() bool { return t.ConsoleID != 0 }

// DoTitlekeyFixup decrypts a personalized ticket's title-key in place using
// the console's CTCert private key and the ticket's embedded ECC public
// key, matching Ticket::DoTitlekeyFixup. It is a no-op for common tickets.
func (t *Ticket) DoTitlekeyFixup(ct *unique.ConsoleState, ctCertPrivate crypto.ECCPrivateKey) error {
	const op = "ticket.DoTitlekeyFixup"
	if !t.IsPersonalized() {
		return nil
	}
	if ct == nil || ct.OTP == nil || !ct.OTP.Valid() {
		return coreerr.New(coreerr.KindInvalidState, op, fmt.Errorf("no console OTP loaded"))
	}
	if t.ConsoleID != ct.OTP.DeviceID {
		// Spec §9 Open Question: ambiguous whether this is "foreign
		// personalized" or "corrupt". We surface it as invalid-argument
		// and let the caller decide, preserving the ambiguity rather than
		// guessing a stronger classification.
		return coreerr.New(coreerr.KindInvalidArgument, op, fmt.Errorf("ticket console-id %08x does not match this console's OTP device-id %08x", t.ConsoleID, ct.OTP.DeviceID))
	}

	var ticketPub crypto.ECCPublicKey
	copy(ticketPub.X[:], t.ECCPublicKey[:30])
	copy(ticketPub.Y[:], t.ECCPublicKey[30:60])

	shared := crypto.ECDHSect233r1Agree(ctCertPrivate, ticketPub)
	sha1 := crypto.SHA1(shared)
	key := sha1[:16]

	iv := make([]byte, 16)
	binary.BigEndian.PutUint64(iv[:8], t.TicketID)

	decrypted := crypto.AESCBCDecrypt(key, iv, t.TitleKey[:])
	copy(t.TitleKey[:], decrypted)
	return nil
}
