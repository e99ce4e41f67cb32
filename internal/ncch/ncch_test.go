package ncch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azahar-emu/titlecore/internal/keystore"
)

// secondaryKeySlotSelectors maps the normalized 0-3 index back to the raw
// flags[3] selector byte (0, 1, 10, 11), the inverse of
// secondaryKeySlotFromSelector, for building test fixtures.
var secondaryKeySlotSelectors = [4]byte{0, 1, 10, 11}

func buildHeader(t *testing.T, version uint16, fixedKey, noCrypto, seedCrypto bool, secondarySlot uint8, exeFSOffsetBlocks, exeFSSizeBlocks uint32) []byte {
	t.Helper()
	buf := make([]byte, HeaderSize)
	copy(buf[offMagic:offMagic+4], magic[:])
	putLE16(buf[offVersion:], version)
	if fixedKey {
		buf[offFlags+flagBitmasks] |= bitFixedKey
	}
	if noCrypto {
		buf[offFlags+flagBitmasks] |= bitNoCrypto
	}
	if seedCrypto {
		buf[offFlags+flagBitmasks] |= bitSeedCrypto
	}
	buf[offFlags+flagSecondaryKeySlot] = secondaryKeySlotSelectors[secondarySlot&0x3]
	putLE32(buf[offExeFSOffset:], exeFSOffsetBlocks)
	putLE32(buf[offExeFSSize:], exeFSSizeBlocks)
	return buf
}

func putLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestNonNCCHPassesThroughUnchanged(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, nil, Options{})

	data := bytes.Repeat([]byte{0xAB}, HeaderSize+100)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.Equal(t, data, out.Bytes())
}

func TestUnencryptedNCCHPassesThroughWithNoCryptoForced(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, nil, Options{})

	hdr := buildHeader(t, 2, false, true, false, 0, 0, 0)
	body := bytes.Repeat([]byte{0x11}, 64)

	_, err := w.Write(append(append([]byte(nil), hdr...), body...))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Equal(t, len(hdr)+len(body), out.Len())
	require.Equal(t, body, out.Bytes()[len(hdr):])
}

func TestUnauthorizedEncryptedContentErrors(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, nil, Options{DecryptionAuthorized: false})

	hdr := buildHeader(t, 2, true, false, false, 0, 0, 0)
	_, err := w.Write(hdr)
	require.NoError(t, err) // sink never raises
	require.Error(t, w.Close())
}

func TestFixedKeyEncryptedExHeaderDecrypts(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, nil, Options{DecryptionAuthorized: true})

	hdr := buildHeader(t, 2, true, false, false, 0, 0, 0)
	// ExtHeaderSize must be nonzero for the exheader region to exist.
	putLE32(hdr[offExtHeaderSize:], 1)

	plainExHeader := bytes.Repeat([]byte{0x77}, ExHeaderSize)
	full := append(append([]byte(nil), hdr...), plainExHeader...)

	_, err := w.Write(full)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Equal(t, HeaderSize+ExHeaderSize, out.Len())
	// With a fixed (all-zero) key and counter, decrypting is a real AES-CTR
	// operation over known plaintext; round-trip correctness of the AES-CTR
	// primitive is not checked here. Here we only assert the
	// region was transformed (not passed through verbatim) and is the right
	// length.
	require.NotEqual(t, plainExHeader, out.Bytes()[HeaderSize:])
}

func TestFindClosestRegionOrdering(t *testing.T) {
	w := &Writer{regions: []region{
		{kind: regionExHeader, offset: 0x200, size: 0x400},
		{kind: regionRomFS, offset: 0x1000, size: 0x200},
	}}

	r, ok := w.findClosestRegion(0)
	require.True(t, ok)
	require.Equal(t, regionExHeader, r.kind)

	r, ok = w.findClosestRegion(0x250)
	require.True(t, ok)
	require.Equal(t, regionExHeader, r.kind)

	r, ok = w.findClosestRegion(0x700)
	require.True(t, ok)
	require.Equal(t, regionRomFS, r.kind)

	_, ok = w.findClosestRegion(0x1200)
	require.False(t, ok)
}

func TestDeriveKeysFixedKeyIsZero(t *testing.T) {
	h := header{FixedKey: true}
	primary, secondary, err := deriveKeys(nil, h, nil)
	require.NoError(t, err)
	require.Equal(t, [16]byte{}, primary)
	require.Equal(t, [16]byte{}, secondary)
}

func TestDeriveKeysComposesThroughStore(t *testing.T) {
	st := keystore.Default(nil)
	// Ensure the NCCHSecure1 slot has an X half to compose against; in a
	// real deployment this is loaded from the preset table.
	var x [16]byte
	x[0] = 0x01
	st.Slot("NCCHSecure1").SetX(x, [16]byte{})
	st.Slot("NCCHSecure2").SetX(x, [16]byte{})

	h := header{SecondaryKeySlot: 0}
	copy(h.Signature[:], bytes.Repeat([]byte{0x55}, 16))

	primary, secondary, err := deriveKeys(st, h, nil)
	require.NoError(t, err)
	require.Equal(t, primary, secondary) // same slot, same Y
}
