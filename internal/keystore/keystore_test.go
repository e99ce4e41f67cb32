package keystore

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateNormalKey(t *testing.T) {
	xk := mustHex16(t, "5A7F000000000000000000000000001F")
	yk := mustHex16(t, "3DE0000000000000000000000000002A")
	ck := mustHex16(t, "00000000000000000000000000000001")

	got := generateNormalKey(xk, yk, ck)
	want := rol128(add128(xor16(rol128(xk, 2), yk), ck), 87)

	require.Equal(t, want, got)
}

func TestKeySlotRecomputesOnSetXY(t *testing.T) {
	var s KeySlot
	var c [16]byte

	_, ok := s.Normal()
	require.False(t, ok)

	s.SetX(mustHex16(t, "11111111111111111111111111111111"), c)
	_, ok = s.Normal()
	require.False(t, ok, "normal must stay unset until both halves are present")

	s.SetY(mustHex16(t, "22222222222222222222222222222222"), c)
	_, ok = s.Normal()
	require.True(t, ok)
}

func TestKeySlotSetNormalLeavesXYAlone(t *testing.T) {
	var s KeySlot
	s.SetNormal(mustHex16(t, "33333333333333333333333333333333"))

	_, ok := s.X()
	require.False(t, ok)
	n, ok := s.Normal()
	require.True(t, ok)
	require.NotZero(t, n)
}

func TestLoadPresetKeysParsesSections(t *testing.T) {
	table := `
:AES
generatorConstant=1ff9e9aac5fe0408024591dc5d52768a
slot0x25KeyX=cee7d8ab30c00daee350e3a8aa1e71cf
common0=d07b337f9ca4385626682d657662aa5b

:RSA
ticketWrapX=aabb
ticketWrapM=ccdd
ticketWrapP=010001

:ECC
rootPublicXY=` + strings.Repeat("ab", 60) + `
`
	st := newStore()
	require.NoError(t, st.LoadPresetKeys(strings.NewReader(table)))

	x, ok := st.Slot("slot0x25").X()
	require.True(t, ok)
	require.Equal(t, mustHex16(t, "cee7d8ab30c00daee350e3a8aa1e71cf"), x)

	_, ok = st.RSASlot("ticketWrap")
	require.True(t, ok)

	root := st.ECCRootPublicKey()
	require.NotZero(t, root.X)
}

func TestSelectCommonKeyIndexRebindsY(t *testing.T) {
	st := newStore()
	require.NoError(t, st.LoadPresetKeys(strings.NewReader(`
:AES
common3=d07b337f9ca4385626682d657662aa5b
`)))

	require.NoError(t, st.SelectCommonKeyIndex(3))
	y, ok := st.Slot("TicketCommonKey").Y()
	require.True(t, ok)
	require.Equal(t, mustHex16(t, "d07b337f9ca4385626682d657662aa5b"), y)

	require.Error(t, st.SelectCommonKeyIndex(9))
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func mustHex16(t *testing.T, s string) [16]byte {
	t.Helper()
	b := mustHex(t, s)
	var out [16]byte
	copy(out[:], b)
	return out
}
