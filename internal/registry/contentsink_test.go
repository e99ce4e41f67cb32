package registry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azahar-emu/titlecore/internal/keystore"
	"github.com/azahar-emu/titlecore/internal/tmd"
	"github.com/azahar-emu/titlecore/internal/wrapfile"
)

func TestOpenContentSinkRoundTripsThroughConsoleWrapping(t *testing.T) {
	roots := Roots{NAND: t.TempDir(), SDMC: t.TempDir()}
	titleID := uint64(0x0004000000001234)
	wrapKey := [16]byte{1, 2, 3, 4}
	wrapIV := [16]byte{5, 6, 7, 8}

	opener := OpenContentSink(titleID, ContentSinkOptions{
		Roots:   roots,
		Media:   MediaNAND,
		Store:   keystore.Default(nil),
		WrapKey: wrapKey,
		WrapIV:  wrapIV,
	})

	payload := make([]byte, 600)
	for i := range payload {
		payload[i] = byte(i)
	}

	sink, err := opener(tmd.ContentChunk{ContentID: 7, Index: 0, Size: uint64(len(payload))})
	require.NoError(t, err)

	n, err := sink.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, sink.Close())

	osf, err := os.Open(ContentFilePath(roots.NAND, titleID, 7))
	require.NoError(t, err)
	wrap := wrapfile.New(wrapfile.OSFile{File: osf}, wrapKey, wrapIV)
	defer wrap.Close()

	got := make([]byte, len(payload))
	_, err = wrap.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
