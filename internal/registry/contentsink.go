package registry

import (
	"io"
	"os"

	"github.com/azahar-emu/titlecore/internal/crypto"
	"github.com/azahar-emu/titlecore/internal/keystore"
	"github.com/azahar-emu/titlecore/internal/ncch"
	"github.com/azahar-emu/titlecore/internal/tmd"
	"github.com/azahar-emu/titlecore/internal/unique"
	"github.com/azahar-emu/titlecore/internal/wrapfile"
	"github.com/azahar-emu/titlecore/internal/z3ds"
)

// layeredSink composes the close order for the three stacked writers spec
// §4.J step 3 describes: an NCCH crypto sink writing into an optionally
// compressed file, itself writing into the per-console-wrapped backing
// file. Close unwinds innermost-first so the zstd seek-table footer and the
// final ciphertext block both land before the OS file is released.
type layeredSink struct {
	ncch *ncch.Writer
	z3ds *z3ds.Writer // nil when compression is disabled
	wrap *wrapfile.File
}

func (s *layeredSink) Write(p []byte) (int, error) { return s.ncch.Write(p) }

func (s *layeredSink) Close() error {
	if err := s.ncch.Close(); err != nil {
		return err
	}
	if s.z3ds != nil {
		if err := s.z3ds.Close(); err != nil {
			return err
		}
	}
	if err := s.wrap.Close(); err != nil {
		return err
	}
	return nil
}

// ContentSinkOptions configures how OpenContentSink layers a content file.
type ContentSinkOptions struct {
	Roots                Roots
	Media                MediaType
	Store                *keystore.Store
	DecryptionAuthorized bool
	Seeds                ncch.SeedLookup
	Compress             bool
	WrapKey, WrapIV      [16]byte
}

// OpenContentSink returns a cia.ContentSinkOpener writing titleID's declared
// contents to their registry-assigned path, through the NCCH crypto sink,
// optional seekable-zstd compression, and per-console AES-CTR wrapping, per
// spec §4.H/§4.G/§4.I.
func OpenContentSink(titleID uint64, opts ContentSinkOptions) func(chunk tmd.ContentChunk) (io.WriteCloser, error) {
	return func(chunk tmd.ContentChunk) (io.WriteCloser, error) {
		root, ok := opts.Roots.root(opts.Media)
		if !ok {
			root = opts.Roots.NAND
		}
		path := ContentFilePath(root, titleID, chunk.ContentID)
		if err := os.MkdirAll(ContentDir(root, titleID), 0o755); err != nil {
			return nil, err
		}
		osf, err := os.Create(path)
		if err != nil {
			return nil, err
		}

		wrap := wrapfile.New(wrapfile.OSFile{File: osf}, opts.WrapKey, opts.WrapIV)

		sink := &layeredSink{wrap: wrap}
		var dest io.Writer = wrap
		if opts.Compress {
			zw, err := z3ds.NewWriter(wrap, z3ds.WriteOptions{MaxFrameSize: z3ds.ContentFrameSize})
			if err != nil {
				osf.Close()
				return nil, err
			}
			sink.z3ds = zw
			dest = zw
		}

		sink.ncch = ncch.NewWriter(dest, opts.Store, ncch.Options{
			DecryptionAuthorized: opts.DecryptionAuthorized,
			Seeds:                opts.Seeds,
		})
		return sink, nil
	}
}

// WrappingKeyIVForConsole derives the per-console AES-CTR key/IV used to
// wrap title content, from the console's CTCert private key and device-id,
// matching unique.WrappingKeyIV's PurposeTitleContent use.
func WrappingKeyIVForConsole(state *unique.ConsoleState) (key, iv [16]byte, ok bool) {
	if state == nil || state.OTP == nil || !state.OTP.Valid() {
		return [16]byte{}, [16]byte{}, false
	}
	priv := crypto.FixupPrivateScalar(state.OTP.CTCertPrivateKeyX[:])
	pub := crypto.MakeECCPublicKey(priv)
	key, iv = unique.WrappingKeyIV(pub, state.OTP.DeviceID, unique.PurposeTitleContent)
	return key, iv, true
}
