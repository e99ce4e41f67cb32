package ncch

import (
	"fmt"
	"io"

	"github.com/azahar-emu/titlecore/internal/coreerr"
	"github.com/azahar-emu/titlecore/internal/crypto"
	"github.com/azahar-emu/titlecore/internal/keystore"
)

// Options configures a Writer.
type Options struct {
	// DecryptionAuthorized gates encrypted content; writing an encrypted
	// NCCH without this set puts the sink in an error state, matching
	// spec §4.I's unauthorized-encrypted guard.
	DecryptionAuthorized bool
	Seeds                SeedLookup
}

// Writer is the content-container crypto sink: buffer the 0x200-byte
// header, derive keys/counters/regions, then decrypt region bytes in place
// as they stream through, emitting everything else unchanged.
type Writer struct {
	out     io.Writer
	store   *keystore.Store
	opts    Options

	headerBuf    []byte
	headerParsed bool
	isNCCH       bool
	header       header

	isEncrypted bool
	primaryKey  [16]byte
	secondary   [16]byte
	counters    sectionCounters

	regions []region
	written uint64

	exeFSHdrBuf       []byte
	exeFSHdrExpanded  bool

	errState error
}

// NewWriter constructs a sink writing decrypted (or pass-through) bytes to
// out.
func NewWriter(out io.Writer, store *keystore.Store, opts Options) *Writer {
	return &Writer{out: out, store: store, opts: opts}
}

// Err returns the sink's captured error, if any. Once set, Write silently
// discards further bytes, matching spec §4.I's "never raise, transition
// into an error state" propagation policy.
func (w *Writer) Err() error { return w.errState }

func (w *Writer) fail(err error) {
	if w.errState == nil {
		w.errState = err
	}
}

// Write feeds length bytes of the NCCH stream through the sink.
func (w *Writer) Write(p []byte) (int, error) {
	const op = "ncch.Writer.Write"
	total := len(p)
	if w.errState != nil {
		return total, nil
	}

	if !w.headerParsed {
		need := HeaderSize - len(w.headerBuf)
		take := need
		if take > len(p) {
			take = len(p)
		}
		w.headerBuf = append(w.headerBuf, p[:take]...)
		p = p[take:]

		if len(w.headerBuf) < HeaderSize {
			return total, nil
		}

		if !isNCCH(w.headerBuf) {
			w.isNCCH = false
			w.headerParsed = true
			if err := w.emit(w.headerBuf); err != nil {
				w.fail(err)
				return total, nil
			}
		} else {
			h, err := parseHeader(w.headerBuf)
			if err != nil {
				w.fail(err)
				return total, nil
			}
			w.header = h
			w.isNCCH = true
			if err := w.initCrypto(op); err != nil {
				w.fail(err)
				return total, nil
			}
			w.headerParsed = true
			if err := w.emit(withNoCryptoBitForced(h.Raw)); err != nil {
				w.fail(err)
				return total, nil
			}
			w.written = HeaderSize
		}
	}

	if !w.isNCCH {
		if err := w.emit(p); err != nil {
			w.fail(err)
		}
		return total, nil
	}

	if err := w.writeBody(p); err != nil {
		w.fail(err)
	}
	return total, nil
}

func (w *Writer) initCrypto(op string) error {
	if w.header.NoCrypto {
		w.isEncrypted = false
		return nil
	}
	if !w.opts.DecryptionAuthorized {
		return coreerr.New(coreerr.KindNotAuthorized, op, fmt.Errorf("unauthorized encrypted content installation"))
	}
	w.isEncrypted = true

	primary, secondary, err := deriveKeys(w.store, w.header, w.opts.Seeds)
	if err != nil {
		return err
	}
	w.primaryKey = primary
	w.secondary = secondary

	switch w.header.Version {
	case 0, 1, 2:
		w.counters = deriveCounters(w.header)
	default:
		return coreerr.New(coreerr.KindInvalidFormat, op, fmt.Errorf("unknown NCCH version %d", w.header.Version))
	}

	w.regions = buildRegions(w.header)
	return nil
}

// findClosestRegion returns the region covering offset, or the nearest
// region that starts after it, matching the original's find_closest_region.
func (w *Writer) findClosestRegion(offset uint64) (region, bool) {
	var closest region
	haveClosest := false
	for _, r := range w.regions {
		if offset >= r.offset && offset < r.end() {
			return r, true
		}
		if offset < r.offset {
			if !haveClosest || r.offset < closest.offset {
				closest = r
				haveClosest = true
			}
		}
	}
	return closest, haveClosest
}

func (w *Writer) writeBody(p []byte) error {
	for len(p) > 0 {
		r, ok := w.findClosestRegion(w.written)
		if !ok {
			if err := w.emit(p); err != nil {
				return err
			}
			w.written += uint64(len(p))
			return nil
		}

		if w.written < r.offset {
			n := r.offset - w.written
			if uint64(len(p)) < n {
				n = uint64(len(p))
			}
			if err := w.emit(p[:n]); err != nil {
				return err
			}
			w.written += n
			p = p[n:]
			continue
		}

		n := r.end() - w.written
		if uint64(len(p)) < n {
			n = uint64(len(p))
		}
		chunk := p[:n]

		if w.isEncrypted {
			key, ctr := w.keyCtrFor(r.kind)
			seekOffset := int64(w.written - r.seekFrom)
			decrypted := crypto.NewCTRStream(key[:], ctr[:]).CryptAt(seekOffset, chunk)
			if err := w.emit(decrypted); err != nil {
				return err
			}
			if r.kind == regionExeFSHeader {
				w.accumulateExeFSHeader(r, decrypted)
			}
		} else {
			if err := w.emit(chunk); err != nil {
				return err
			}
		}

		w.written += n
		p = p[n:]
	}
	return nil
}

func (w *Writer) keyCtrFor(kind regionKind) (key, ctr [16]byte) {
	switch kind {
	case regionExHeader:
		return w.primaryKey, w.counters.ExHeader
	case regionExeFSHeader, regionExeFSPrimary:
		return w.primaryKey, w.counters.ExeFS
	case regionExeFSSecondary:
		return w.secondary, w.counters.ExeFS
	case regionRomFS:
		return w.secondary, w.counters.RomFS
	default:
		return [16]byte{}, [16]byte{}
	}
}

// accumulateExeFSHeader buffers decrypted exefs-header bytes and, once a
// full 0x200-byte header has been seen, expands the region table with one
// sub-region per non-empty section, per spec §4.I step 5.
func (w *Writer) accumulateExeFSHeader(r region, decrypted []byte) {
	if len(w.exeFSHdrBuf) < ExeFSHeaderSize {
		w.exeFSHdrBuf = append(w.exeFSHdrBuf, decrypted...)
	}
	if !w.exeFSHdrExpanded && len(w.exeFSHdrBuf) >= ExeFSHeaderSize {
		w.regions = append(w.regions, expandExeFSRegions(r, w.exeFSHdrBuf[:ExeFSHeaderSize])...)
		w.exeFSHdrExpanded = true
	}
}

func (w *Writer) emit(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	_, err := w.out.Write(p)
	return err
}

// Close reports the sink's final state; a non-nil error means installation
// of this content must be treated as failed.
func (w *Writer) Close() error { return w.errState }
