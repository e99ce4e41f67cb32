// Package keystore holds the slotted AES key halves (KeyX/KeyY/Normal), RSA
// slots, and the ECC root public key that every other component derives its
// working keys from. Grounded on original_source/core/hw/aes/key.cpp.
package keystore

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/azahar-emu/titlecore/internal/coreerr"
	"github.com/azahar-emu/titlecore/internal/crypto"
)

// KeySlot is a triple of optional 16-byte key halves. Setting X or Y
// recomputes Normal from the generator constant; setting Normal directly
// leaves X/Y untouched, matching spec §3's key-slot rule.
type KeySlot struct {
	x, y, normal *[16]byte
}

func (s *KeySlot) recompute(generatorConstant [16]byte) {
	if s.x != nil && s.y != nil {
		n := generateNormalKey(*s.x, *s.y, generatorConstant)
		s.normal = &n
	}
}

// SetX sets the slot's X half and recomputes Normal if Y is already set.
func (s *KeySlot) SetX(x [16]byte, generatorConstant [16]byte) {
	s.x = &x
	s.recompute(generatorConstant)
}

// SetY sets the slot's Y half and recomputes Normal if X is already set.
func (s *KeySlot) SetY(y [16]byte, generatorConstant [16]byte) {
	s.y = &y
	s.recompute(generatorConstant)
}

// SetNormal sets the Normal key directly, leaving X/Y alone.
func (s *KeySlot) SetNormal(n [16]byte) {
	s.normal = &n
}

// X, Y, Normal return the slot's halves and whether each is set.
func (s *KeySlot) X() ([16]byte, bool) {
	if s.x == nil {
		return [16]byte{}, false
	}
	return *s.x, true
}

func (s *KeySlot) Y() ([16]byte, bool) {
	if s.y == nil {
		return [16]byte{}, false
	}
	return *s.y, true
}

func (s *KeySlot) Normal() ([16]byte, bool) {
	if s.normal == nil {
		return [16]byte{}, false
	}
	return *s.normal, true
}

// Store is the process-wide key store. It is built once (via sync.Once) and
// thereafter read-only except for SelectCommonKeyIndex.
type Store struct {
	mu sync.RWMutex

	generatorConstant [16]byte
	aes               map[string]*KeySlot
	rsa               map[string]crypto.RSAKey
	eccRootPublic     crypto.ECCPublicKey
}

func newStore() *Store {
	return &Store{aes: make(map[string]*KeySlot), rsa: make(map[string]crypto.RSAKey)}
}

var (
	defaultStore     *Store
	defaultStoreOnce sync.Once
)

// Default returns the process-wide key store, loading it from presetReader
// (or the embedded fallback blob) on first use. Subsequent calls ignore
// presetReader and return the already-initialized store, matching
// HW::AES::InitKeys's one-time-init contract.
func Default(presetReader io.Reader) *Store {
	defaultStoreOnce.Do(func() {
		defaultStore = newStore()
		var r io.Reader = presetReader
		if r == nil {
			r = fallbackPresetReader()
		}
		if err := defaultStore.LoadPresetKeys(r); err != nil {
			slog.Error("keystore: failed to load preset keys", "err", err)
		}
	})
	return defaultStore
}

// Slot returns the named AES key slot, creating it empty if absent.
func (st *Store) Slot(name string) *KeySlot {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.aes[name]
	if !ok {
		s = &KeySlot{}
		st.aes[name] = s
	}
	return s
}

// RSASlot returns the named RSA key, or false if not loaded.
func (st *Store) RSASlot(name string) (crypto.RSAKey, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	k, ok := st.rsa[name]
	return k, ok
}

// ECCRootPublicKey returns the root ECC public key used to verify CTCert.
func (st *Store) ECCRootPublicKey() crypto.ECCPublicKey {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.eccRootPublic
}

// SetSlotY sets the named AES slot's Y half, recomputing Normal against the
// store's generator constant, creating the slot if absent. Used by
// consumers (such as the content-container crypto sink) that derive a
// per-content keyY and need it composed through the same rotate-add
// machinery LoadPresetKeys uses.
func (st *Store) SetSlotY(name string, y [16]byte) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.slotLocked(name).SetY(y, st.generatorConstant)
}

// SelectCommonKeyIndex atomically rebinds the TicketCommonKey slot's Y half
// to commonN's Y half, the one mutation the store allows after init.
func (st *Store) SelectCommonKeyIndex(index int) error {
	name := fmt.Sprintf("common%d", index)
	st.mu.Lock()
	defer st.mu.Unlock()
	src, ok := st.aes[name]
	if !ok || src.y == nil {
		return coreerr.New(coreerr.KindNotFound, "keystore.SelectCommonKeyIndex", fmt.Errorf("slot %s has no Y half", name))
	}
	dst := st.aes["TicketCommonKey"]
	if dst == nil {
		dst = &KeySlot{}
		st.aes["TicketCommonKey"] = dst
	}
	dst.SetY(*src.y, st.generatorConstant)
	return nil
}

// LoadPresetKeys parses the ":SECTION"-delimited plain-text key table
// format (AES / RSA / ECC), matching HW::AES::LoadPresetKeys.
func (st *Store) LoadPresetKeys(r io.Reader) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	section := ""
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, ":") {
			section = strings.TrimPrefix(line, ":")
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			slog.Warn("keystore: failed to parse preset line", "line", line)
			continue
		}
		name := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		raw, err := hex.DecodeString(value)
		if err != nil {
			slog.Warn("keystore: invalid hex value", "name", name, "err", err)
			continue
		}
		switch section {
		case "AES":
			st.loadAESLine(name, raw)
		case "RSA":
			st.loadRSALine(name, raw)
		case "ECC":
			st.loadECCLine(name, raw)
		}
	}
	return scanner.Err()
}

func to16(raw []byte) [16]byte {
	var out [16]byte
	copy(out[:], raw)
	return out
}

func (st *Store) loadAESLine(name string, raw []byte) {
	if name == "generatorConstant" {
		st.generatorConstant = to16(raw)
		return
	}
	v := to16(raw)
	switch {
	case strings.HasSuffix(name, "KeyX"):
		slotName := strings.TrimSuffix(name, "KeyX")
		st.slotLocked(slotName).SetX(v, st.generatorConstant)
	case strings.HasSuffix(name, "KeyY"):
		slotName := strings.TrimSuffix(name, "KeyY")
		st.slotLocked(slotName).SetY(v, st.generatorConstant)
	case strings.HasSuffix(name, "KeyN"):
		slotName := strings.TrimSuffix(name, "KeyN")
		st.slotLocked(slotName).SetNormal(v)
	case strings.HasPrefix(name, "common"):
		// commonN is a key-Y candidate for TicketCommonKey, bound by
		// SelectCommonKeyIndex.
		st.slotLocked(name).SetY(v, st.generatorConstant)
	default:
		// nfcSecretN{Phrase,Seed,HmacKey}, nfcKeyY, nfcIv, otpKey,
		// otpIV, movableKeyY, movableCmacY, dlpKeyY: stored verbatim as a
		// one-half slot (most of these are used as raw key material, not
		// X/Y pairs needing rotate-add derivation).
		st.slotLocked(name).SetNormal(v)
	}
}

func (st *Store) slotLocked(name string) *KeySlot {
	s, ok := st.aes[name]
	if !ok {
		s = &KeySlot{}
		st.aes[name] = s
	}
	return s
}

func (st *Store) loadRSALine(name string, raw []byte) {
	switch name {
	case "ticketWrapExp":
		st.setRSAExponent("ticketWrap", raw)
		return
	case "ticketWrapMod":
		st.setRSAModulus("ticketWrap", raw)
		return
	case "secureInfoExp":
		st.setRSAExponent("secureInfo", raw)
		return
	case "secureInfoMod":
		st.setRSAModulus("secureInfo", raw)
		return
	case "lfcsExp":
		st.setRSAExponent("lfcs", raw)
		return
	case "lfcsMod":
		st.setRSAModulus("lfcs", raw)
		return
	}

	switch {
	case strings.HasSuffix(name, "X"):
		st.setRSAExponent(strings.TrimSuffix(name, "X"), raw)
	case strings.HasSuffix(name, "M"):
		st.setRSAModulus(strings.TrimSuffix(name, "M"), raw)
	case strings.HasSuffix(name, "P"):
		base := strings.TrimSuffix(name, "P")
		k := st.rsa[base]
		k.D = raw
		st.rsa[base] = k
	default:
		slog.Warn("keystore: unrecognized RSA preset name", "name", name)
	}
}

func (st *Store) setRSAExponent(base string, raw []byte) {
	k := st.rsa[base]
	exp, err := strconv.ParseUint(hex.EncodeToString(raw), 16, 32)
	if err == nil {
		k.Exponent = uint32(exp)
	}
	st.rsa[base] = k
}

func (st *Store) setRSAModulus(base string, raw []byte) {
	k := st.rsa[base]
	k.Modulus = raw
	st.rsa[base] = k
}

func (st *Store) loadECCLine(name string, raw []byte) {
	if name != "rootPublicXY" {
		return
	}
	half := len(raw) / 2
	if half > 30 {
		half = 30
	}
	copy(st.eccRootPublic.X[:], raw[:half])
	if len(raw) > half {
		copy(st.eccRootPublic.Y[:], raw[half:])
	}
}
