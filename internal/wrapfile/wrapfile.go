// Package wrapfile implements the per-console AES-CTR wrapping layer (§4.H):
// a ByteFile that transparently encrypts on write and decrypts on read using
// a key/IV derived in internal/unique. Grounded on FileUtil::CryptoIOFile as
// referenced from unique_data.cpp's OpenUniqueCryptoFile.
package wrapfile

import (
	"fmt"
	"io"

	"github.com/azahar-emu/titlecore/internal/coreerr"
	"github.com/azahar-emu/titlecore/internal/crypto"
)

// ByteFile is the shared backing-file interface two wrapping layers
// (compression, per-console encryption) can stack on top of one another, per
// spec §9's composition design note.
type ByteFile interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Size() (int64, error)
	Close() error
}

// File wraps an underlying ByteFile with AES-CTR keyed by the per-console
// wrapping key/IV for a purpose. The keystream offset is always the file
// offset modulo 16; each ReadAt/WriteAt recomputes the CTR seek position
// rather than carrying forward state, so concurrent callers at different
// offsets cannot corrupt each other's keystream.
type File struct {
	underlying ByteFile
	stream     *crypto.CTRStream
	cursor     int64
}

// New wraps underlying using key/iv, matching HW::UniqueData's derivation
// for the given crypto-file purpose (see internal/unique.WrappingKeyIV).
func New(underlying ByteFile, key, iv [16]byte) *File {
	return &File{underlying: underlying, stream: crypto.NewCTRStream(key[:], iv[:])}
}

// ReadAt reads and decrypts len(p) bytes starting at off.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	const op = "wrapfile.File.ReadAt"
	if off < 0 {
		return 0, coreerr.New(coreerr.KindInvalidArgument, op, fmt.Errorf("negative offset"))
	}
	n, err := f.underlying.ReadAt(p, off)
	if n > 0 {
		plain := f.stream.CryptAt(off, p[:n])
		copy(p[:n], plain)
	}
	return n, err
}

// WriteAt encrypts p and writes it to the underlying file at off.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	const op = "wrapfile.File.WriteAt"
	if off < 0 {
		return 0, coreerr.New(coreerr.KindInvalidArgument, op, fmt.Errorf("negative offset"))
	}
	cipherText := f.stream.CryptAt(off, p)
	return f.underlying.WriteAt(cipherText, off)
}

// Seek repositions the file's own cursor, used by Read/Write below; it does
// not itself touch the underlying file.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	const op = "wrapfile.File.Seek"
	size, err := f.underlying.Size()
	if err != nil {
		return 0, err
	}
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = f.cursor + offset
	case io.SeekEnd:
		next = size + offset
	default:
		return 0, coreerr.New(coreerr.KindInvalidArgument, op, fmt.Errorf("bad whence %d", whence))
	}
	if next < 0 {
		return 0, coreerr.New(coreerr.KindInvalidArgument, op, fmt.Errorf("negative resulting position"))
	}
	f.cursor = next
	return next, nil
}

// Read reads from the cursor position and advances it.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.cursor)
	f.cursor += int64(n)
	return n, err
}

// Write writes at the cursor position and advances it.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.WriteAt(p, f.cursor)
	f.cursor += int64(n)
	return n, err
}

// Size returns the underlying file's size (encryption does not change
// length).
func (f *File) Size() (int64, error) { return f.underlying.Size() }

// Close closes the underlying file.
func (f *File) Close() error { return f.underlying.Close() }
