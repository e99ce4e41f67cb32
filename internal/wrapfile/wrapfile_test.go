package wrapfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// memByteFile is a minimal in-memory ByteFile for tests.
type memByteFile struct {
	buf []byte
}

func (m *memByteFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, nil
	}
	n := copy(p, m.buf[off:])
	return n, nil
}

func (m *memByteFile) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:end], p)
	return len(p), nil
}

func (m *memByteFile) Seek(offset int64, whence int) (int64, error) { return 0, nil }
func (m *memByteFile) Size() (int64, error)                         { return int64(len(m.buf)), nil }
func (m *memByteFile) Close() error                                 { return nil }

func TestWriteThenReadRoundTrip(t *testing.T) {
	underlying := &memByteFile{}
	var key, iv [16]byte
	key[0] = 0x42
	f := New(underlying, key, iv)

	plain := []byte("0123456789abcdef0123456789abcdef") // 32 bytes, two full blocks
	n, err := f.WriteAt(plain, 0)
	require.NoError(t, err)
	require.Equal(t, len(plain), n)

	require.NotEqual(t, plain, underlying.buf[:len(plain)])

	got := make([]byte, len(plain))
	_, err = f.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestReadAtArbitraryAlignedOffset(t *testing.T) {
	underlying := &memByteFile{}
	var key, iv [16]byte
	key[1] = 7
	f := New(underlying, key, iv)

	plain := make([]byte, 64)
	for i := range plain {
		plain[i] = byte(i)
	}
	_, err := f.WriteAt(plain, 0)
	require.NoError(t, err)

	got := make([]byte, 16)
	_, err = f.ReadAt(got, 32) // 32 is 16-byte aligned
	require.NoError(t, err)
	require.Equal(t, plain[32:48], got)
}

func TestSeekTracksCursorForReadWrite(t *testing.T) {
	underlying := &memByteFile{}
	var key, iv [16]byte
	f := New(underlying, key, iv)

	_, err := f.Write([]byte("hello world"))
	require.NoError(t, err)

	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	got := make([]byte, 11)
	_, err = f.Read(got)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}
