package z3ds

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// memFile is a minimal in-memory io.WriteSeeker/io.ReaderAt backing store.
type memFile struct {
	buf []byte
	pos int64
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = m.pos + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	}
	m.pos = next
	return next, nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestWriteReadRoundTrip(t *testing.T) {
	mf := &memFile{}
	w, err := NewWriter(mf, WriteOptions{MaxFrameSize: 16, UnderlyingMagic: [4]byte{'N', 'C', 'C', 'H'}})
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("0123456789abcdef"), 10) // 160 bytes, > frame size
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(mf, int64(len(mf.buf)))
	require.NoError(t, err)
	require.Equal(t, uint64(len(payload)), r.UncompressedSize())

	got := make([]byte, len(payload))
	n, err := r.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, got)
}

func TestReadAtMidFrame(t *testing.T) {
	mf := &memFile{}
	w, err := NewWriter(mf, WriteOptions{MaxFrameSize: 8})
	require.NoError(t, err)
	payload := []byte("abcdefghijklmnopqrstuvwxyz")
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(mf, int64(len(mf.buf)))
	require.NoError(t, err)

	got := make([]byte, 5)
	n, err := r.ReadAt(got, 10)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, payload[10:15], got)
}

func TestSeekRejectsNegative(t *testing.T) {
	mf := &memFile{}
	w, err := NewWriter(mf, WriteOptions{})
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(mf, int64(len(mf.buf)))
	require.NoError(t, err)

	_, err = r.Seek(-1, io.SeekStart)
	require.Error(t, err)
}

func TestPeekUnderlyingMagic(t *testing.T) {
	mf := &memFile{}
	w, err := NewWriter(mf, WriteOptions{UnderlyingMagic: [4]byte{'N', 'C', 'C', 'H'}})
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	magic, ok := PeekUnderlyingMagic(mf.buf[:HeaderSize])
	require.True(t, ok)
	require.Equal(t, [4]byte{'N', 'C', 'C', 'H'}, magic)
}

func TestMetadataBuiltins(t *testing.T) {
	mf := &memFile{}
	w, err := NewWriter(mf, WriteOptions{})
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(mf, int64(len(mf.buf)))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, it := range r.Metadata {
		names[it.Name] = true
	}
	require.True(t, names["compressor"])
	require.True(t, names["date"])
	require.True(t, names["maxframesize"])
}
