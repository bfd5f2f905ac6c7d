package nvs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory(8)

	a, err := m.Alloc(4)
	require.NoError(t, err)
	b, err := m.Alloc(4)
	require.NoError(t, err)
	assert.Equal(t, Address(4), b)

	_, err = m.Alloc(1)
	assert.Equal(t, ErrNoSpace, err)

	buf := make([]byte, 4)
	assert.Equal(t, ErrUnwritten, m.Read(a, buf))

	require.NoError(t, m.Write(a, []byte{1, 2, 3, 4}))
	require.NoError(t, m.Read(a, buf))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)

	assert.Equal(t, ErrRange, m.Write(b, []byte{1, 2, 3, 4, 5}))
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvs.bin")

	f, err := OpenFile(path, 16)
	require.NoError(t, err)

	addr, err := f.Alloc(3)
	require.NoError(t, err)

	buf := make([]byte, 3)
	assert.Error(t, f.Read(addr, buf), "nothing written yet")

	require.NoError(t, f.Write(addr, []byte{7, 8, 9}))
	require.NoError(t, f.Close())

	f, err = OpenFile(path, 16)
	require.NoError(t, err)
	defer f.Close()

	addr, err = f.Alloc(3)
	require.NoError(t, err)
	require.NoError(t, f.Read(addr, buf))
	assert.Equal(t, []byte{7, 8, 9}, buf)
}
