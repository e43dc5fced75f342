package tileformat

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTempTile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "tile.cmpt"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteCMPTHeaderAccumulation(t *testing.T) {
	innerLengths := []int{256, 512}

	f := openTempTile(t)
	total, err := WriteCMPT(f, len(innerLengths), func(w io.Writer, i int) (int, error) {
		return w.Write(bytes.Repeat([]byte{byte(i + 1)}, innerLengths[i]))
	})
	require.NoError(t, err)
	require.Equal(t, 16+256+512, total)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Len(t, data, 784)

	require.Equal(t, "cmpt", string(data[0:4]))
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[4:]))
	require.Equal(t, uint32(784), binary.LittleEndian.Uint32(data[8:]))
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[12:]))

	// inner tiles start right after the header and follow back to back
	require.Equal(t, byte(1), data[16])
	require.Equal(t, byte(1), data[16+255])
	require.Equal(t, byte(2), data[272])
	require.Equal(t, byte(2), data[783])
}

func TestWriteCMPTOfB3DMs(t *testing.T) {
	glbs := [][]byte{
		bytes.Repeat([]byte{0x10}, 16),
		bytes.Repeat([]byte{0x20}, 40),
	}

	f := openTempTile(t)
	_, err := WriteCMPT(f, len(glbs), func(w io.Writer, i int) (int, error) {
		return WriteB3DM(w, glbs[i], nil)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)

	info, err := ValidateTile(data)
	require.NoError(t, err)
	require.Equal(t, "cmpt", info.Magic)
	require.Len(t, info.InnerTiles, 2)
	for _, inner := range info.InnerTiles {
		require.Equal(t, "b3dm", inner.Magic)
		require.Equal(t, uint32(1), inner.Version)
	}
}
