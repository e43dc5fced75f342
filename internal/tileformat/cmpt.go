package tileformat

import (
	"encoding/binary"
	"io"
)

type cmptHeader struct {
	Magic       [4]byte
	Version     uint32
	ByteLength  uint32
	TilesLength uint32
}

// InnerTileWriter writes inner tile i and returns its byte length. Each inner
// tile must itself be a complete B3DM, I3DM or CMPT.
type InnerTileWriter func(w io.Writer, i int) (int, error)

// WriteCMPT writes a composite tile of numTiles inner tiles in the order the
// writer produces them. The total byte length is only known after the inner
// tiles are written, so a placeholder header is emitted first and rewritten
// in place at the end.
func WriteCMPT(ws io.WriteSeeker, numTiles int, writeInner InnerTileWriter) (int, error) {
	header := cmptHeader{
		Version:     containerVersion,
		ByteLength:  cmptHeaderByteLength,
		TilesLength: uint32(numTiles),
	}
	copy(header.Magic[:], cmptMagic)

	if err := binary.Write(ws, binary.LittleEndian, &header); err != nil {
		return 0, err
	}

	for i := 0; i < numTiles; i++ {
		n, err := writeInner(ws, i)
		if err != nil {
			return int(header.ByteLength), err
		}
		header.ByteLength += uint32(n)
	}

	if _, err := ws.Seek(0, io.SeekStart); err != nil {
		return int(header.ByteLength), err
	}
	if err := binary.Write(ws, binary.LittleEndian, &header); err != nil {
		return int(header.ByteLength), err
	}
	if _, err := ws.Seek(0, io.SeekEnd); err != nil {
		return int(header.ByteLength), err
	}
	return int(header.ByteLength), nil
}
