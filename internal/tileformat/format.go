// Package tileformat writes the 3D Tiles binary container formats: B3DM,
// I3DM, CMPT and the implicit-tiling subtree availability file.
//
// Every container starts with a 4 byte ASCII magic, a little-endian version
// (always 1) and a little-endian total byte length equal to the final file
// size. Sections are independently padded to 8 byte boundaries: JSON sections
// with ASCII spaces, binary sections with zero bytes. Header length fields
// describe the padded lengths.
package tileformat

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrFormatInvariant reports an internal container authoring assertion
// failure, e.g. a computed total byte length that does not match the bytes
// actually produced. It is fatal to the conversion.
var ErrFormatInvariant = errors.New("format invariant violation")

const (
	b3dmMagic    = "b3dm"
	i3dmMagic    = "i3dm"
	cmptMagic    = "cmpt"
	subtreeMagic = "subt"

	containerVersion = 1

	b3dmHeaderByteLength    = 28
	i3dmHeaderByteLength    = 32
	cmptHeaderByteLength    = 16
	subtreeHeaderByteLength = 24
)

// roundUp8 rounds n up to the next multiple of 8.
func roundUp8(n int) int {
	return (n + 7) &^ 7
}

// padJSON appends ASCII spaces so that precedingBytes+len(section) is a
// multiple of 8.
func padJSON(section []byte, precedingBytes int) []byte {
	total := precedingBytes + len(section)
	return append(section, bytes.Repeat([]byte{' '}, roundUp8(total)-total)...)
}

// padBinary appends zero bytes so that len(section) is a multiple of 8.
func padBinary(section []byte) []byte {
	return append(section, make([]byte, roundUp8(len(section))-len(section))...)
}

func checkWritten(written, declared int) error {
	if written != declared {
		return fmt.Errorf("%w: wrote %d bytes, header declares %d", ErrFormatInvariant, written, declared)
	}
	return nil
}
