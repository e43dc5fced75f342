package tileformat

import (
	"encoding/binary"
	"fmt"
)

// ContainerInfo summarizes a parsed container header.
type ContainerInfo struct {
	Magic      string
	Version    uint32
	ByteLength uint32
	// SectionLengths are the declared section byte lengths in header order
	// (feature table JSON/bin, batch table JSON/bin for B3DM and I3DM).
	SectionLengths []uint32
	// InnerTiles holds the parsed inner containers of a CMPT.
	InnerTiles []ContainerInfo
}

// ValidateTile parses and checks a B3DM, I3DM or CMPT byte slice against the
// container invariants: correct magic, version 1, a total byte length equal
// to the data size, 8 byte aligned section lengths, and sections that sum to
// the file size.
func ValidateTile(data []byte) (ContainerInfo, error) {
	if len(data) < 12 {
		return ContainerInfo{}, fmt.Errorf("container too short: %d bytes", len(data))
	}
	magic := string(data[0:4])
	switch magic {
	case b3dmMagic:
		return validateTableContainer(data, magic, b3dmHeaderByteLength, false)
	case i3dmMagic:
		return validateTableContainer(data, magic, i3dmHeaderByteLength, true)
	case cmptMagic:
		return validateCMPT(data)
	default:
		return ContainerInfo{}, fmt.Errorf("unknown container magic %q", magic)
	}
}

func validateTableContainer(data []byte, magic string, headerLen int, hasGltfFormat bool) (ContainerInfo, error) {
	info := ContainerInfo{Magic: magic}
	if len(data) < headerLen {
		return info, fmt.Errorf("%s: truncated header", magic)
	}

	info.Version = binary.LittleEndian.Uint32(data[4:])
	info.ByteLength = binary.LittleEndian.Uint32(data[8:])
	for offset := 12; offset < 28; offset += 4 {
		info.SectionLengths = append(info.SectionLengths, binary.LittleEndian.Uint32(data[offset:]))
	}

	if info.Version != containerVersion {
		return info, fmt.Errorf("%s: version %d, want %d", magic, info.Version, containerVersion)
	}
	if int(info.ByteLength) != len(data) {
		return info, fmt.Errorf("%s: byteLength %d, file is %d bytes", magic, info.ByteLength, len(data))
	}

	var sections uint32
	for i, length := range info.SectionLengths {
		if length%8 != 0 {
			return info, fmt.Errorf("%s: section %d length %d not 8 byte aligned", magic, i, length)
		}
		sections += length
	}
	if uint32(headerLen)+sections > info.ByteLength {
		return info, fmt.Errorf("%s: sections of %d bytes exceed the %d byte container", magic, sections, info.ByteLength)
	}

	trailing := info.ByteLength - uint32(headerLen) - sections
	if hasGltfFormat {
		gltfFormat := binary.LittleEndian.Uint32(data[28:])
		if gltfFormat > 1 {
			return info, fmt.Errorf("%s: invalid gltfFormat %d", magic, gltfFormat)
		}
	}
	if trailing%8 != 0 {
		return info, fmt.Errorf("%s: trailing payload %d bytes not 8 byte aligned", magic, trailing)
	}
	return info, nil
}

func validateCMPT(data []byte) (ContainerInfo, error) {
	info := ContainerInfo{Magic: cmptMagic}
	if len(data) < cmptHeaderByteLength {
		return info, fmt.Errorf("cmpt: truncated header")
	}

	info.Version = binary.LittleEndian.Uint32(data[4:])
	info.ByteLength = binary.LittleEndian.Uint32(data[8:])
	tilesLength := binary.LittleEndian.Uint32(data[12:])

	if info.Version != containerVersion {
		return info, fmt.Errorf("cmpt: version %d, want %d", info.Version, containerVersion)
	}
	if int(info.ByteLength) != len(data) {
		return info, fmt.Errorf("cmpt: byteLength %d, file is %d bytes", info.ByteLength, len(data))
	}

	offset := cmptHeaderByteLength
	for i := uint32(0); i < tilesLength; i++ {
		if offset+12 > len(data) {
			return info, fmt.Errorf("cmpt: inner tile %d exceeds container", i)
		}
		innerLength := int(binary.LittleEndian.Uint32(data[offset+8:]))
		if offset+innerLength > len(data) {
			return info, fmt.Errorf("cmpt: inner tile %d length %d exceeds container", i, innerLength)
		}
		inner, err := ValidateTile(data[offset : offset+innerLength])
		if err != nil {
			return info, fmt.Errorf("cmpt inner tile %d: %w", i, err)
		}
		info.InnerTiles = append(info.InnerTiles, inner)
		offset += innerLength
	}
	if offset != len(data) {
		return info, fmt.Errorf("cmpt: inner tiles cover %d of %d bytes", offset, len(data))
	}
	return info, nil
}

// SubtreeInfo summarizes a parsed subtree availability file.
type SubtreeInfo struct {
	Version        uint32
	JSONByteLength uint64
	BinByteLength  uint64
	JSON           []byte
}

// ValidateSubtree parses and checks a subtree availability byte slice.
func ValidateSubtree(data []byte) (SubtreeInfo, error) {
	var info SubtreeInfo
	if len(data) < subtreeHeaderByteLength {
		return info, fmt.Errorf("subtree: truncated header")
	}
	if magic := binary.LittleEndian.Uint32(data[0:]); magic != 0x74627573 {
		return info, fmt.Errorf("subtree: bad magic 0x%08x", magic)
	}

	info.Version = binary.LittleEndian.Uint32(data[4:])
	info.JSONByteLength = binary.LittleEndian.Uint64(data[8:])
	info.BinByteLength = binary.LittleEndian.Uint64(data[16:])

	if info.Version != containerVersion {
		return info, fmt.Errorf("subtree: version %d, want %d", info.Version, containerVersion)
	}
	if info.JSONByteLength%8 != 0 || info.BinByteLength%8 != 0 {
		return info, fmt.Errorf("subtree: section lengths not 8 byte aligned")
	}
	total := subtreeHeaderByteLength + int(info.JSONByteLength) + int(info.BinByteLength)
	if total != len(data) {
		return info, fmt.Errorf("subtree: sections cover %d of %d bytes", total, len(data))
	}

	info.JSON = data[subtreeHeaderByteLength : subtreeHeaderByteLength+int(info.JSONByteLength)]
	return info, nil
}
