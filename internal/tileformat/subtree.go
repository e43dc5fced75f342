package tileformat

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math/bits"
)

type subtreeHeader struct {
	Magic          [4]byte
	Version        uint32
	JSONByteLength uint64
	BinByteLength  uint64
}

// SubtreeNodeCount returns the number of quadtree nodes in a subtree of the
// given depth: (4^levels - 1) / 3.
func SubtreeNodeCount(levels int) uint64 {
	return (pow4(levels) - 1) / 3
}

// SubtreeChildCount returns the number of child subtrees under a subtree of
// the given depth: 4^levels.
func SubtreeChildCount(levels int) uint64 {
	return pow4(levels)
}

func pow4(n int) uint64 {
	return uint64(1) << uint(2*n)
}

// Subtree is one implicit-tiling availability unit: a node availability
// bitmap over the subtree's quadtree nodes and a child-subtree availability
// bitmap over the 4^levels subtrees below it. Bitmaps are kept at their
// 8 byte padded lengths.
type Subtree struct {
	Levels      int
	NodeBitmap  []byte
	ChildBitmap []byte
}

// NewSubtree allocates zeroed bitmaps for a subtree of the given depth.
func NewSubtree(levels int) *Subtree {
	nodeBytes := (SubtreeNodeCount(levels) + 7) / 8
	childBytes := (SubtreeChildCount(levels) + 7) / 8
	return &Subtree{
		Levels:      levels,
		NodeBitmap:  make([]byte, roundUp8(int(nodeBytes))),
		ChildBitmap: make([]byte, roundUp8(int(childBytes))),
	}
}

// SetNodeBit marks a node available. Bits are little-endian within a byte.
func (s *Subtree) SetNodeBit(index uint64) {
	s.NodeBitmap[index/8] |= 1 << (index % 8)
}

// NodeBit reports whether a node is marked available.
func (s *Subtree) NodeBit(index uint64) bool {
	return s.NodeBitmap[index/8]&(1<<(index%8)) != 0
}

// SetChildBit marks a child subtree available.
func (s *Subtree) SetChildBit(index uint64) {
	s.ChildBitmap[index/8] |= 1 << (index % 8)
}

// ChildBit reports whether a child subtree is marked available.
func (s *Subtree) ChildBit(index uint64) bool {
	return s.ChildBitmap[index/8]&(1<<(index%8)) != 0
}

// AvailableNodeCount is the popcount of the node availability bitmap.
func (s *Subtree) AvailableNodeCount() uint64 {
	return popcount(s.NodeBitmap)
}

// AvailableChildCount is the popcount of the child subtree availability
// bitmap.
func (s *Subtree) AvailableChildCount() uint64 {
	return popcount(s.ChildBitmap)
}

func popcount(bitmap []byte) uint64 {
	var count uint64
	for _, b := range bitmap {
		count += uint64(bits.OnesCount8(b))
	}
	return count
}

type subtreeAvailabilityJSON struct {
	Constant   *int `json:"constant,omitempty"`
	BufferView *int `json:"bufferView,omitempty"`
}

type subtreeBufferJSON struct {
	ByteLength int `json:"byteLength"`
}

type subtreeBufferViewJSON struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
}

type subtreeJSON struct {
	Buffers                  []subtreeBufferJSON     `json:"buffers,omitempty"`
	BufferViews              []subtreeBufferViewJSON `json:"bufferViews,omitempty"`
	TileAvailability         subtreeAvailabilityJSON `json:"tileAvailability"`
	ContentAvailability      subtreeAvailabilityJSON `json:"contentAvailability"`
	ChildSubtreeAvailability subtreeAvailabilityJSON `json:"childSubtreeAvailability"`
}

// WriteSubtree serializes one subtree availability file. A bitmap whose
// popcount is 0 or equal to its node count collapses to a JSON constant and
// is left out of the binary body.
func WriteSubtree(w io.Writer, s *Subtree) (int, error) {
	nodeCount := SubtreeNodeCount(s.Levels)
	childCount := SubtreeChildCount(s.Levels)
	nodeByteLength := int((nodeCount + 7) / 8)
	childByteLength := int((childCount + 7) / 8)

	availableNodes := s.AvailableNodeCount()
	availableChildren := s.AvailableChildCount()
	constantNodes := availableNodes == 0 || availableNodes == nodeCount
	constantChildren := availableChildren == 0 || availableChildren == childCount

	var doc subtreeJSON
	binByteLength := 0
	bufferViewIndex := 0

	if !constantNodes || !constantChildren {
		bufferByteLength := 0
		if !constantNodes {
			bufferByteLength += roundUp8(nodeByteLength)
		}
		if !constantChildren {
			bufferByteLength += roundUp8(childByteLength)
		}
		doc.Buffers = []subtreeBufferJSON{{ByteLength: bufferByteLength}}
	}

	if constantNodes {
		constant := boolToInt(availableNodes != 0)
		doc.TileAvailability.Constant = &constant
		doc.ContentAvailability.Constant = &constant
	} else {
		view := bufferViewIndex
		doc.TileAvailability.BufferView = &view
		doc.ContentAvailability.BufferView = &view
		doc.BufferViews = append(doc.BufferViews, subtreeBufferViewJSON{
			Buffer:     0,
			ByteOffset: binByteLength,
			ByteLength: nodeByteLength,
		})
		binByteLength += roundUp8(nodeByteLength)
		bufferViewIndex++
	}

	if constantChildren {
		constant := boolToInt(availableChildren != 0)
		doc.ChildSubtreeAvailability.Constant = &constant
	} else {
		view := bufferViewIndex
		doc.ChildSubtreeAvailability.BufferView = &view
		doc.BufferViews = append(doc.BufferViews, subtreeBufferViewJSON{
			Buffer:     0,
			ByteOffset: binByteLength,
			ByteLength: childByteLength,
		})
		binByteLength += roundUp8(childByteLength)
	}

	jsonSection, err := json.Marshal(&doc)
	if err != nil {
		return 0, fmt.Errorf("marshal subtree JSON: %w", err)
	}
	jsonSection = padJSON(jsonSection, 0)

	header := subtreeHeader{
		Version:        containerVersion,
		JSONByteLength: uint64(len(jsonSection)),
		BinByteLength:  uint64(binByteLength),
	}
	copy(header.Magic[:], subtreeMagic)

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return 0, err
	}
	written := subtreeHeaderByteLength

	sections := [][]byte{jsonSection}
	if !constantNodes {
		sections = append(sections, s.NodeBitmap[:roundUp8(nodeByteLength)])
	}
	if !constantChildren {
		sections = append(sections, s.ChildBitmap[:roundUp8(childByteLength)])
	}
	for _, section := range sections {
		n, err := w.Write(section)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, checkWritten(written, subtreeHeaderByteLength+len(jsonSection)+binByteLength)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
