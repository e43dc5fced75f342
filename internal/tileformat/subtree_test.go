package tileformat

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubtreeCounts(t *testing.T) {
	tests := []struct {
		levels     int
		nodeCount  uint64
		childCount uint64
	}{
		{levels: 1, nodeCount: 1, childCount: 4},
		{levels: 3, nodeCount: 21, childCount: 64},
		{levels: 4, nodeCount: 85, childCount: 256},
		{levels: 7, nodeCount: 5461, childCount: 16384},
	}
	for _, tt := range tests {
		require.Equal(t, tt.nodeCount, SubtreeNodeCount(tt.levels))
		require.Equal(t, tt.childCount, SubtreeChildCount(tt.levels))
	}
}

func parseSubtree(t *testing.T, data []byte) (SubtreeInfo, map[string]interface{}) {
	t.Helper()
	info, err := ValidateSubtree(data)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimRight(info.JSON, " "), &doc))
	return info, doc
}

// one tile present at the subtree root: node bitmap bit 0 set, child bitmap
// constant 0
func TestWriteSubtreeSingleRootTile(t *testing.T) {
	s := NewSubtree(4)
	s.SetNodeBit(0)
	require.Equal(t, uint64(1), s.AvailableNodeCount())
	require.Equal(t, uint64(0), s.AvailableChildCount())

	var buf bytes.Buffer
	n, err := WriteSubtree(&buf, s)
	require.NoError(t, err)
	require.Equal(t, buf.Len(), n)

	data := buf.Bytes()
	require.Equal(t, "subt", string(data[0:4]))
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[4:]))

	info, doc := parseSubtree(t, data)

	tileAvailability := doc["tileAvailability"].(map[string]interface{})
	require.Equal(t, float64(0), tileAvailability["bufferView"])
	contentAvailability := doc["contentAvailability"].(map[string]interface{})
	require.Equal(t, float64(0), contentAvailability["bufferView"])
	childAvailability := doc["childSubtreeAvailability"].(map[string]interface{})
	require.Equal(t, float64(0), childAvailability["constant"])
	require.NotContains(t, childAvailability, "bufferView")

	// only the node bitmap is in the binary body: ceil(85/8)=11 padded to 16
	require.Equal(t, uint64(16), info.BinByteLength)
	bitmap := data[len(data)-16:]
	require.Equal(t, byte(0x01), bitmap[0])
	for _, b := range bitmap[1:] {
		require.Equal(t, byte(0), b)
	}

	buffers := doc["buffers"].([]interface{})
	require.Len(t, buffers, 1)
	require.Equal(t, float64(16), buffers[0].(map[string]interface{})["byteLength"])

	bufferViews := doc["bufferViews"].([]interface{})
	require.Len(t, bufferViews, 1)
	view := bufferViews[0].(map[string]interface{})
	require.Equal(t, float64(0), view["byteOffset"])
	require.Equal(t, float64(11), view["byteLength"])
}

// every node of a depth 3 subtree present: both availabilities collapse to
// constant 1 and no binary body is emitted
func TestWriteSubtreeFullNodeBitmap(t *testing.T) {
	s := NewSubtree(3)
	for i := uint64(0); i < SubtreeNodeCount(3); i++ {
		s.SetNodeBit(i)
	}
	require.Equal(t, uint64(21), s.AvailableNodeCount())

	var buf bytes.Buffer
	_, err := WriteSubtree(&buf, s)
	require.NoError(t, err)

	info, doc := parseSubtree(t, buf.Bytes())
	require.Equal(t, uint64(0), info.BinByteLength)

	require.NotContains(t, doc, "buffers")
	require.NotContains(t, doc, "bufferViews")

	tileAvailability := doc["tileAvailability"].(map[string]interface{})
	require.Equal(t, float64(1), tileAvailability["constant"])
	contentAvailability := doc["contentAvailability"].(map[string]interface{})
	require.Equal(t, float64(1), contentAvailability["constant"])
	childAvailability := doc["childSubtreeAvailability"].(map[string]interface{})
	require.Equal(t, float64(0), childAvailability["constant"])
}

// bitmap and JSON stay consistent when both bitmaps have mixed content
func TestWriteSubtreeBothBitmaps(t *testing.T) {
	s := NewSubtree(3)
	s.SetNodeBit(0)
	s.SetNodeBit(5)
	s.SetChildBit(9)

	var buf bytes.Buffer
	_, err := WriteSubtree(&buf, s)
	require.NoError(t, err)

	info, doc := parseSubtree(t, buf.Bytes())

	// node: ceil(21/8)=3 padded to 8; child: ceil(64/8)=8
	require.Equal(t, uint64(16), info.BinByteLength)

	buffers := doc["buffers"].([]interface{})
	require.Equal(t, float64(16), buffers[0].(map[string]interface{})["byteLength"])

	bufferViews := doc["bufferViews"].([]interface{})
	require.Len(t, bufferViews, 2)
	nodeView := bufferViews[0].(map[string]interface{})
	require.Equal(t, float64(0), nodeView["byteOffset"])
	require.Equal(t, float64(3), nodeView["byteLength"])
	childView := bufferViews[1].(map[string]interface{})
	require.Equal(t, float64(8), childView["byteOffset"])
	require.Equal(t, float64(8), childView["byteLength"])

	childAvailability := doc["childSubtreeAvailability"].(map[string]interface{})
	require.Equal(t, float64(1), childAvailability["bufferView"])

	data := buf.Bytes()
	body := data[len(data)-16:]
	require.Equal(t, byte(0b00100001), body[0])   // bits 0 and 5
	require.Equal(t, byte(0b00000010), body[8+1]) // child bit 9
}
