package tileformat

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/cdb"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

type i3dmHeader struct {
	Magic                      [4]byte
	Version                    uint32
	ByteLength                 uint32
	FeatureTableJSONByteLength uint32
	FeatureTableBinByteLength  uint32
	BatchTableJSONByteLength   uint32
	BatchTableBinByteLength    uint32
	GltfFormat                 uint32
}

const vec3ByteSize = 12

// WriteI3DM writes an instanced 3D model tile referencing an external glTF
// asset (gltfFormat 0). Instance positions are encoded relative to the center
// of the bounding box of all instance world positions; per-instance frames
// are derived from the geodetic position and heading.
func WriteI3DM(
	w io.Writer,
	gltfURI string,
	attribs *cdb.InstancesAttributes,
	positions []geometry.Cartographic,
	scales [][3]float32,
	headings []float64,
) (int, error) {
	n := attribs.InstancesCount()
	if n == 0 || len(positions) != n || len(scales) != n || len(headings) != n {
		return 0, fmt.Errorf("%w: i3dm instance arrays must all have length %d", ErrFormatInvariant, n)
	}

	worldPositions := make([]geometry.Vec3, n)
	min := geometry.WGS84.CartographicToCartesian(positions[0])
	max := min
	for i, c := range positions {
		worldPositions[i] = geometry.WGS84.CartographicToCartesian(c)
		min = min.Min(worldPositions[i])
		max = max.Max(worldPositions[i])
	}
	center := min.Add(max).Scale(0.5)

	positionOffset := 0
	scaleOffset := n * vec3ByteSize
	normalUpOffset := scaleOffset + n*vec3ByteSize
	normalRightOffset := normalUpOffset + n*vec3ByteSize

	featureTableJSON, err := json.Marshal(map[string]interface{}{
		"INSTANCES_LENGTH":  n,
		"RTC_CENTER":        [3]float64{center.X, center.Y, center.Z},
		"POSITION":          map[string]int{"byteOffset": positionOffset},
		"SCALE_NON_UNIFORM": map[string]int{"byteOffset": scaleOffset},
		"NORMAL_UP":         map[string]int{"byteOffset": normalUpOffset},
		"NORMAL_RIGHT":      map[string]int{"byteOffset": normalRightOffset},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal i3dm feature table: %w", err)
	}
	featureTableJSON = padJSON(featureTableJSON, i3dmHeaderByteLength)

	featureTableBin := make([]byte, roundUp8(4*n*vec3ByteSize))
	for i := range worldPositions {
		rtc := worldPositions[i].Sub(center)
		orientation := geometry.WGS84.ModelOrientation(positions[i], headings[i])

		putVec3(featureTableBin[positionOffset+i*vec3ByteSize:],
			float32(rtc.X), float32(rtc.Y), float32(rtc.Z))
		putVec3(featureTableBin[scaleOffset+i*vec3ByteSize:],
			scales[i][0], scales[i][1], scales[i][2])
		putVec3(featureTableBin[normalUpOffset+i*vec3ByteSize:],
			float32(orientation.Up.X), float32(orientation.Up.Y), float32(orientation.Up.Z))
		putVec3(featureTableBin[normalRightOffset+i*vec3ByteSize:],
			float32(orientation.Right.X), float32(orientation.Right.Y), float32(orientation.Right.Z))
	}

	batchTableJSON, batchTableBin, err := buildBatchTable(attribs)
	if err != nil {
		return 0, err
	}

	uri := padJSON([]byte(gltfURI), 0)

	header := i3dmHeader{
		Version: containerVersion,
		ByteLength: uint32(i3dmHeaderByteLength + len(featureTableJSON) + len(featureTableBin) +
			len(batchTableJSON) + len(batchTableBin) + len(uri)),
		FeatureTableJSONByteLength: uint32(len(featureTableJSON)),
		FeatureTableBinByteLength:  uint32(len(featureTableBin)),
		BatchTableJSONByteLength:   uint32(len(batchTableJSON)),
		BatchTableBinByteLength:    uint32(len(batchTableBin)),
		GltfFormat:                 0,
	}
	copy(header.Magic[:], i3dmMagic)

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return 0, err
	}
	written := i3dmHeaderByteLength
	for _, section := range [][]byte{featureTableJSON, featureTableBin, batchTableJSON, batchTableBin, uri} {
		n, err := w.Write(section)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, checkWritten(written, int(header.ByteLength))
}

func putVec3(dst []byte, x, y, z float32) {
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(y))
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(z))
}
