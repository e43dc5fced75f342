package tileformat

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/cdb"
)

type b3dmHeader struct {
	Magic                      [4]byte
	Version                    uint32
	ByteLength                 uint32
	FeatureTableJSONByteLength uint32
	FeatureTableBinByteLength  uint32
	BatchTableJSONByteLength   uint32
	BatchTableBinByteLength    uint32
}

// WriteB3DM writes a batched 3D model tile embedding the given GLB payload.
// attribs may be nil, in which case BATCH_LENGTH is 0 and the batch table
// sections are empty. Section lengths are computed before the header is
// emitted so the total byte length is correct on first write.
func WriteB3DM(w io.Writer, glb []byte, attribs *cdb.InstancesAttributes) (int, error) {
	batchLength := attribs.InstancesCount()
	featureTable := padJSON(
		[]byte(fmt.Sprintf(`{"BATCH_LENGTH":%d}`, batchLength)),
		b3dmHeaderByteLength,
	)

	batchTableJSON, batchTableBin, err := buildBatchTable(attribs)
	if err != nil {
		return 0, err
	}

	glbPadded := padBinary(glb)

	header := b3dmHeader{
		Version: containerVersion,
		ByteLength: uint32(b3dmHeaderByteLength + len(featureTable) +
			len(batchTableJSON) + len(batchTableBin) + len(glbPadded)),
		FeatureTableJSONByteLength: uint32(len(featureTable)),
		FeatureTableBinByteLength:  0,
		BatchTableJSONByteLength:   uint32(len(batchTableJSON)),
		BatchTableBinByteLength:    uint32(len(batchTableBin)),
	}
	copy(header.Magic[:], b3dmMagic)

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return 0, err
	}
	written := b3dmHeaderByteLength
	for _, section := range [][]byte{featureTable, batchTableJSON, batchTableBin, glbPadded} {
		n, err := w.Write(section)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, checkWritten(written, int(header.ByteLength))
}
