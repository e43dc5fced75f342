package tileformat

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/cdb"
)

func TestWriteB3DMNoFeatures(t *testing.T) {
	glb := bytes.Repeat([]byte{0xab}, 16)

	var buf bytes.Buffer
	n, err := WriteB3DM(&buf, glb, nil)
	require.NoError(t, err)
	require.Equal(t, buf.Len(), n)

	data := buf.Bytes()
	require.Equal(t, "b3dm", string(data[0:4]))
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[4:]))
	require.Equal(t, uint32(len(data)), binary.LittleEndian.Uint32(data[8:]))

	ftJSONLen := binary.LittleEndian.Uint32(data[12:])
	ftBinLen := binary.LittleEndian.Uint32(data[16:])
	btJSONLen := binary.LittleEndian.Uint32(data[20:])
	btBinLen := binary.LittleEndian.Uint32(data[24:])

	// header + feature table JSON is 8 byte aligned via space padding
	require.Equal(t, uint32(0), (28+ftJSONLen)%8)
	require.Equal(t, uint32(0), ftBinLen)
	require.Equal(t, uint32(0), btJSONLen)
	require.Equal(t, uint32(0), btBinLen)

	ftJSON := data[28 : 28+ftJSONLen]
	require.Equal(t, `{"BATCH_LENGTH":0}`, string(bytes.TrimRight(ftJSON, " ")))

	_, err = ValidateTile(data)
	require.NoError(t, err)
}

func TestWriteB3DMWithAttributes(t *testing.T) {
	attribs := cdb.NewInstancesAttributes()
	for i := 0; i < 3; i++ {
		attribs.AddCNAM("AL015_002")
		attribs.AddInteger("CMIX", int32(i))
		attribs.AddDouble("BBH", float64(i)*1.5)
		attribs.AddString("FACC", "AL015")
	}
	require.NoError(t, attribs.Validate())

	glb := bytes.Repeat([]byte{0x01}, 24)

	var buf bytes.Buffer
	_, err := WriteB3DM(&buf, glb, attribs)
	require.NoError(t, err)

	data := buf.Bytes()
	info, err := ValidateTile(data)
	require.NoError(t, err)
	require.Equal(t, "b3dm", info.Magic)

	ftJSONLen := info.SectionLengths[0]
	btJSONLen := info.SectionLengths[2]
	btBinLen := info.SectionLengths[3]
	require.NotZero(t, btJSONLen)
	// one INT32 column of 3 entries rounded to 8, one DOUBLE column
	require.Equal(t, uint32(roundUp8(3*4)+3*8), btBinLen)

	btJSON := data[28+ftJSONLen : 28+ftJSONLen+btJSONLen]
	var table map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimRight(btJSON, " "), &table))
	require.Len(t, table["CNAM"], 3)
	require.Len(t, table["FACC"], 3)

	cmix := table["CMIX"].(map[string]interface{})
	require.Equal(t, "INT", cmix["componentType"])
	require.Equal(t, float64(0), cmix["byteOffset"])

	bbh := table["BBH"].(map[string]interface{})
	require.Equal(t, "DOUBLE", bbh["componentType"])
	require.Equal(t, float64(roundUp8(3*4)), bbh["byteOffset"])

	ftJSON := data[28 : 28+ftJSONLen]
	require.Contains(t, string(ftJSON), `"BATCH_LENGTH":3`)
}
