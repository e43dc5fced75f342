package tileformat

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/cdb"
)

// buildBatchTable lays out the batch table of an instanced or batched tile.
// CNAM and string columns are stored in the JSON header; integer columns go
// into the binary body as INT32, followed (8 byte aligned) by the double
// columns as DOUBLE. Columns are laid out in sorted name order so the output
// is deterministic. Both returned sections are 8 byte padded; both are nil
// when there are no attributes.
func buildBatchTable(attribs *cdb.InstancesAttributes) (jsonSection, binSection []byte, err error) {
	if attribs == nil {
		return nil, nil, nil
	}

	n := attribs.InstancesCount()
	integerAttribs := attribs.IntegerAttribs()
	doubleAttribs := attribs.DoubleAttribs()

	table := map[string]interface{}{
		"CNAM": attribs.CNAMs(),
	}
	for name, col := range attribs.StringAttribs() {
		table[name] = col
	}

	totalIntegerSize := roundUp8(len(integerAttribs) * 4 * n)
	totalDoubleSize := len(doubleAttribs) * 8 * n
	binSection = make([]byte, totalIntegerSize+totalDoubleSize)

	offset := 0
	for _, name := range sortedKeys(integerAttribs) {
		for i, v := range integerAttribs[name] {
			binary.LittleEndian.PutUint32(binSection[offset+i*4:], uint32(v))
		}
		table[name] = map[string]interface{}{
			"byteOffset":    offset,
			"type":          "SCALAR",
			"componentType": "INT",
		}
		offset += 4 * n
	}

	offset = roundUp8(offset)
	for _, name := range sortedKeys(doubleAttribs) {
		for i, v := range doubleAttribs[name] {
			binary.LittleEndian.PutUint64(binSection[offset+i*8:], math.Float64bits(v))
		}
		table[name] = map[string]interface{}{
			"byteOffset":    offset,
			"type":          "SCALAR",
			"componentType": "DOUBLE",
		}
		offset += 8 * n
	}

	jsonSection, err = json.Marshal(table)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal batch table: %w", err)
	}
	return padJSON(jsonSection, 0), binSection, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
