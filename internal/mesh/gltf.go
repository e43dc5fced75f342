package mesh

import (
	"bytes"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// GLB encodes the mesh as a binary glTF payload suitable for embedding in a
// B3DM tile. The RTC translation is carried on the scene node.
func (m *Mesh) GLB() ([]byte, error) {
	if len(m.Positions) == 0 {
		return nil, fmt.Errorf("empty mesh")
	}

	doc := &gltf.Document{
		Asset: gltf.Asset{Version: "2.0", Generator: "cdb-to-3dtiles"},
	}

	attributes := map[string]uint32{
		gltf.POSITION: modeler.WritePosition(doc, m.Positions),
	}
	if len(m.Normals) == len(m.Positions) && len(m.Normals) > 0 {
		attributes[gltf.NORMAL] = modeler.WriteNormal(doc, m.Normals)
	}

	mode := gltf.PrimitiveTriangles
	if m.Lines {
		mode = gltf.PrimitiveLines
	}

	primitive := &gltf.Primitive{
		Attributes: attributes,
		Indices:    gltf.Index(modeler.WriteIndices(doc, m.Indices)),
		Mode:       mode,
	}

	doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{primitive}}}
	doc.Nodes = []*gltf.Node{{
		Mesh:        gltf.Index(uint32(0)),
		Translation: [3]float32{float32(m.Center.X), float32(m.Center.Y), float32(m.Center.Z)},
	}}
	doc.Scenes = []*gltf.Scene{{Nodes: []uint32{0}}}
	doc.Scene = gltf.Index(uint32(0))

	var buf bytes.Buffer
	encoder := gltf.NewEncoder(&buf)
	encoder.AsBinary = true
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode glb: %w", err)
	}
	return buf.Bytes(), nil
}
