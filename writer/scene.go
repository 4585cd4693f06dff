package writer

import (
	"fmt"
	"math"

	"github.com/dot5enko/geomcache/bits"
	"github.com/dot5enko/geomcache/schema"
	"github.com/minio/highwayhash"
)

// fixed so equal streams hash equally across exports
var meshHashKey = []byte("geomcache.static.mesh.streams.v1")

const max16BitVertices = math.MaxUint16

type Material struct {
	ID      uint32
	Indices []uint32
}

// Mesh is the static part of one mesh. Streams are already quantized by
// the caller; every non-empty stream has one row per position.
type Mesh struct {
	Name string

	Materials []Material

	Positions [][3]uint16
	Texcoords [][2]uint16
	QTangents [][4]int16
	Colors    [][4]uint8

	// streams that change per frame
	AnimatedStreams   schema.Streams
	PositionPrecision [3]uint8
	AABB              schema.AABB

	// predictor side data, its presence sets MeshUsePredictor
	PredictorData []byte
}

func (m *Mesh) NumVertices() int {
	return len(m.Positions)
}

func (m *Mesh) constantStreams() schema.Streams {
	var s schema.Streams

	if len(m.Materials) > 0 {
		s |= schema.StreamIndices
	}
	if len(m.Positions) > 0 {
		s |= schema.StreamPositions
	}
	if len(m.Texcoords) > 0 {
		s |= schema.StreamTexcoords
	}
	if len(m.QTangents) > 0 {
		s |= schema.StreamQTangents
	}
	if len(m.Colors) > 0 {
		s |= schema.StreamColors
	}

	return s
}

func (m *Mesh) flags() schema.MeshFlags {
	if m.PredictorData != nil {
		return schema.MeshUsePredictor
	}
	return 0
}

// check verifies that row counts across streams agree and that every
// index points at a vertex.
func (m *Mesh) check() error {
	vertices := m.NumVertices()

	rows := []struct {
		name  string
		count int
	}{
		{"texcoords", len(m.Texcoords)},
		{"qtangents", len(m.QTangents)},
		{"colors", len(m.Colors)},
	}

	for _, r := range rows {
		if r.count != 0 && r.count != vertices {
			return fmt.Errorf("%w: mesh %q has %d %s for %d positions", ErrStreamMismatch, m.Name, r.count, r.name, vertices)
		}
	}

	for _, mat := range m.Materials {
		for _, idx := range mat.Indices {
			if int(idx) >= vertices {
				return fmt.Errorf("%w: mesh %q material %d indexes vertex %d of %d", ErrStreamMismatch, m.Name, mat.ID, idx, vertices)
			}
		}
	}

	return nil
}

// encodeStreams serializes the static streams of m.
func (m *Mesh) encodeStreams(bw *bits.BitWriter, indices32 bool) {
	for _, mat := range m.Materials {
		bw.PutUint32(mat.ID)
		bw.PutUint32(uint32(len(mat.Indices)))

		for _, idx := range mat.Indices {
			if indices32 {
				bw.PutUint32(idx)
			} else {
				bw.PutUint16(uint16(idx))
			}
		}
	}

	for _, p := range m.Positions {
		bw.PutUint16(p[0])
		bw.PutUint16(p[1])
		bw.PutUint16(p[2])
	}
	for _, uv := range m.Texcoords {
		bw.PutUint16(uv[0])
		bw.PutUint16(uv[1])
	}
	for _, q := range m.QTangents {
		for _, c := range q {
			bw.PutInt16(c)
		}
	}
	for _, c := range m.Colors {
		_, _ = bw.Write(c[:])
	}

	if m.PredictorData != nil {
		bw.PutUint32(uint32(len(m.PredictorData)))
		_, _ = bw.Write(m.PredictorData)
	}
}

func (m *Mesh) info(streams []byte) schema.MeshInfo {
	return schema.MeshInfo{
		ConstantStreams:   m.constantStreams(),
		AnimatedStreams:   m.AnimatedStreams,
		PositionPrecision: m.PositionPrecision,
		Flags:             m.flags(),
		NumVertices:       uint32(m.NumVertices()),
		NumMaterials:      uint32(len(m.Materials)),
		Hash:              highwayhash.Sum64(streams, meshHashKey),
		AABB:              m.AABB.Sanitized(),
		Name:              m.Name,
	}
}

// Node is one entry of the scene hierarchy.
type Node struct {
	Name          string
	Type          schema.NodeType
	TransformType schema.TransformType
	Visible       bool

	// nil for nodes without geometry, otherwise one of the meshes passed
	// to WriteStaticData
	Mesh *Mesh

	Transform schema.Transform

	// only written for schema.NodePhysicsGeometry
	PhysicsGeometry []byte

	Children []*Node
}

// walk visits n and its children depth first.
func (n *Node) walk(visit func(*Node) error) error {
	if err := visit(n); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := child.walk(visit); err != nil {
			return err
		}
	}
	return nil
}

// FrameDesc is known for every frame before the first one is written.
type FrameDesc struct {
	Type schema.FrameType
	Time float32
}

// FrameData is the encoded animation of one frame.
type FrameData struct {
	// per mesh, in WriteStaticData order; empty for static meshes
	MeshData [][]byte

	// one per animated node, depth first
	NodeTransforms []schema.Transform

	AABB schema.AABB
}
