package cmd

import (
	"github.com/chewxy/math32"
	"github.com/dot5enko/geomcache/bits"
	"github.com/dot5enko/geomcache/schema"
	"github.com/dot5enko/geomcache/writer"
)

// positions are quantized over [-1, 1] into u16
const cubeHalfExtent = 1.0

var cubeCorners = [8][3]float32{
	{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
}

var cubeTriangles = []uint32{
	0, 2, 1, 0, 3, 2, // back
	4, 5, 6, 4, 6, 7, // front
	0, 1, 5, 0, 5, 4, // bottom
	3, 7, 6, 3, 6, 2, // top
	0, 4, 7, 0, 7, 3, // left
	1, 2, 6, 1, 6, 5, // right
}

func quantize(v float32) uint16 {
	t := (v + cubeHalfExtent) / (2 * cubeHalfExtent)
	return uint16(math32.Round(t * 65535))
}

// demoCube is a unit cube under an animated pivot.
func demoCube() ([]*writer.Mesh, *writer.Node) {
	mesh := &writer.Mesh{
		Name:              "cube",
		Materials:         []writer.Material{{ID: 0, Indices: cubeTriangles}},
		Positions:         make([][3]uint16, len(cubeCorners)),
		Colors:            make([][4]uint8, len(cubeCorners)),
		AnimatedStreams:   schema.StreamPositions,
		PositionPrecision: [3]uint8{16, 16, 16},
		AABB:              schema.AABB{Min: schema.Vec3{-1, -1, -1}, Max: schema.Vec3{1, 1, 1}},
	}

	for i, c := range cubeCorners {
		mesh.Positions[i] = [3]uint16{quantize(c[0]), quantize(c[1]), quantize(c[2])}
		mesh.Colors[i] = [4]uint8{uint8(i * 32), 128, 255 - uint8(i*32), 255}
	}

	root := &writer.Node{
		Name:          "root",
		Type:          schema.NodeTransform,
		TransformType: schema.TransformConstant,
		Visible:       true,
		Transform:     schema.IdentityTransform(),
		Children: []*writer.Node{
			{
				Name:          "pivot",
				Type:          schema.NodeTransform,
				TransformType: schema.TransformAnimated,
				Visible:       true,
				Transform:     schema.IdentityTransform(),
				Children: []*writer.Node{
					{
						Name:          "cube",
						Type:          schema.NodeMesh,
						TransformType: schema.TransformConstant,
						Visible:       true,
						Mesh:          mesh,
						Transform:     schema.IdentityTransform(),
					},
				},
			},
		},
	}

	return []*writer.Mesh{mesh}, root
}

// demoFrame spins the pivot around y and breathes the cube positions.
func demoFrame(frame int, fps float32) *writer.FrameData {
	t := float32(frame) / fps

	angle := t * math32.Pi / 2
	s, c := math32.Sincos(angle / 2)

	pivot := schema.IdentityTransform()
	pivot.Rotation = [4]float32{0, s, 0, c}

	scale := 1 + 0.25*math32.Sin(t*2*math32.Pi)

	deltas := bits.NewGrowingBuffer(len(cubeCorners) * schema.PositionElementSize)
	bounds := schema.EmptyAABB()

	for _, corner := range cubeCorners {
		var p schema.Vec3
		for axis := 0; axis < 3; axis++ {
			p[axis] = corner[axis] * scale
			deltas.PutInt16(int16(math32.Round((p[axis] - corner[axis]) * 1024)))
		}
		bounds.AddPoint(p)
	}

	return &writer.FrameData{
		MeshData:       [][]byte{deltas.Detach()},
		NodeTransforms: []schema.Transform{pivot},
		AABB:           bounds,
	}
}
