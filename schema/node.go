package schema

import (
	"fmt"

	"github.com/dot5enko/geomcache/bits"
)

// NoMesh marks a node without a mesh.
const NoMesh uint32 = 0xFFFFFFFF

// rotation quat + translation + scale
const TransformSize = (4 + 3 + 3) * 4

type Transform struct {
	Rotation    [4]float32
	Translation Vec3
	Scale       Vec3
}

func IdentityTransform() Transform {
	return Transform{
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    Vec3{1, 1, 1},
	}
}

func (t *Transform) WriteTo(bw *bits.BitWriter) {
	bw.PutFloat32s(t.Rotation[:]...)
	bw.PutFloat32s(t.Translation[:]...)
	bw.PutFloat32s(t.Scale[:]...)
}

func (t *Transform) FromBytes(reader *bits.BitsReader) error {
	if err := reader.ReadF32s(t.Rotation[:]); err != nil {
		return err
	}
	if err := reader.ReadF32s(t.Translation[:]); err != nil {
		return err
	}
	return reader.ReadF32s(t.Scale[:])
}

// NodeInfo is one record of the depth-first node hierarchy.
type NodeInfo struct {
	Type          NodeType
	TransformType TransformType
	Visible       bool

	MeshIndex   uint32
	NumChildren uint32
	Name        string

	InitialTransform Transform

	// only for NodePhysicsGeometry
	PhysicsGeometry []byte
}

func (n *NodeInfo) WriteTo(bw *bits.BitWriter) {
	bw.PutUint8(uint8(n.Type))
	bw.PutUint8(uint8(n.TransformType))
	bw.PutBool(n.Visible)
	bw.PutUint8(0)

	bw.PutUint32(n.MeshIndex)
	bw.PutUint32(n.NumChildren)
	bw.PutString(n.Name)

	n.InitialTransform.WriteTo(bw)

	if n.Type == NodePhysicsGeometry {
		bw.PutUint32(uint32(len(n.PhysicsGeometry)))
		_, _ = bw.Write(n.PhysicsGeometry)
	}
}

func (n *NodeInfo) FromBytes(reader *bits.BitsReader) (topErr error) {

	typ, topErr := reader.ReadU8()
	if topErr != nil {
		return fmt.Errorf("unable to decode node type: %w", topErr)
	}
	n.Type = NodeType(typ)
	n.TransformType = TransformType(reader.MustReadU8())
	n.Visible = reader.MustReadU8() != 0
	_ = reader.MustReadU8()

	n.MeshIndex = reader.MustReadU32()
	n.NumChildren = reader.MustReadU32()

	if n.Name, topErr = reader.ReadString(); topErr != nil {
		return fmt.Errorf("unable to decode node name: %w", topErr)
	}

	if topErr = n.InitialTransform.FromBytes(reader); topErr != nil {
		return fmt.Errorf("unable to decode node transform: %w", topErr)
	}

	if n.Type == NodePhysicsGeometry {
		size, err := reader.ReadU32()
		if err != nil {
			return fmt.Errorf("unable to decode physics blob size: %w", err)
		}
		n.PhysicsGeometry = make([]byte, size)
		if err := reader.ReadBytes(int(size), n.PhysicsGeometry); err != nil {
			return fmt.Errorf("unable to decode physics blob: %w", err)
		}
	}

	return nil
}
