package schema

import (
	"fmt"

	"github.com/dot5enko/geomcache/bits"
)

// MeshInfo describes one mesh of the static section. The mesh streams
// follow the record in the same block.
type MeshInfo struct {
	ConstantStreams   Streams
	AnimatedStreams   Streams
	PositionPrecision [3]uint8
	Flags             MeshFlags

	NumVertices  uint32
	NumMaterials uint32
	Hash         uint64

	AABB AABB
	Name string
}

func (m *MeshInfo) WriteTo(bw *bits.BitWriter) {
	bw.PutUint8(uint8(m.ConstantStreams))
	bw.PutUint8(uint8(m.AnimatedStreams))
	_, _ = bw.Write(m.PositionPrecision[:])
	bw.PutUint8(uint8(m.Flags))

	bw.PutUint32(m.NumVertices)
	bw.PutUint32(m.NumMaterials)
	bw.PutUint64(m.Hash)

	m.AABB.WriteTo(bw)
	bw.PutString(m.Name)
}

func (m *MeshInfo) FromBytes(reader *bits.BitsReader) (topErr error) {

	streams, topErr := reader.ReadU8()
	if topErr != nil {
		return fmt.Errorf("unable to decode mesh streams: %w", topErr)
	}
	m.ConstantStreams = Streams(streams)
	m.AnimatedStreams = Streams(reader.MustReadU8())

	if topErr = reader.ReadBytes(3, m.PositionPrecision[:]); topErr != nil {
		return fmt.Errorf("unable to decode position precision: %w", topErr)
	}
	m.Flags = MeshFlags(reader.MustReadU8())

	m.NumVertices = reader.MustReadU32()
	m.NumMaterials = reader.MustReadU32()
	m.Hash = reader.MustReadU64()

	if topErr = m.AABB.FromBytes(reader); topErr != nil {
		return fmt.Errorf("unable to decode mesh aabb: %w", topErr)
	}

	if m.Name, topErr = reader.ReadString(); topErr != nil {
		return fmt.Errorf("unable to decode mesh name: %w", topErr)
	}

	return nil
}
