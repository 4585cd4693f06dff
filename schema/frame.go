package schema

import (
	"fmt"

	"github.com/dot5enko/geomcache/bits"
)

// frame type u8 + offset u64 + size u32 + time f32
const FrameInfoSize = 1 + 8 + 4 + 4

// FrameAlignment is the alignment of every frame payload.
const FrameAlignment = 16

type FrameInfo struct {
	Type   FrameType
	Offset uint64
	Size   uint32
	Time   float32
}

func (f *FrameInfo) WriteTo(bw *bits.BitWriter) {
	bw.PutUint8(uint8(f.Type))
	bw.PutUint64(f.Offset)
	bw.PutUint32(f.Size)
	bw.PutFloat32(f.Time)
}

func (f *FrameInfo) FromBytes(reader *bits.BitsReader) (topErr error) {

	typ, topErr := reader.ReadU8()
	if topErr != nil {
		return fmt.Errorf("unable to decode frame type: %w", topErr)
	}
	f.Type = FrameType(typ)

	if f.Offset, topErr = reader.ReadU64(); topErr != nil {
		return fmt.Errorf("unable to decode frame offset: %w", topErr)
	}
	if f.Size, topErr = reader.ReadU32(); topErr != nil {
		return fmt.Errorf("unable to decode frame size: %w", topErr)
	}
	if f.Time, topErr = reader.ReadF32(); topErr != nil {
		return fmt.Errorf("unable to decode frame time: %w", topErr)
	}

	return nil
}

// EncodeFrameTable serializes the frame-info table. Passing nil infos
// with a count produces the zeroed placeholder.
func EncodeFrameTable(infos []FrameInfo, count int) []byte {
	bw := bits.NewGrowingBuffer(FrameInfoSize * max(count, 1))

	for i := 0; i < count; i++ {
		if infos == nil {
			bw.EmptyBytes(FrameInfoSize)
			continue
		}
		infos[i].WriteTo(&bw)
	}

	return bw.Detach()
}

// FrameHeaderSize is the padded size of a frame header for meshCount meshes.
func FrameHeaderSize(meshCount int) int {
	raw := 4 + 4 + 4*meshCount
	if rem := raw % FrameAlignment; rem != 0 {
		raw += FrameAlignment - rem
	}
	return raw
}

// FrameHeader starts every frame payload. Offsets are relative to the
// start of the frame.
type FrameHeader struct {
	NodeDataOffset uint32
	MeshOffsets    []uint32
}

func (h *FrameHeader) WriteTo(bw *bits.BitWriter) {
	start := bw.Position()

	bw.PutUint32(h.NodeDataOffset)
	bw.PutUint32(uint32(len(h.MeshOffsets)))
	for _, off := range h.MeshOffsets {
		bw.PutUint32(off)
	}

	written := bw.Position() - start
	bw.EmptyBytes(FrameHeaderSize(len(h.MeshOffsets)) - written)
}

func (h *FrameHeader) FromBytes(reader *bits.BitsReader) (topErr error) {

	if h.NodeDataOffset, topErr = reader.ReadU32(); topErr != nil {
		return fmt.Errorf("unable to decode node data offset: %w", topErr)
	}

	meshCount, topErr := reader.ReadU32()
	if topErr != nil {
		return fmt.Errorf("unable to decode frame mesh count: %w", topErr)
	}

	h.MeshOffsets = make([]uint32, meshCount)
	for i := range h.MeshOffsets {
		if h.MeshOffsets[i], topErr = reader.ReadU32(); topErr != nil {
			return fmt.Errorf("unable to decode mesh offset %d: %w", i, topErr)
		}
	}

	return reader.Skip(FrameHeaderSize(int(meshCount)) - 8 - 4*int(meshCount))
}
