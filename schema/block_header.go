package schema

import (
	"encoding/binary"
	"fmt"
)

// CompressedBlockHeaderSize prefixes every block written through the
// compress path.
const CompressedBlockHeaderSize = 4 + 4

type CompressedBlockHeader struct {
	UncompressedSize uint32
	CompressedSize   uint32
}

func (h CompressedBlockHeader) Put(out []byte) {
	binary.LittleEndian.PutUint32(out[0:4], h.UncompressedSize)
	binary.LittleEndian.PutUint32(out[4:8], h.CompressedSize)
}

func (h *CompressedBlockHeader) FromBytes(in []byte) error {
	if len(in) < CompressedBlockHeaderSize {
		return fmt.Errorf("compressed block header needs %d bytes, got %d", CompressedBlockHeaderSize, len(in))
	}

	h.UncompressedSize = binary.LittleEndian.Uint32(in[0:4])
	h.CompressedSize = binary.LittleEndian.Uint32(in[4:8])

	return nil
}
