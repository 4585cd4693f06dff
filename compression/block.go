package compression

import (
	"errors"
	"fmt"

	"github.com/dot5enko/geomcache/schema"
)

// MaxBlockSize bounds the raw size of one block, both when writing and
// when trusting a size read back from a file.
const MaxBlockSize = 1 << 30

var ErrBlockTooLarge = errors.New("block exceeds maximum size")

// EncodeBlock compresses raw and frames it as
// {uncompressed size, compressed size, payload}.
func EncodeBlock(c Compressor, raw []byte) ([]byte, error) {
	if len(raw) > MaxBlockSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlockTooLarge, len(raw))
	}

	payload, err := c.Compress(raw)
	if err != nil {
		return nil, err
	}

	out := make([]byte, schema.CompressedBlockHeaderSize+len(payload))

	schema.CompressedBlockHeader{
		UncompressedSize: uint32(len(raw)),
		CompressedSize:   uint32(len(payload)),
	}.Put(out)

	copy(out[schema.CompressedBlockHeaderSize:], payload)

	return out, nil
}

// DecodeBlock reverses EncodeBlock and reports how many bytes of block
// were consumed.
func DecodeBlock(c Codec, block []byte) ([]byte, int, error) {
	var header schema.CompressedBlockHeader
	if err := header.FromBytes(block); err != nil {
		return nil, 0, err
	}

	if header.UncompressedSize > MaxBlockSize {
		return nil, 0, fmt.Errorf("%w: header claims %d raw bytes", ErrBlockTooLarge, header.UncompressedSize)
	}

	end := schema.CompressedBlockHeaderSize + int(header.CompressedSize)
	if end > len(block) {
		return nil, 0, fmt.Errorf("block payload truncated: need %d bytes, have %d", end, len(block))
	}

	raw, err := c.Decompress(block[schema.CompressedBlockHeaderSize:end], int(header.UncompressedSize))
	if err != nil {
		return nil, 0, err
	}

	return raw, end, nil
}
