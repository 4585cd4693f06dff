package compression

import (
	"fmt"

	"github.com/dot5enko/geomcache/schema"
	"github.com/klauspost/compress/zstd"
)

// Zstd shares one encoder and decoder, EncodeAll and DecodeAll are
// safe for concurrent use.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Zstd{enc: enc, dec: dec}, nil
}

func (c *Zstd) Format() schema.CompressionFormat { return schema.CompressionZstd }

func (c *Zstd) Compress(src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, make([]byte, 0, len(src)/2+64)), nil
}

func (c *Zstd) Decompress(src []byte, uncompressedSize int) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("unable to zstd decompress: %w", err)
	}
	if len(out) != uncompressedSize {
		return nil, ErrSizeMismatch
	}
	return out, nil
}
