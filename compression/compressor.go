package compression

import (
	"errors"
	"fmt"

	"github.com/dot5enko/geomcache/schema"
)

var (
	ErrUnknownFormat = errors.New("unknown compression format")
	ErrSizeMismatch  = errors.New("decompressed size mismatch")
)

// Compressor turns one raw block into its compressed payload.
// Implementations must be safe for concurrent use, blocks are compressed
// on several pool workers at once.
type Compressor interface {
	Format() schema.CompressionFormat
	Compress(src []byte) ([]byte, error)
}

// Codec is a Compressor that can also read its blocks back.
type Codec interface {
	Compressor
	Decompress(src []byte, uncompressedSize int) ([]byte, error)
}

func New(format schema.CompressionFormat) (Codec, error) {
	switch format {
	case schema.CompressionNone:
		return Identity{}, nil
	case schema.CompressionDeflate:
		return NewDeflate(), nil
	case schema.CompressionLZ4HC:
		return NewLz4HC(), nil
	case schema.CompressionZstd:
		return NewZstd()
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
}

// ParseFormat maps a config name to its format.
func ParseFormat(name string) (schema.CompressionFormat, error) {
	for _, f := range []schema.CompressionFormat{
		schema.CompressionNone,
		schema.CompressionDeflate,
		schema.CompressionLZ4HC,
		schema.CompressionZstd,
	} {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Identity stores blocks as they are.
type Identity struct{}

func (Identity) Format() schema.CompressionFormat { return schema.CompressionNone }

func (Identity) Compress(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (Identity) Decompress(src []byte, uncompressedSize int) ([]byte, error) {
	if len(src) != uncompressedSize {
		return nil, ErrSizeMismatch
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}
