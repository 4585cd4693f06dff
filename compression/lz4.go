package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dot5enko/geomcache/schema"
	"github.com/pierrec/lz4/v4"
)

func CompressLz4(src []byte, output *bytes.Buffer, level lz4.CompressionLevel) error {
	zw := lz4.NewWriter(output)

	if err := zw.Apply(lz4.CompressionLevelOption(level)); err != nil {
		return err
	}

	if _, err := zw.Write(src); err != nil {
		return err
	}

	flushErr := zw.Flush()

	if flushErr != nil {
		return flushErr
	}

	return zw.Close()
}

// Lz4HC compresses blocks with the high compression lz4 levels.
type Lz4HC struct {
	level lz4.CompressionLevel
}

func NewLz4HC() *Lz4HC {
	return &Lz4HC{level: lz4.Level9}
}

func (c *Lz4HC) Format() schema.CompressionFormat { return schema.CompressionLZ4HC }

func (c *Lz4HC) Compress(src []byte) ([]byte, error) {
	output := bytes.NewBuffer(make([]byte, 0, len(src)/2+64))

	if err := CompressLz4(src, output, c.level); err != nil {
		return nil, fmt.Errorf("unable to lz4 compress %d bytes: %w", len(src), err)
	}

	return output.Bytes(), nil
}

func (c *Lz4HC) Decompress(src []byte, uncompressedSize int) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(src))

	out := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("unable to lz4 decompress: %w", err)
	}

	return out, nil
}
