package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/dot5enko/geomcache/schema"
	"github.com/klauspost/compress/flate"
)

// Deflate keeps a pool of flate writers, they are expensive to set up.
type Deflate struct {
	writers sync.Pool
}

func NewDeflate() *Deflate {
	return &Deflate{}
}

func (c *Deflate) Format() schema.CompressionFormat { return schema.CompressionDeflate }

func (c *Deflate) Compress(src []byte) ([]byte, error) {
	output := bytes.NewBuffer(make([]byte, 0, len(src)/2+64))

	fw, _ := c.writers.Get().(*flate.Writer)
	if fw == nil {
		var err error
		fw, err = flate.NewWriter(output, flate.BestCompression)
		if err != nil {
			return nil, err
		}
	} else {
		fw.Reset(output)
	}
	defer c.writers.Put(fw)

	if _, err := fw.Write(src); err != nil {
		return nil, fmt.Errorf("unable to deflate %d bytes: %w", len(src), err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("unable to finish deflate stream: %w", err)
	}

	return output.Bytes(), nil
}

func (c *Deflate) Decompress(src []byte, uncompressedSize int) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(src))
	defer fr.Close()

	out := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(fr, out); err != nil {
		return nil, fmt.Errorf("unable to inflate: %w", err)
	}

	return out, nil
}
