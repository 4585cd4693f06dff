package writer

import (
	"fmt"
	"time"

	"github.com/dot5enko/geomcache/diskwriter"
	"github.com/dot5enko/geomcache/schema"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	Path string `validate:"required"`

	Compression schema.CompressionFormat `validate:"lte=3"`

	PlaybackFromMemory bool

	// 32-bit indices are picked per file once a mesh has more than
	// 65535 vertices, this forces them regardless.
	Force32BitIndices bool

	// zero means diskwriter.DefaultRingSize
	DiskRingSize int `validate:"omitempty,min=4"`

	// logs flushes that wait longer than this, zero disables
	StallWarning time.Duration `validate:"gte=0"`

	// optional, nil disables pipeline metrics
	Registerer prometheus.Registerer
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid writer config: %w", err)
	}
	return nil
}

func (c Config) diskOptions() diskwriter.Options {
	return diskwriter.Options{
		RingSize:     c.DiskRingSize,
		StallWarning: c.StallWarning,
	}
}
