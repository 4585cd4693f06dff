package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dot5enko/geomcache/compression"
	"github.com/dot5enko/geomcache/writer"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ExportConfig drives the demo export. Sources by precedence:
// GEOMCACHE_* environment, the config file, defaults.
type ExportConfig struct {
	Compression string `mapstructure:"compression" validate:"oneof=none deflate lz4hc zstd" yaml:"compression"`

	// zero means one per CPU
	Workers int `mapstructure:"workers" validate:"gte=0" yaml:"workers"`

	DiskRingSize int `mapstructure:"disk_ring_size" validate:"omitempty,min=4" yaml:"disk_ring_size"`

	PlaybackFromMemory bool `mapstructure:"playback_from_memory" yaml:"playback_from_memory"`
	Force32BitIndices  bool `mapstructure:"force_32bit_indices" yaml:"force_32bit_indices"`

	Frames int     `mapstructure:"frames" validate:"gte=1,lte=100000" yaml:"frames"`
	FPS    float32 `mapstructure:"fps" validate:"gt=0" yaml:"fps"`

	// a new I-frame every n frames
	KeyframeInterval int `mapstructure:"keyframe_interval" validate:"gte=1" yaml:"keyframe_interval"`

	StallWarning time.Duration `mapstructure:"stall_warning" validate:"gte=0" yaml:"stall_warning"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("compression", "lz4hc")
	v.SetDefault("workers", 0)
	v.SetDefault("disk_ring_size", 8)
	v.SetDefault("playback_from_memory", false)
	v.SetDefault("force_32bit_indices", false)
	v.SetDefault("frames", 120)
	v.SetDefault("fps", 30)
	v.SetDefault("keyframe_interval", 10)
	v.SetDefault("stall_warning", "10s")
}

// LoadExportConfig reads path if given. A missing default config is not
// an error, defaults apply.
func LoadExportConfig(path string) (*ExportConfig, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("GEOMCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var cfg ExportConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// WriterConfig maps the export settings onto a writer config for path.
func (c *ExportConfig) WriterConfig(path string) (writer.Config, error) {
	format, err := compression.ParseFormat(c.Compression)
	if err != nil {
		return writer.Config{}, err
	}

	return writer.Config{
		Path:               path,
		Compression:        format,
		PlaybackFromMemory: c.PlaybackFromMemory,
		Force32BitIndices:  c.Force32BitIndices,
		DiskRingSize:       c.DiskRingSize,
		StallWarning:       c.StallWarning,
	}, nil
}
