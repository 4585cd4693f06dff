package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/dot5enko/geomcache/compression"
	gcio "github.com/dot5enko/geomcache/io"
	"github.com/dot5enko/geomcache/schema"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	inspectYaml   bool
	inspectRaw    bool
	inspectStatic bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the header and frame table of a cache file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(cmd.OutOrStdout(), args[0], inspectOptions{
			yaml:   inspectYaml,
			raw:    inspectRaw,
			static: inspectStatic,
		})
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectYaml, "yaml", false, "print as yaml")
	inspectCmd.Flags().BoolVar(&inspectRaw, "raw", false, "dump decoded records")
	inspectCmd.Flags().BoolVar(&inspectStatic, "static", true, "decode the static section")
}

type inspectOptions struct {
	yaml   bool
	raw    bool
	static bool
}

type frameView struct {
	Type   string  `yaml:"type"`
	Offset uint64  `yaml:"offset"`
	Size   uint32  `yaml:"size"`
	Time   float32 `yaml:"time"`
}

type meshView struct {
	Name      string `yaml:"name"`
	Vertices  uint32 `yaml:"vertices"`
	Materials uint32 `yaml:"materials"`
	Hash      string `yaml:"hash"`
}

type cacheView struct {
	Version            uint16        `yaml:"version"`
	Compression        string        `yaml:"compression"`
	PlaybackFromMemory bool          `yaml:"playback_from_memory"`
	Indices32Bit       bool          `yaml:"indices_32bit"`
	UncompressedBytes  uint64        `yaml:"uncompressed_animation_bytes"`
	AABB               [2][3]float32 `yaml:"aabb"`
	Meshes             []meshView    `yaml:"meshes,omitempty"`
	Nodes              int           `yaml:"nodes,omitempty"`
	Frames             []frameView   `yaml:"frames"`
}

func viewOf(idx *gcio.CacheIndex, static *gcio.StaticData) cacheView {
	h := idx.Header

	view := cacheView{
		Version:            h.Version,
		Compression:        h.BlockCompression.String(),
		PlaybackFromMemory: h.Flags.Has(schema.FlagPlaybackFromMemory),
		Indices32Bit:       h.Flags.Has(schema.Flag32BitIndices),
		UncompressedBytes:  h.TotalUncompressedAnimationSize,
		AABB:               [2][3]float32{h.AnimationAABB.Min, h.AnimationAABB.Max},
		Frames:             make([]frameView, len(idx.Frames)),
	}

	for i, f := range idx.Frames {
		view.Frames[i] = frameView{Type: f.Type.String(), Offset: f.Offset, Size: f.Size, Time: f.Time}
	}

	if static != nil {
		view.Nodes = len(static.Nodes)
		for _, m := range static.Meshes {
			view.Meshes = append(view.Meshes, meshView{
				Name:      m.Name,
				Vertices:  m.NumVertices,
				Materials: m.NumMaterials,
				Hash:      fmt.Sprintf("%016x", m.Hash),
			})
		}
	}

	return view
}

func inspect(out io.Writer, path string, opts inspectOptions) error {
	fr := gcio.NewFileReader(path)
	if err := fr.Open(); err != nil {
		return fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer fr.Close()

	idx, err := gcio.ReadIndex(fr)
	if err != nil {
		if errors.Is(err, schema.ErrInvalidSignature) {
			color.Red(" !!! %s is not a finished geometry cache", path)
		}
		return err
	}

	var static *gcio.StaticData
	if opts.static {
		codec, err := compression.New(idx.Header.BlockCompression)
		if err != nil {
			return err
		}
		if static, err = gcio.ReadStatic(fr, codec, idx); err != nil {
			return fmt.Errorf("unable to read static section: %w", err)
		}
	}

	switch {
	case opts.raw:
		spew.Fdump(out, idx, static)
		return nil
	case opts.yaml:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(viewOf(idx, static)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return gcio.DumpIndex(out, idx, static)
	}
}
