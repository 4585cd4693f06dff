package cmd

import (
	"fmt"

	"github.com/dot5enko/geomcache/pool"
	"github.com/dot5enko/geomcache/schema"
	"github.com/dot5enko/geomcache/writer"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo <output>",
	Short: "Export a synthetic animated cube",
	Long: `Writes an animated cube cache to <output> using the export config
(--config, GEOMCACHE_* environment, defaults).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadExportConfig(cfgFile)
		if err != nil {
			return err
		}

		stats, err := runDemo(cfg, args[0])
		if err != nil {
			return err
		}

		color.Green(" +++ wrote %s: %d frames, header %s, static %s, animation %s (%s uncompressed)",
			args[0], cfg.Frames,
			humanize.Bytes(stats.HeaderBytes),
			humanize.Bytes(stats.StaticBytes),
			humanize.Bytes(stats.AnimationBytes),
			humanize.Bytes(stats.UncompressedAnimationBytes),
		)

		return nil
	},
}

func demoFrames(cfg *ExportConfig) []writer.FrameDesc {
	frames := make([]writer.FrameDesc, cfg.Frames)

	for i := range frames {
		frames[i].Time = float32(i) / cfg.FPS
		frames[i].Type = schema.BFrame
		if i%cfg.KeyframeInterval == 0 || i == len(frames)-1 {
			frames[i].Type = schema.IFrame
		}
	}

	return frames
}

func runDemo(cfg *ExportConfig, path string) (writer.Stats, error) {
	wc, err := cfg.WriterConfig(path)
	if err != nil {
		return writer.Stats{}, err
	}

	workers := pool.New(cfg.Workers)
	defer workers.Close()

	w, err := writer.New(wc, workers)
	if err != nil {
		return writer.Stats{}, err
	}

	meshes, root := demoCube()

	if err := w.WriteStaticData(demoFrames(cfg), meshes, root); err != nil {
		w.Abort()
		return writer.Stats{}, fmt.Errorf("unable to write static data: %w", err)
	}

	for i := 0; i < cfg.Frames; i++ {
		if err := w.WriteFrame(demoFrame(i, cfg.FPS)); err != nil {
			w.Abort()
			return writer.Stats{}, fmt.Errorf("unable to write frame %d: %w", i, err)
		}
	}

	return w.FinishWriting()
}
