// Package writer lays out a geometry cache file and drives the block and
// disk writers that produce it.
package writer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dot5enko/geomcache/blockwriter"
	"github.com/dot5enko/geomcache/compression"
	"github.com/dot5enko/geomcache/diskwriter"
	gcio "github.com/dot5enko/geomcache/io"
	"github.com/dot5enko/geomcache/metrics"
	"github.com/dot5enko/geomcache/schema"
	"github.com/google/uuid"
)

var (
	ErrIntegrity          = errors.New("frame did not reach disk")
	ErrStreamMismatch     = errors.New("stream size mismatch")
	ErrUnknownMesh        = errors.New("node references unknown mesh")
	ErrTooManyFrames      = errors.New("more frames than declared")
	ErrFrameCountMismatch = errors.New("frame count mismatch")
	ErrInvalidState       = errors.New("invalid writer state")
)

type state uint8

const (
	stateCreated state = iota
	stateStatic
	stateFinished
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateStatic:
		return "static written"
	case stateFinished:
		return "finished"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Stats struct {
	HeaderBytes                uint64
	StaticBytes                uint64
	AnimationBytes             uint64
	UncompressedAnimationBytes uint64
}

// Writer writes one cache file. It is driven by a single goroutine:
// WriteStaticData once, WriteFrame for every declared frame, then
// FinishWriting. The first error fails the writer for good.
type Writer struct {
	config   Config
	exportId uuid.UUID
	log      *slog.Logger

	file       outputFile
	disk       *diskwriter.DiskWriter
	compressor compression.Compressor
	blocks     *blockwriter.BlockWriter
	metrics    *metrics.Pipeline

	state    state
	err      error
	tornDown bool

	flags schema.FileFlags

	headerFuture  diskwriter.WriteFuture
	tableFuture   diskwriter.WriteFuture
	staticFutures []diskwriter.WriteFuture

	frames       []FrameDesc
	frameFutures []diskwriter.WriteFuture
	nextFrame    int
	lastDecile   int

	meshes        []*Mesh
	animatedNodes int

	animationAABB              schema.AABB
	uncompressedAnimationBytes uint64
}

// outputFile is the handle the cache is written through, a
// *gcio.FileWriter outside of tests.
type outputFile interface {
	diskwriter.File
	Sync() error
	Close() error
	Remove() error
}

// New creates the output file and starts the pipeline. workers may be
// shared with other writers.
func New(config Config, workers blockwriter.Pool) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	compressor, err := compression.New(config.Compression)
	if err != nil {
		return nil, err
	}

	file, err := gcio.CreateFileWriter(config.Path)
	if err != nil {
		return nil, err
	}

	return newWriter(config, workers, compressor, file)
}

// newWriter starts the pipeline over an already created file. The file
// is removed if the pipeline cannot start.
func newWriter(config Config, workers blockwriter.Pool, compressor compression.Compressor, file outputFile) (*Writer, error) {
	m := metrics.NewPipeline(config.Registerer)

	options := config.diskOptions()
	options.Metrics = m

	disk, err := diskwriter.New(file, options)
	if err != nil {
		_ = file.Remove()
		return nil, err
	}

	w := &Writer{
		config:        config,
		exportId:      uuid.New(),
		file:          file,
		disk:          disk,
		compressor:    compressor,
		blocks:        blockwriter.New(disk, workers, compressor, m),
		metrics:       m,
		animationAABB: schema.EmptyAABB(),
	}

	w.log = slog.With("export_id", w.exportId.String(), "path", config.Path)
	w.log.Info("export started", "compression", compressor.Format().String(), "workers", workers.NumThreads(), "slots", w.blocks.Slots())

	return w, nil
}

func (w *Writer) ExportId() uuid.UUID {
	return w.exportId
}

func (w *Writer) Flags() schema.FileFlags {
	return w.flags
}

func (w *Writer) expect(s state, op string) error {
	if w.err != nil {
		return w.err
	}
	if w.state != s {
		return fmt.Errorf("%w: %s while %s", ErrInvalidState, op, w.state)
	}
	return nil
}

// fail records the first error and moves the writer to the failed state.
func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
		w.state = stateFailed
		w.log.Error("export failed", "error", err)
	}
	return w.err
}

// writeBlock cuts the staged bytes as one block.
func (w *Writer) writeBlock(compress bool, future *diskwriter.WriteFuture, offset int64, origin diskwriter.Origin) error {
	if _, err := w.blocks.WriteBlock(compress, future, offset, origin); err != nil {
		return w.fail(err)
	}
	return nil
}

func (w *Writer) flush() error {
	if err := w.blocks.Flush(); err != nil {
		return w.fail(err)
	}
	if err := w.disk.Flush(); err != nil {
		return w.fail(err)
	}
	return nil
}

// teardown stops the pipeline in dependency order. Safe to call more
// than once.
func (w *Writer) teardown() error {
	if w.tornDown {
		return nil
	}
	w.tornDown = true

	w.blocks.Close()

	return w.disk.EndThread()
}

// Abort stops the pipeline and removes the partial file. A finished
// export is left alone.
func (w *Writer) Abort() error {
	if w.state == stateFinished {
		return nil
	}

	if w.err == nil {
		w.fail(fmt.Errorf("%w: export aborted", ErrInvalidState))
	}

	if err := w.teardown(); err != nil {
		w.log.Warn("disk writer failed during abort", "error", err)
	}

	return w.file.Remove()
}
