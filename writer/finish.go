package writer

import (
	"fmt"

	"github.com/dot5enko/geomcache/bits"
	"github.com/dot5enko/geomcache/diskwriter"
	"github.com/dot5enko/geomcache/schema"
	"github.com/dustin/go-humanize"
)

// FinishWriting waits for every block to reach the file, rewrites the
// frame table and the header in place and closes the file. On failure
// the partial file is removed.
func (w *Writer) FinishWriting() (Stats, error) {
	stats, err := w.finish()
	if err != nil {
		if abortErr := w.Abort(); abortErr != nil {
			w.log.Warn("unable to remove partial file", "error", abortErr)
		}
		return Stats{}, err
	}
	return stats, nil
}

func (w *Writer) finish() (Stats, error) {
	if err := w.expect(stateStatic, "finish writing"); err != nil {
		return Stats{}, err
	}

	if w.nextFrame != len(w.frames) {
		return Stats{}, w.fail(fmt.Errorf("%w: %d of %d frames written", ErrFrameCountMismatch, w.nextFrame, len(w.frames)))
	}

	if err := w.flush(); err != nil {
		return Stats{}, err
	}

	infos := make([]schema.FrameInfo, len(w.frames))
	var stats Stats

	for i := range w.frameFutures {
		future := &w.frameFutures[i]
		if !future.Done() || future.Position() == 0 || future.Size() == 0 {
			return Stats{}, w.fail(fmt.Errorf("%w: frame %d at offset %d, size %d", ErrIntegrity, i, future.Position(), future.Size()))
		}

		infos[i] = schema.FrameInfo{
			Type:   w.frames[i].Type,
			Offset: future.Position(),
			Size:   future.Size(),
			Time:   w.frames[i].Time,
		}
		stats.AnimationBytes += uint64(future.Size())
	}

	for i := range w.staticFutures {
		stats.StaticBytes += uint64(w.staticFutures[i].Size())
	}

	stats.HeaderBytes = uint64(w.headerFuture.Size()) + uint64(w.tableFuture.Size())
	stats.UncompressedAnimationBytes = w.uncompressedAnimationBytes

	var tableFuture, headerFuture diskwriter.WriteFuture

	w.blocks.PushData(schema.EncodeFrameTable(infos, len(infos)))
	if err := w.writeBlock(false, &tableFuture, int64(w.tableFuture.Position()), diskwriter.OriginStart); err != nil {
		return Stats{}, err
	}

	header := schema.FileHeader{
		Signature:                      schema.FileSignature,
		Version:                        schema.CurrentVersion,
		Flags:                          w.flags,
		BlockCompression:               w.compressor.Format(),
		NumFrames:                      uint32(len(w.frames)),
		TotalUncompressedAnimationSize: w.uncompressedAnimationBytes,
		AnimationAABB:                  w.animationAABB.Sanitized(),
	}

	hbw := bits.NewGrowingBuffer(schema.FileHeaderSize)
	if _, err := header.WriteTo(&hbw); err != nil {
		return Stats{}, w.fail(err)
	}

	w.blocks.PushData(hbw.Detach())
	if err := w.writeBlock(false, &headerFuture, 0, diskwriter.OriginStart); err != nil {
		return Stats{}, err
	}

	if err := w.flush(); err != nil {
		return Stats{}, err
	}

	if headerFuture.Position() != 0 || headerFuture.Size() != w.headerFuture.Size() {
		return Stats{}, w.fail(fmt.Errorf("%w: header rewritten at %d, %d bytes", ErrIntegrity, headerFuture.Position(), headerFuture.Size()))
	}
	if tableFuture.Position() != w.tableFuture.Position() || tableFuture.Size() != w.tableFuture.Size() {
		return Stats{}, w.fail(fmt.Errorf("%w: frame table rewritten at %d, %d bytes", ErrIntegrity, tableFuture.Position(), tableFuture.Size()))
	}

	if err := w.teardown(); err != nil {
		return Stats{}, w.fail(err)
	}

	if err := w.file.Sync(); err != nil {
		return Stats{}, w.fail(fmt.Errorf("unable to sync %s: %w", w.config.Path, err))
	}
	if err := w.file.Close(); err != nil {
		return Stats{}, w.fail(fmt.Errorf("unable to close %s: %w", w.config.Path, err))
	}

	w.state = stateFinished

	w.log.Info("export finished",
		"frames", len(w.frames),
		"header", humanize.Bytes(stats.HeaderBytes),
		"static", humanize.Bytes(stats.StaticBytes),
		"animation", humanize.Bytes(stats.AnimationBytes),
		"uncompressed_animation", humanize.Bytes(stats.UncompressedAnimationBytes),
		"disk_writes", w.disk.Writes(),
	)

	return stats, nil
}
