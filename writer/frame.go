package writer

import (
	"encoding/binary"
	"fmt"

	"github.com/dot5enko/geomcache/bits"
	"github.com/dot5enko/geomcache/diskwriter"
	"github.com/dot5enko/geomcache/schema"
	"github.com/dustin/go-humanize"
)

// WriteFrame writes the next declared frame as one compressed block.
//
// frame layout
// *-------------------------------------*
// | frame header (padded to 16)         |
// | mesh 0 animated data                |
// | ...                                 |
// | animated node transforms            |
// | zero padding to 16                  |
// *-------------------------------------*
func (w *Writer) WriteFrame(frame *FrameData) error {
	if err := w.expect(stateStatic, "write frame"); err != nil {
		return err
	}

	if w.nextFrame >= len(w.frames) {
		return w.fail(fmt.Errorf("%w: %d declared", ErrTooManyFrames, len(w.frames)))
	}

	if len(frame.MeshData) != len(w.meshes) {
		return w.fail(fmt.Errorf("%w: frame %d has data for %d meshes, scene has %d", ErrStreamMismatch, w.nextFrame, len(frame.MeshData), len(w.meshes)))
	}
	if len(frame.NodeTransforms) != w.animatedNodes {
		return w.fail(fmt.Errorf("%w: frame %d has %d node transforms, scene has %d animated nodes", ErrStreamMismatch, w.nextFrame, len(frame.NodeTransforms), w.animatedNodes))
	}

	payload := w.encodeFrame(frame)

	index := w.nextFrame

	w.blocks.PushData(payload)
	w.blocks.PushAligned(schema.FrameAlignment)
	rawSize := w.blocks.Pending()

	if err := w.writeBlock(true, &w.frameFutures[index], 0, diskwriter.OriginCurrent); err != nil {
		return err
	}

	w.nextFrame++
	w.uncompressedAnimationBytes += uint64(rawSize)
	w.animationAABB.Morph(frame.AABB)
	w.metrics.RecordFrame()

	w.logProgress()

	return nil
}

func (w *Writer) encodeFrame(frame *FrameData) []byte {
	headerSize := schema.FrameHeaderSize(len(w.meshes))

	size := headerSize + w.animatedNodes*schema.TransformSize
	for _, data := range frame.MeshData {
		size += len(data)
	}

	bw := bits.NewGrowingBuffer(size)
	bw.EmptyBytes(headerSize)

	header := schema.FrameHeader{MeshOffsets: make([]uint32, len(w.meshes))}

	for i, data := range frame.MeshData {
		header.MeshOffsets[i] = uint32(bw.Position())
		_, _ = bw.Write(data)
	}

	header.NodeDataOffset = uint32(bw.Position())
	for i := range frame.NodeTransforms {
		frame.NodeTransforms[i].WriteTo(&bw)
	}

	payload := bw.Detach()

	hbw := bits.NewEncodeBuffer(payload[:headerSize], binary.LittleEndian)
	header.WriteTo(&hbw)

	return payload
}

func (w *Writer) logProgress() {
	total := len(w.frames)
	decile := w.nextFrame * 10 / total

	if decile <= w.lastDecile {
		return
	}
	w.lastDecile = decile

	w.log.Info("export progress",
		"percent", decile*10,
		"frames", fmt.Sprintf("%d/%d", w.nextFrame, total),
		"uncompressed", humanize.Bytes(w.uncompressedAnimationBytes),
	)
}
