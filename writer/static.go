package writer

import (
	"fmt"

	"github.com/dot5enko/geomcache/bits"
	"github.com/dot5enko/geomcache/diskwriter"
	"github.com/dot5enko/geomcache/schema"
	"github.com/dustin/go-humanize"
)

// WriteStaticData declares the frames and writes everything that does
// not change per frame. The header and frame table go out as
// placeholders and are rewritten by FinishWriting.
func (w *Writer) WriteStaticData(frames []FrameDesc, meshes []*Mesh, root *Node) error {
	if err := w.expect(stateCreated, "write static data"); err != nil {
		return err
	}

	if root == nil {
		return w.fail(fmt.Errorf("%w: scene has no root node", ErrInvalidState))
	}

	meshIndex := make(map[*Mesh]uint32, len(meshes))
	for i, m := range meshes {
		if err := m.check(); err != nil {
			return w.fail(err)
		}
		meshIndex[m] = uint32(i)

		if m.NumVertices() > max16BitVertices {
			w.flags |= schema.Flag32BitIndices
		}
	}
	if w.config.Force32BitIndices {
		w.flags |= schema.Flag32BitIndices
	}
	if w.config.PlaybackFromMemory {
		w.flags |= schema.FlagPlaybackFromMemory
	}

	nodes, err := w.encodeNodes(root, meshIndex)
	if err != nil {
		return w.fail(err)
	}

	w.frames = frames
	w.frameFutures = make([]diskwriter.WriteFuture, len(frames))
	w.meshes = meshes
	w.staticFutures = make([]diskwriter.WriteFuture, len(meshes)+2)

	// placeholder header, zero signature until the file is complete
	placeholder := schema.FileHeader{Version: schema.CurrentVersion, Flags: w.flags, BlockCompression: w.compressor.Format()}
	hbw := bits.NewGrowingBuffer(schema.FileHeaderSize)
	if _, err := placeholder.WriteTo(&hbw); err != nil {
		return w.fail(err)
	}

	w.blocks.PushData(hbw.Detach())
	if err := w.writeBlock(false, &w.headerFuture, 0, diskwriter.OriginCurrent); err != nil {
		return err
	}

	w.blocks.PushData(schema.EncodeFrameTable(nil, len(frames)))
	if err := w.writeBlock(false, &w.tableFuture, 0, diskwriter.OriginCurrent); err != nil {
		return err
	}

	// mesh table, then the streams of every mesh, then the hierarchy
	streams := make([][]byte, len(meshes))
	table := bits.NewGrowingBuffer(4 + 64*len(meshes))
	table.PutUint32(uint32(len(meshes)))

	for i, m := range meshes {
		sbw := bits.NewGrowingBuffer(m.NumVertices() * schema.PositionElementSize)
		m.encodeStreams(&sbw, w.flags.Has(schema.Flag32BitIndices))
		streams[i] = sbw.Detach()

		info := m.info(streams[i])
		info.WriteTo(&table)
	}

	w.blocks.PushData(table.Detach())
	if err := w.writeBlock(true, &w.staticFutures[0], 0, diskwriter.OriginCurrent); err != nil {
		return err
	}

	for i := range meshes {
		w.blocks.PushData(streams[i])
		if err := w.writeBlock(true, &w.staticFutures[i+1], 0, diskwriter.OriginCurrent); err != nil {
			return err
		}
	}

	w.blocks.PushData(nodes)
	if err := w.writeBlock(true, &w.staticFutures[len(meshes)+1], 0, diskwriter.OriginCurrent); err != nil {
		return err
	}

	w.state = stateStatic

	staticRaw := len(nodes)
	for _, s := range streams {
		staticRaw += len(s)
	}

	w.log.Info("static data queued",
		"frames", len(frames),
		"meshes", len(meshes),
		"animated_nodes", w.animatedNodes,
		"raw", humanize.Bytes(uint64(staticRaw)),
		"flags", uint16(w.flags),
	)

	return nil
}

// encodeNodes serializes the hierarchy depth first and counts the
// animated nodes every frame has to carry a transform for.
func (w *Writer) encodeNodes(root *Node, meshIndex map[*Mesh]uint32) ([]byte, error) {
	bw := bits.NewGrowingBuffer(256)
	w.animatedNodes = 0

	err := root.walk(func(n *Node) error {
		info := schema.NodeInfo{
			Type:             n.Type,
			TransformType:    n.TransformType,
			Visible:          n.Visible,
			MeshIndex:        schema.NoMesh,
			NumChildren:      uint32(len(n.Children)),
			Name:             n.Name,
			InitialTransform: n.Transform,
			PhysicsGeometry:  n.PhysicsGeometry,
		}

		if n.Mesh != nil {
			idx, ok := meshIndex[n.Mesh]
			if !ok {
				return fmt.Errorf("%w: node %q", ErrUnknownMesh, n.Name)
			}
			info.MeshIndex = idx
		}

		if n.TransformType == schema.TransformAnimated {
			w.animatedNodes++
		}

		info.WriteTo(&bw)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return bw.Detach(), nil
}
