package io

import (
	"fmt"
	goio "io"

	"github.com/dot5enko/geomcache/schema"
	"github.com/dustin/go-humanize"
)

// DumpIndex prints the header and frame table in a human readable form.
func DumpIndex(w goio.Writer, idx *CacheIndex, static *StaticData) error {
	h := idx.Header

	lines := []string{
		fmt.Sprintf("signature   : %#016x", h.Signature),
		fmt.Sprintf("version     : %d", h.Version),
		fmt.Sprintf("compression : %s", h.BlockCompression),
		fmt.Sprintf("from memory : %v", h.Flags.Has(schema.FlagPlaybackFromMemory)),
		fmt.Sprintf("32bit index : %v", h.Flags.Has(schema.Flag32BitIndices)),
		fmt.Sprintf("frames      : %d", h.NumFrames),
		fmt.Sprintf("anim bytes  : %s uncompressed", humanize.Bytes(h.TotalUncompressedAnimationSize)),
		fmt.Sprintf("anim aabb   : %v - %v", h.AnimationAABB.Min, h.AnimationAABB.Max),
	}

	if static != nil {
		lines = append(lines,
			fmt.Sprintf("static      : %d meshes, %d nodes, %s", len(static.Meshes), len(static.Nodes), humanize.Bytes(uint64(static.Size))),
		)
		for i, m := range static.Meshes {
			lines = append(lines, fmt.Sprintf("  mesh %-3d %-24s verts=%-6d materials=%d hash=%016x", i, m.Name, m.NumVertices, m.NumMaterials, m.Hash))
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	for i, f := range idx.Frames {
		_, err := fmt.Fprintf(w, "  frame %-5d %s t=%-8.3f offset=%-10d size=%d\n", i, f.Type, f.Time, f.Offset, f.Size)
		if err != nil {
			return err
		}
	}

	return nil
}
