package io

import (
	"bytes"
	goio "io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dot5enko/geomcache/bits"
	"github.com/dot5enko/geomcache/compression"
	"github.com/dot5enko/geomcache/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriterSeekAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.cax")

	fw, err := CreateFileWriter(path)
	require.NoError(t, err)
	assert.Equal(t, path, fw.Path())

	_, err = fw.Write([]byte("....payload"))
	require.NoError(t, err)

	pos, err := fw.Seek(0, goio.SeekStart)
	require.NoError(t, err)
	assert.Zero(t, pos)

	_, err = fw.Write([]byte("head"))
	require.NoError(t, err)
	assert.Equal(t, int64(15), fw.BytesWritten())

	require.NoError(t, fw.Sync())
	require.NoError(t, fw.Close())
	require.NoError(t, fw.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "headpayload", string(content))

	_, err = fw.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrNotOpened)

	require.NoError(t, fw.Remove())
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileReaderBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3, 4}, 0o644))

	fr := NewFileReader(path)
	assert.ErrorIs(t, fr.ReadAt(make([]byte, 1), 0), ErrNotOpened)

	require.NoError(t, fr.Open())
	defer fr.Close()

	assert.Equal(t, int64(4), fr.Size())

	out := make([]byte, 2)
	require.NoError(t, fr.ReadAt(out, 2))
	assert.Equal(t, []byte{3, 4}, out)

	assert.ErrorIs(t, fr.ReadAt(out, 3), ErrReadMismatch)
}

// buildCache lays out a one mesh, one frame cache by hand.
func buildCache(t *testing.T, codec compression.Codec) (string, []byte) {
	t.Helper()

	var file bytes.Buffer

	block := func(raw []byte) []byte {
		out, err := compression.EncodeBlock(codec, raw)
		require.NoError(t, err)
		return out
	}

	meshTable := bits.NewGrowingBuffer(64)
	meshTable.PutUint32(1)
	mesh := schema.MeshInfo{
		ConstantStreams: schema.StreamPositions,
		NumVertices:     2,
		Hash:            42,
		Name:            "line",
	}
	mesh.WriteTo(&meshTable)

	streams := []byte{1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0}

	nodes := bits.NewGrowingBuffer(64)
	root := schema.NodeInfo{Type: schema.NodeTransform, MeshIndex: schema.NoMesh, NumChildren: 1, Name: "root", InitialTransform: schema.IdentityTransform()}
	root.WriteTo(&nodes)
	child := schema.NodeInfo{Type: schema.NodePhysicsGeometry, MeshIndex: 0, Name: "shape", InitialTransform: schema.IdentityTransform(), PhysicsGeometry: []byte{9, 9, 9}}
	child.WriteTo(&nodes)

	frame := bits.NewGrowingBuffer(64)
	header := schema.FrameHeader{NodeDataOffset: 16, MeshOffsets: []uint32{16}}
	header.WriteTo(&frame)
	frame.EmptyBytes(16)
	framePayload := frame.Detach()

	staticSection := append(append(block(meshTable.Detach()), block(streams)...), block(nodes.Detach())...)
	frameBlock := block(framePayload)

	staticOffset := schema.FileHeaderSize + schema.FrameInfoSize
	frameOffset := staticOffset + len(staticSection)

	fh := schema.FileHeader{
		Signature:                      schema.FileSignature,
		Version:                        schema.CurrentVersion,
		BlockCompression:               codec.Format(),
		NumFrames:                      1,
		TotalUncompressedAnimationSize: uint64(len(framePayload)),
	}
	hbw := bits.NewGrowingBuffer(schema.FileHeaderSize)
	_, err := fh.WriteTo(&hbw)
	require.NoError(t, err)

	file.Write(hbw.Detach())
	file.Write(schema.EncodeFrameTable([]schema.FrameInfo{{Type: schema.IFrame, Offset: uint64(frameOffset), Size: uint32(len(frameBlock)), Time: 0.5}}, 1))
	file.Write(staticSection)
	file.Write(frameBlock)

	path := filepath.Join(t.TempDir(), "cache.cax")
	require.NoError(t, os.WriteFile(path, file.Bytes(), 0o644))

	return path, framePayload
}

func TestReadCache(t *testing.T) {
	codec, err := compression.New(schema.CompressionZstd)
	require.NoError(t, err)

	path, framePayload := buildCache(t, codec)

	fr := NewFileReader(path)
	require.NoError(t, fr.Open())
	defer fr.Close()

	idx, err := ReadIndex(fr)
	require.NoError(t, err)
	require.Len(t, idx.Frames, 1)
	assert.Equal(t, int64(schema.FileHeaderSize+schema.FrameInfoSize), idx.StaticOffset)

	static, err := ReadStatic(fr, codec, idx)
	require.NoError(t, err)
	require.Len(t, static.Meshes, 1)
	assert.Equal(t, "line", static.Meshes[0].Name)
	assert.Len(t, static.MeshStreams[0], 12)
	require.Len(t, static.Nodes, 2)
	assert.Equal(t, []byte{9, 9, 9}, static.Nodes[1].PhysicsGeometry)
	assert.Equal(t, int64(idx.Frames[0].Offset)-idx.StaticOffset, static.Size)

	header, raw, err := ReadFrame(fr, codec, idx.Frames[0])
	require.NoError(t, err)
	assert.Equal(t, framePayload, raw)
	assert.Equal(t, uint32(16), header.NodeDataOffset)

	var out bytes.Buffer
	require.NoError(t, DumpIndex(&out, idx, static))
	assert.Contains(t, out.String(), "compression : zstd")
	assert.Contains(t, out.String(), "line")
	assert.Contains(t, out.String(), "offset=")
}

func TestReadIndexRejectsPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.cax")

	placeholder := schema.FileHeader{Version: schema.CurrentVersion}
	hbw := bits.NewGrowingBuffer(schema.FileHeaderSize)
	_, err := placeholder.WriteTo(&hbw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, hbw.Detach(), 0o644))

	fr := NewFileReader(path)
	require.NoError(t, fr.Open())
	defer fr.Close()

	_, err = ReadIndex(fr)
	assert.ErrorIs(t, err, schema.ErrInvalidSignature)
}

func TestReadFrameSizeMismatch(t *testing.T) {
	codec := compression.Identity{}
	path, _ := buildCache(t, codec)

	fr := NewFileReader(path)
	require.NoError(t, fr.Open())
	defer fr.Close()

	idx, err := ReadIndex(fr)
	require.NoError(t, err)

	info := idx.Frames[0]
	info.Size -= 4
	_, _, err = ReadFrame(fr, codec, info)
	assert.Error(t, err)
}

func TestCorruptSizesAreBoundedByFile(t *testing.T) {
	dir := t.TempDir()

	open := func(name string, content []byte) *FileReader {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, content, 0o644))

		fr := NewFileReader(path)
		require.NoError(t, fr.Open())
		t.Cleanup(func() { fr.Close() })
		return fr
	}

	// a valid header declaring a billion frames
	fh := schema.FileHeader{Signature: schema.FileSignature, Version: schema.CurrentVersion, NumFrames: 1 << 30}
	hbw := bits.NewGrowingBuffer(schema.FileHeaderSize)
	_, err := fh.WriteTo(&hbw)
	require.NoError(t, err)

	_, err = ReadIndex(open("frames.cax", hbw.Detach()))
	assert.ErrorIs(t, err, ErrPastEnd)

	// a block header claiming 4 GiB of payload
	block := make([]byte, schema.CompressedBlockHeaderSize+4)
	schema.CompressedBlockHeader{UncompressedSize: 4, CompressedSize: 1<<32 - 1}.Put(block)

	_, _, err = ReadCompressedBlockAt(open("block.cax", block), compression.Identity{}, 0)
	assert.ErrorIs(t, err, ErrPastEnd)

	_, _, err = ReadFrame(open("frame.cax", block), compression.Identity{}, schema.FrameInfo{Offset: 4, Size: 1 << 20})
	assert.ErrorIs(t, err, ErrPastEnd)
}

func TestReadStaticRejectsTrailingBytes(t *testing.T) {
	table := bits.NewGrowingBuffer(8)
	table.PutUint32(0)
	_, _ = table.Write([]byte{0xDE, 0xAD})

	block, err := compression.EncodeBlock(compression.Identity{}, table.Detach())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "static.cax")
	require.NoError(t, os.WriteFile(path, block, 0o644))

	fr := NewFileReader(path)
	require.NoError(t, fr.Open())
	defer fr.Close()

	_, err = ReadStatic(fr, compression.Identity{}, &CacheIndex{})
	assert.ErrorIs(t, err, ErrTrailingData)
}
