package io

import (
	"errors"
	"fmt"

	"github.com/dot5enko/geomcache/bits"
	"github.com/dot5enko/geomcache/compression"
	"github.com/dot5enko/geomcache/schema"
)

// guards against garbage child counts in corrupted files
const maxNodes = 1 << 20

var (
	ErrPastEnd      = errors.New("record extends past end of file")
	ErrTrailingData = errors.New("trailing bytes after records")
)

// CacheIndex is the header and frame table of a finished cache file.
type CacheIndex struct {
	Header schema.FileHeader
	Frames []schema.FrameInfo

	// first byte after the frame table
	StaticOffset int64
}

// StaticData is the decoded static section.
type StaticData struct {
	Meshes      []schema.MeshInfo
	MeshStreams [][]byte
	Nodes       []schema.NodeInfo

	// compressed bytes on disk
	Size int64
}

func ReadIndex(fr *FileReader) (*CacheIndex, error) {

	headerBytes := make([]byte, schema.FileHeaderSize)
	if err := fr.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("unable to read file header: %w", err)
	}

	idx := &CacheIndex{}
	if err := idx.Header.FromBytes(bits.NewBytesReader(headerBytes)); err != nil {
		return nil, err
	}

	tableSize := int64(idx.Header.NumFrames) * schema.FrameInfoSize
	if schema.FileHeaderSize+tableSize > fr.Size() {
		return nil, fmt.Errorf("%w: frame table of %d frames, file is %d bytes", ErrPastEnd, idx.Header.NumFrames, fr.Size())
	}

	table := make([]byte, tableSize)
	if err := fr.ReadAt(table, schema.FileHeaderSize); err != nil {
		return nil, fmt.Errorf("unable to read frame table: %w", err)
	}

	reader := bits.NewBytesReader(table)
	idx.Frames = make([]schema.FrameInfo, idx.Header.NumFrames)
	for i := range idx.Frames {
		if err := idx.Frames[i].FromBytes(reader); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	idx.StaticOffset = schema.FileHeaderSize + tableSize

	return idx, nil
}

// ReadCompressedBlockAt decodes the length-prefixed block starting at off
// and returns its raw bytes and its size on disk.
func ReadCompressedBlockAt(fr *FileReader, codec compression.Codec, off int64) ([]byte, int, error) {
	var header schema.CompressedBlockHeader

	headerBytes := make([]byte, schema.CompressedBlockHeaderSize)
	if err := fr.ReadAt(headerBytes, off); err != nil {
		return nil, 0, err
	}
	if err := header.FromBytes(headerBytes); err != nil {
		return nil, 0, err
	}

	size := int64(schema.CompressedBlockHeaderSize) + int64(header.CompressedSize)
	if off+size > fr.Size() {
		return nil, 0, fmt.Errorf("%w: block of %d bytes at %d", ErrPastEnd, size, off)
	}

	block := make([]byte, size)
	if err := fr.ReadAt(block, off); err != nil {
		return nil, 0, err
	}

	return compression.DecodeBlock(codec, block)
}

func ReadStatic(fr *FileReader, codec compression.Codec, idx *CacheIndex) (*StaticData, error) {
	off := idx.StaticOffset

	meshTable, n, err := ReadCompressedBlockAt(fr, codec, off)
	if err != nil {
		return nil, fmt.Errorf("unable to read mesh table: %w", err)
	}
	off += int64(n)

	reader := bits.NewBytesReader(meshTable)
	meshCount, err := reader.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("unable to decode mesh count: %w", err)
	}

	// every mesh record takes more than one byte
	if int64(meshCount) > int64(len(meshTable)) {
		return nil, fmt.Errorf("%w: %d meshes in a %d byte table", ErrPastEnd, meshCount, len(meshTable))
	}

	static := &StaticData{
		Meshes:      make([]schema.MeshInfo, meshCount),
		MeshStreams: make([][]byte, meshCount),
	}

	for i := range static.Meshes {
		if err := static.Meshes[i].FromBytes(reader); err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
	}
	if reader.Consumed() != len(meshTable) {
		return nil, fmt.Errorf("%w: mesh table decoded %d of %d bytes", ErrTrailingData, reader.Consumed(), len(meshTable))
	}

	for i := range static.MeshStreams {
		streams, n, err := ReadCompressedBlockAt(fr, codec, off)
		if err != nil {
			return nil, fmt.Errorf("unable to read streams of mesh %d: %w", i, err)
		}
		static.MeshStreams[i] = streams
		off += int64(n)
	}

	nodes, n, err := ReadCompressedBlockAt(fr, codec, off)
	if err != nil {
		return nil, fmt.Errorf("unable to read node hierarchy: %w", err)
	}
	off += int64(n)

	reader = bits.NewBytesReader(nodes)
	if err := readNodes(reader, &static.Nodes); err != nil {
		return nil, err
	}
	if reader.Consumed() != len(nodes) {
		return nil, fmt.Errorf("%w: node hierarchy decoded %d of %d bytes", ErrTrailingData, reader.Consumed(), len(nodes))
	}

	static.Size = off - idx.StaticOffset

	return static, nil
}

func readNodes(reader *bits.BitsReader, out *[]schema.NodeInfo) error {
	if len(*out) >= maxNodes {
		return fmt.Errorf("node hierarchy exceeds %d nodes", maxNodes)
	}

	var node schema.NodeInfo
	if err := node.FromBytes(reader); err != nil {
		return fmt.Errorf("node %d: %w", len(*out), err)
	}
	*out = append(*out, node)

	for i := uint32(0); i < node.NumChildren; i++ {
		if err := readNodes(reader, out); err != nil {
			return err
		}
	}

	return nil
}

// ReadFrame decodes one frame and splits off its header.
func ReadFrame(fr *FileReader, codec compression.Codec, info schema.FrameInfo) (schema.FrameHeader, []byte, error) {
	var header schema.FrameHeader

	if int64(info.Offset)+int64(info.Size) > fr.Size() {
		return header, nil, fmt.Errorf("%w: frame of %d bytes at %d", ErrPastEnd, info.Size, info.Offset)
	}

	block := make([]byte, info.Size)
	if err := fr.ReadAt(block, int64(info.Offset)); err != nil {
		return header, nil, err
	}

	raw, consumed, err := compression.DecodeBlock(codec, block)
	if err != nil {
		return header, nil, err
	}
	if consumed != len(block) {
		return header, nil, fmt.Errorf("frame at %d: block is %d bytes, table says %d", info.Offset, consumed, info.Size)
	}

	if err := header.FromBytes(bits.NewBytesReader(raw)); err != nil {
		return header, nil, err
	}

	return header, raw, nil
}
