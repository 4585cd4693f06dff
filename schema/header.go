package schema

import (
	"errors"
	"fmt"

	"github.com/dot5enko/geomcache/bits"
)

// FileSignature is "GEOCACHE" read as a little-endian u64.
const FileSignature uint64 = 0x4548434143454f47

const CurrentVersion uint16 = 1

// header layout
// *--------------------------------*
// | signature               u64    |
// | version  u16 | flags    u16    |
// | compression format      u32    |
// | frame count             u32    |
// | uncompressed anim bytes u64    |
// | aabb min / max        6 x f32  |
// *--------------------------------*
const FileHeaderSize = 8 + 2 + 2 + 4 + 4 + 8 + AABBSize

var (
	ErrInvalidSignature = errors.New("invalid file signature")
	ErrUnknownVersion   = errors.New("unsupported file version")
)

type FileHeader struct {
	Signature uint64
	Version   uint16
	Flags     FileFlags

	BlockCompression CompressionFormat

	NumFrames                      uint32
	TotalUncompressedAnimationSize uint64

	AnimationAABB AABB
}

func (h *FileHeader) WriteTo(bw *bits.BitWriter) (int, error) {
	start := bw.Position()

	bw.PutUint64(h.Signature)
	bw.PutUint16(h.Version)
	bw.PutUint16(uint16(h.Flags))
	bw.PutUint32(uint32(h.BlockCompression))
	bw.PutUint32(h.NumFrames)
	bw.PutUint64(h.TotalUncompressedAnimationSize)
	h.AnimationAABB.WriteTo(bw)

	written := bw.Position() - start
	if written != FileHeaderSize {
		return written, fmt.Errorf("file header size mismatch: %d != %d", written, FileHeaderSize)
	}

	return written, nil
}

// FromBytes decodes a header. A zero signature is reported as
// ErrInvalidSignature, this is what an unfinished export looks like.
func (h *FileHeader) FromBytes(reader *bits.BitsReader) (topErr error) {

	h.Signature, topErr = reader.ReadU64()
	if topErr != nil {
		return fmt.Errorf("unable to decode header signature: %w", topErr)
	}

	h.Version = reader.MustReadU16()
	h.Flags = FileFlags(reader.MustReadU16())
	h.BlockCompression = CompressionFormat(reader.MustReadU32())
	h.NumFrames = reader.MustReadU32()
	h.TotalUncompressedAnimationSize = reader.MustReadU64()

	if topErr = h.AnimationAABB.FromBytes(reader); topErr != nil {
		return fmt.Errorf("unable to decode header aabb: %w", topErr)
	}

	if h.Signature != FileSignature {
		return ErrInvalidSignature
	}

	if h.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, h.Version)
	}

	return nil
}
