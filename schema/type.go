package schema

// FileFlags is the bitfield stored in the file header.
type FileFlags uint16

const (
	FlagPlaybackFromMemory FileFlags = 1 << iota
	Flag32BitIndices
)

func (f FileFlags) Has(flag FileFlags) bool {
	return f&flag != 0
}

// CompressionFormat identifies how compressed blocks were encoded.
type CompressionFormat uint32

const (
	CompressionNone CompressionFormat = iota
	CompressionDeflate
	CompressionLZ4HC
	CompressionZstd
)

func (f CompressionFormat) String() string {
	switch f {
	case CompressionNone:
		return "none"
	case CompressionDeflate:
		return "deflate"
	case CompressionLZ4HC:
		return "lz4hc"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

type FrameType uint8

const (
	IFrame FrameType = iota
	BFrame
)

func (f FrameType) String() string {
	switch f {
	case IFrame:
		return "I"
	case BFrame:
		return "B"
	default:
		return "?"
	}
}

type NodeType uint8

const (
	NodeTransform NodeType = iota
	NodeMesh
	NodePhysicsGeometry
)

func (n NodeType) String() string {
	switch n {
	case NodeTransform:
		return "transform"
	case NodeMesh:
		return "mesh"
	case NodePhysicsGeometry:
		return "physics"
	default:
		return ""
	}
}

type TransformType uint8

const (
	TransformConstant TransformType = iota
	TransformAnimated
)

// Streams is the per-mesh stream presence mask.
type Streams uint8

const (
	StreamIndices Streams = 1 << iota
	StreamPositions
	StreamTexcoords
	StreamQTangents
	StreamColors
)

func (s Streams) Has(stream Streams) bool {
	return s&stream != 0
}

// MeshFlags are per-mesh options.
type MeshFlags uint8

const (
	MeshUsePredictor MeshFlags = 1 << iota
)

// Per-vertex element sizes of the static streams.
const (
	PositionElementSize = 3 * 2
	TexcoordElementSize = 2 * 2
	QTangentElementSize = 4 * 2
	ColorElementSize    = 4
)
