package schema

import (
	"github.com/chewxy/math32"
	"github.com/dot5enko/geomcache/bits"
)

const AABBSize = 6 * 4

type Vec3 [3]float32

// AABB is an axis aligned bounding box. The zero value is not empty,
// use EmptyAABB for an accumulator.
type AABB struct {
	Min Vec3
	Max Vec3
}

func EmptyAABB() AABB {
	inf := math32.Inf(1)
	return AABB{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Morph grows b to include other and reports whether anything changed.
func (b *AABB) Morph(other AABB) bool {

	if other.IsEmpty() {
		return false
	}

	changes := 0

	for i := 0; i < 3; i++ {
		if other.Min[i] < b.Min[i] {
			b.Min[i] = other.Min[i]
			changes += 1
		}
		if other.Max[i] > b.Max[i] {
			b.Max[i] = other.Max[i]
			changes += 1
		}
	}

	return changes != 0
}

func (b *AABB) AddPoint(p Vec3) {
	for i := 0; i < 3; i++ {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
}

// Sanitized returns a zero box for an empty accumulator so that
// infinities never reach the file.
func (b AABB) Sanitized() AABB {
	if b.IsEmpty() {
		return AABB{}
	}
	return b
}

func (b *AABB) FromBytes(reader *bits.BitsReader) error {
	if err := reader.ReadF32s(b.Min[:]); err != nil {
		return err
	}
	return reader.ReadF32s(b.Max[:])
}

func (b AABB) WriteTo(bw *bits.BitWriter) {
	bw.PutFloat32s(b.Min[:]...)
	bw.PutFloat32s(b.Max[:]...)
}
