package bits

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BitWriter serializes fixed-width records into a byte buffer.
// With growing enabled the buffer is reallocated on demand, otherwise
// writing past the end panics.
type BitWriter struct {
	pos   int
	data  []byte
	size  int
	order binary.ByteOrder

	growingEnabled bool
}

func NewEncodeBuffer(buf []byte, order binary.ByteOrder) BitWriter {

	result := BitWriter{}

	result.data = buf
	result.pos = 0
	result.size = len(buf)
	result.order = order

	return result
}

// NewGrowingBuffer returns a little-endian writer that grows from
// the given initial capacity.
func NewGrowingBuffer(capacity int) BitWriter {
	if capacity < 16 {
		capacity = 16
	}

	bw := NewEncodeBuffer(make([]byte, capacity), binary.LittleEndian)
	bw.EnableGrowing()

	return bw
}

func (w *BitWriter) EnableGrowing() {
	w.growingEnabled = true
}

func (w *BitWriter) Reset() {
	w.pos = 0
}

func (w BitWriter) Position() int {
	return w.pos
}

func (w *BitWriter) grow(atLeast int) {

	newSize := w.size * 2
	if w.pos+atLeast > newSize {
		newSize = w.pos + atLeast + w.size
	}

	newBuf := make([]byte, newSize)

	copy(newBuf, w.data[:w.pos])
	w.data = newBuf
	w.size = newSize
}

func (w *BitWriter) tryGrow(n int) {
	if (w.pos + n) > w.size {
		if w.growingEnabled {
			w.grow(n)
		} else {
			panic(fmt.Sprintf("bit writer growing is disabled on pos : %d, try grow %d, from size : %d", w.pos, n, w.size))
		}
	}
}

func (w *BitWriter) Write(p []byte) (n int, err error) {

	w.tryGrow(len(p))

	n = copy(w.data[w.pos:], p)
	w.pos += n

	return n, nil
}

// EmptyBytes writes i zero bytes.
func (w *BitWriter) EmptyBytes(i int) {
	w.tryGrow(i)
	clear(w.data[w.pos : w.pos+i])
	w.pos += i
}

// Bytes returns the written part of the buffer. The slice aliases the
// writer's storage until the next write.
func (w *BitWriter) Bytes() []byte {
	return w.data[:w.pos]
}

// Detach hands the written bytes over to the caller and leaves the
// writer empty with no storage.
func (w *BitWriter) Detach() []byte {
	out := w.data[:w.pos]

	w.data = nil
	w.size = 0
	w.pos = 0

	return out
}

func (w *BitWriter) WriteByte(u uint8) error {
	w.tryGrow(1)
	w.data[w.pos] = u
	w.pos++
	return nil
}

func (w *BitWriter) PutUint8(v uint8) {
	_ = w.WriteByte(v)
}

func (w *BitWriter) PutBool(v bool) {
	if v {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

func (w *BitWriter) PutUint16(v uint16) {
	w.tryGrow(2)
	w.order.PutUint16(w.data[w.pos:], v)
	w.pos += 2
}

func (w *BitWriter) PutInt16(v int16) {
	w.PutUint16(uint16(v))
}

func (w *BitWriter) PutUint32(v uint32) {
	w.tryGrow(4)
	w.order.PutUint32(w.data[w.pos:], v)
	w.pos += 4
}

func (w *BitWriter) PutUint64(v uint64) {
	w.tryGrow(8)
	w.order.PutUint64(w.data[w.pos:], v)
	w.pos += 8
}

func (w *BitWriter) PutFloat32(v float32) {
	w.PutUint32(math.Float32bits(v))
}

func (w *BitWriter) PutFloat32s(values ...float32) {
	for _, v := range values {
		w.PutFloat32(v)
	}
}

// PutString writes a u32 length prefix followed by the raw bytes.
func (w *BitWriter) PutString(s string) {
	w.PutUint32(uint32(len(s)))
	_, _ = w.Write([]byte(s))
}
