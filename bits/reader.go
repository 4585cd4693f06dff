package bits

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var (
	ErrEOF          = errors.New("end of file")
	ErrReadMismatch = errors.New("read size mismatch")
	ErrTooLong      = errors.New("length prefix exceeds limit")
)

const MaxBinReaderBufferSize = 256

// MaxStringSize bounds length-prefixed strings read back from disk.
const MaxStringSize = 64 * 1024

type BitsReader struct {
	readBuffer [MaxBinReaderBufferSize]byte

	buf   io.Reader
	order binary.ByteOrder
	read  int
}

func NewReader(buf io.Reader, order binary.ByteOrder) *BitsReader {
	return &BitsReader{buf: buf, order: order}
}

func NewBytesReader(data []byte) *BitsReader {
	return NewReader(bytes.NewReader(data), binary.LittleEndian)
}

// Consumed returns how many bytes were read so far.
func (r *BitsReader) Consumed() int {
	return r.read
}

func (r *BitsReader) readNextBytesIntoReadBuffer(size int) error {
	readBytes, err := io.ReadFull(r.buf, r.readBuffer[:size])
	r.read += readBytes

	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrReadMismatch
		}
		return err
	}

	return nil
}

func (r *BitsReader) ReadU8() (uint8, error) {
	err := r.readNextBytesIntoReadBuffer(1)

	if err != nil {
		return 0, err
	}

	return r.readBuffer[0], err
}

func (r *BitsReader) MustReadU8() uint8 {
	u, er := r.ReadU8()
	if er != nil {
		panic(er)
	}
	return u
}

func (r *BitsReader) ReadU16() (uint16, error) {

	err := r.readNextBytesIntoReadBuffer(2)

	if err != nil {
		return 0, err
	}

	return r.order.Uint16(r.readBuffer[:2]), nil
}

func (r *BitsReader) MustReadU16() uint16 {
	u, er := r.ReadU16()
	if er != nil {
		panic(er)
	}
	return u
}

func (r *BitsReader) ReadU32() (uint32, error) {
	readErr := r.readNextBytesIntoReadBuffer(4)
	if readErr != nil {
		return 0, readErr
	}
	return r.order.Uint32(r.readBuffer[:4]), nil
}

func (r *BitsReader) MustReadU32() uint32 {
	u, er := r.ReadU32()
	if er != nil {
		panic(er)
	}
	return u
}

func (r *BitsReader) ReadU64() (uint64, error) {

	readErr := r.readNextBytesIntoReadBuffer(8)
	if readErr != nil {
		return 0, readErr
	}

	return r.order.Uint64(r.readBuffer[:8]), nil
}

func (r *BitsReader) MustReadU64() uint64 {
	u, er := r.ReadU64()
	if er != nil {
		panic(er)
	}
	return u
}

func (r *BitsReader) ReadF32() (float32, error) {
	u, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

// ReadF32s fills out with consecutive float32 values.
func (r *BitsReader) ReadF32s(out []float32) error {
	for i := range out {
		v, err := r.ReadF32()
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

func (r *BitsReader) ReadBytes(n int, out []byte) error {

	readBytes, err := io.ReadFull(r.buf, out[:n])
	r.read += readBytes

	if readBytes != n {
		return ErrReadMismatch
	}

	return err
}

// ReadString reads a u32 length-prefixed string.
func (r *BitsReader) ReadString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	if n > MaxStringSize {
		return "", ErrTooLong
	}

	out := make([]byte, n)
	if err := r.ReadBytes(int(n), out); err != nil {
		return "", err
	}

	return string(out), nil
}

// Skip discards n bytes.
func (r *BitsReader) Skip(n int) error {
	skipped, err := io.CopyN(io.Discard, r.buf, int64(n))
	r.read += int(skipped)

	if skipped != int64(n) {
		return ErrReadMismatch
	}

	return err
}
