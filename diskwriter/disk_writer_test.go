package diskwriter

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gcio "github.com/dot5enko/geomcache/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFile is an in-memory File with seek support.
type memFile struct {
	lock sync.Mutex
	data []byte
	pos  int64

	// when set, every Write waits for it to be closed
	gate chan struct{}
	// writes entered so far
	entered chan struct{}
	// truncates every write by this many bytes
	short int
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	default:
		return 0, errors.New("unsupported whence")
	}
	return f.pos, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	n := len(p) - f.short
	end := f.pos + int64(n)
	if end > int64(len(f.data)) {
		f.data = append(f.data, make([]byte, end-int64(len(f.data)))...)
	}
	copy(f.data[f.pos:end], p[:n])
	f.pos = end

	return n, nil
}

func (f *memFile) Bytes() []byte {
	f.lock.Lock()
	defer f.lock.Unlock()

	return append([]byte(nil), f.data...)
}

func TestRingSizeBelowMinimum(t *testing.T) {
	_, err := New(&memFile{}, Options{RingSize: 3})
	assert.ErrorIs(t, err, ErrRingSize)
}

func TestPlaceholderHeaderIsOverwrittenInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.cax")

	file, err := gcio.CreateFileWriter(path)
	require.NoError(t, err)

	w, err := New(file, Options{})
	require.NoError(t, err)

	placeholder := make([]byte, 16)
	final := []byte("GEOCACHE-final!!")
	payload := bytes.Repeat([]byte{0xAB}, 100)

	var headerFuture, payloadFuture, finalFuture WriteFuture

	require.NoError(t, w.Write(placeholder, &headerFuture, 0, OriginCurrent))
	require.NoError(t, w.Write(payload, &payloadFuture, 0, OriginCurrent))
	require.NoError(t, w.Flush())

	require.NoError(t, w.Write(append([]byte(nil), final...), &finalFuture, 0, OriginStart))
	require.NoError(t, w.Flush())
	require.NoError(t, w.EndThread())
	require.NoError(t, file.Close())

	assert.Equal(t, uint64(0), headerFuture.Position())
	assert.Equal(t, uint32(16), headerFuture.Size())
	assert.Equal(t, uint64(16), payloadFuture.Position())
	assert.Equal(t, uint64(0), finalFuture.Position())
	assert.True(t, finalFuture.Done())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, content, 116)
	assert.Equal(t, final, content[:16])
	assert.Equal(t, payload, content[16:])

	assert.Equal(t, int64(132), w.BytesWritten())
	assert.Equal(t, int64(3), w.Writes())
}

func TestContractViolations(t *testing.T) {
	w, err := New(&memFile{}, Options{})
	require.NoError(t, err)

	assert.ErrorIs(t, w.Write(nil, nil, 0, OriginCurrent), ErrEmptyBuffer)

	defer func(limit uint64) { maxWriteSize = limit }(maxWriteSize)
	maxWriteSize = 4

	assert.ErrorIs(t, w.Write(make([]byte, 5), nil, 0, OriginCurrent), ErrTooLarge)
	require.NoError(t, w.Write(make([]byte, 4), nil, 0, OriginCurrent))
	require.NoError(t, w.Flush())

	require.NoError(t, w.EndThread())
	require.NoError(t, w.EndThread())

	assert.ErrorIs(t, w.Write([]byte{1}, nil, 0, OriginCurrent), ErrClosed)
}

func TestShortWriteIsFatal(t *testing.T) {
	file := &memFile{short: 1}
	w, err := New(file, Options{})
	require.NoError(t, err)

	var future WriteFuture
	require.NoError(t, w.Write([]byte{1, 2, 3, 4}, &future, 0, OriginCurrent))

	err = w.Flush()
	require.ErrorIs(t, err, ErrIO)
	assert.False(t, future.Done())

	assert.ErrorIs(t, w.Write([]byte{5}, nil, 0, OriginCurrent), ErrIO)
	assert.ErrorIs(t, w.EndThread(), ErrIO)
}

func TestWriteBlocksWhenRingIsFull(t *testing.T) {
	file := &memFile{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 64),
	}
	w, err := New(file, Options{RingSize: MinRingSize})
	require.NoError(t, err)

	futures := make([]WriteFuture, MinRingSize+2)

	// the first write is picked up by the disk goroutine and parks on the gate
	require.NoError(t, w.Write([]byte{0}, &futures[0], 0, OriginCurrent))
	<-file.entered

	for i := 1; i <= MinRingSize; i++ {
		require.NoError(t, w.Write([]byte{byte(i)}, &futures[i], 0, OriginCurrent))
	}

	blocked := make(chan error, 1)
	go func() {
		blocked <- w.Write([]byte{byte(MinRingSize + 1)}, &futures[MinRingSize+1], 0, OriginCurrent)
	}()

	select {
	case <-blocked:
		t.Fatal("write returned while the ring was full")
	case <-time.After(30 * time.Millisecond):
	}
	assert.Equal(t, MinRingSize+2, w.Outstanding())

	close(file.gate)

	select {
	case err := <-blocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write did not resume after the ring drained")
	}

	require.NoError(t, w.Flush())
	assert.Equal(t, 0, w.Outstanding())

	for i := range futures {
		assert.True(t, futures[i].Done())
		assert.Equal(t, uint64(i), futures[i].Position())
	}
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5}, file.Bytes())

	require.NoError(t, w.EndThread())
}

func TestFlushCoversEveryEarlierWrite(t *testing.T) {
	w, err := New(&memFile{}, Options{StallWarning: time.Second})
	require.NoError(t, err)

	futures := make([]WriteFuture, 200)
	for i := range futures {
		require.NoError(t, w.Write(bytes.Repeat([]byte{byte(i)}, i+1), &futures[i], 0, OriginCurrent))
	}

	require.NoError(t, w.Flush())

	var expected uint64
	for i := range futures {
		require.True(t, futures[i].Done(), "future %d not filled", i)
		assert.Equal(t, expected, futures[i].Position())
		assert.Equal(t, uint32(i+1), futures[i].Size())
		expected += uint64(i + 1)
	}

	require.NoError(t, w.EndThread())
}
