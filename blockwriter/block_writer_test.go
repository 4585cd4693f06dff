package blockwriter

import (
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dot5enko/geomcache/compression"
	"github.com/dot5enko/geomcache/diskwriter"
	gcio "github.com/dot5enko/geomcache/io"
	"github.com/dot5enko/geomcache/pool"
	"github.com/dot5enko/geomcache/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	lock   sync.Mutex
	blocks [][]byte
	fail   error
}

func (s *recordingSink) Write(buf []byte, _ *diskwriter.WriteFuture, _ int64, _ diskwriter.Origin) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.fail != nil {
		return s.fail
	}
	s.blocks = append(s.blocks, buf)
	return nil
}

func (s *recordingSink) Blocks() [][]byte {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([][]byte(nil), s.blocks...)
}

// delayedCompressor sleeps a random time before storing the block as is.
type delayedCompressor struct {
	calls atomic.Int64
}

func (c *delayedCompressor) Format() schema.CompressionFormat { return schema.CompressionNone }

func (c *delayedCompressor) Compress(src []byte) ([]byte, error) {
	c.calls.Add(1)
	time.Sleep(time.Duration(rand.IntN(2000)) * time.Microsecond)
	return compression.Identity{}.Compress(src)
}

type failingCompressor struct {
	failOn uint32
}

func (c failingCompressor) Format() schema.CompressionFormat { return schema.CompressionNone }

func (c failingCompressor) Compress(src []byte) ([]byte, error) {
	if binary.LittleEndian.Uint32(src) == c.failOn {
		return nil, errors.New("boom")
	}
	return compression.Identity{}.Compress(src)
}

// gatedPool runs nothing on its own, the test pulls jobs off the queue.
type gatedPool struct {
	threads int
	jobs    chan func()
}

func newGatedPool(threads int) *gatedPool {
	return &gatedPool{threads: threads, jobs: make(chan func(), 64)}
}

func (p *gatedPool) Submit(job func()) { p.jobs <- job }
func (p *gatedPool) NumThreads() int   { return p.threads }

func (p *gatedPool) runNext(t *testing.T) {
	t.Helper()

	select {
	case job := <-p.jobs:
		job()
	case <-time.After(time.Second):
		t.Fatal("no job was submitted")
	}
}

type inlineOnlyPool struct {
	t *testing.T
}

func (p inlineOnlyPool) Submit(func())   { p.t.Fatal("job submitted to a single worker pool") }
func (p inlineOnlyPool) NumThreads() int { return 1 }

func sequenceBlock(seq uint32, size int) []byte {
	block := make([]byte, max(size, 4))
	binary.LittleEndian.PutUint32(block, seq)
	return block
}

func blockSequence(t *testing.T, block []byte, compressed bool) uint32 {
	t.Helper()

	if compressed {
		raw, consumed, err := compression.DecodeBlock(compression.Identity{}, block)
		require.NoError(t, err)
		require.Equal(t, len(block), consumed)
		block = raw
	}
	return binary.LittleEndian.Uint32(block)
}

func TestBlocksReachSinkInOrder(t *testing.T) {
	workers := pool.New(4)
	defer workers.Close()

	sink := &recordingSink{}
	compressor := &delayedCompressor{}
	w := New(sink, workers, compressor, nil)
	defer w.Close()

	assert.Equal(t, 8, w.Slots())

	const blocks = 64
	compressed := make([]bool, blocks)

	for i := 0; i < blocks; i++ {
		compressed[i] = i%5 != 0

		w.PushData(sequenceBlock(uint32(i), 4+rand.IntN(256)))
		n, err := w.WriteBlock(compressed[i], nil, 0, diskwriter.OriginCurrent)
		require.NoError(t, err)
		assert.Positive(t, n)
	}

	require.NoError(t, w.Flush())
	assert.Equal(t, uint64(blocks), w.BlocksWritten())

	got := sink.Blocks()
	require.Len(t, got, blocks)
	for i, block := range got {
		assert.Equal(t, uint32(i), blockSequence(t, block, compressed[i]))
	}

	assert.Equal(t, int64(blocks-(blocks+4)/5), compressor.calls.Load())
}

func TestWriteBlockWaitsForFreeSlot(t *testing.T) {
	workers := newGatedPool(2)
	sink := &recordingSink{}

	w := New(sink, workers, compression.Identity{}, nil)
	defer w.Close()

	require.Equal(t, 4, w.Slots())

	for i := 0; i < 4; i++ {
		w.PushData(sequenceBlock(uint32(i), 8))
		_, err := w.WriteBlock(true, nil, 0, diskwriter.OriginCurrent)
		require.NoError(t, err)
	}

	blocked := make(chan error, 1)
	go func() {
		w.PushData(sequenceBlock(4, 8))
		_, err := w.WriteBlock(true, nil, 0, diskwriter.OriginCurrent)
		blocked <- err
	}()

	select {
	case <-blocked:
		t.Fatal("write block returned with every slot in flight")
	case <-time.After(30 * time.Millisecond):
	}

	// finishing block 0 frees its slot
	workers.runNext(t)

	select {
	case err := <-blocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write block did not resume after a slot was freed")
	}

	for i := 0; i < 4; i++ {
		workers.runNext(t)
	}

	require.NoError(t, w.Flush())

	got := sink.Blocks()
	require.Len(t, got, 5)
	for i, block := range got {
		assert.Equal(t, uint32(i), blockSequence(t, block, true))
	}
}

func TestOutOfOrderCompletionIsReordered(t *testing.T) {
	workers := newGatedPool(2)
	sink := &recordingSink{}

	w := New(sink, workers, compression.Identity{}, nil)
	defer w.Close()

	jobs := make([]func(), 3)
	for i := range jobs {
		w.PushData(sequenceBlock(uint32(i), 8))
		_, err := w.WriteBlock(true, nil, 0, diskwriter.OriginCurrent)
		require.NoError(t, err)
		jobs[i] = <-workers.jobs
	}

	jobs[2]()
	jobs[1]()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.Blocks())

	jobs[0]()
	require.NoError(t, w.Flush())

	got := sink.Blocks()
	require.Len(t, got, 3)
	for i, block := range got {
		assert.Equal(t, uint32(i), blockSequence(t, block, true))
	}
}

func TestEmptyBlockIsNoop(t *testing.T) {
	sink := &recordingSink{}
	w := New(sink, newGatedPool(2), compression.Identity{}, nil)
	defer w.Close()

	n, err := w.WriteBlock(true, nil, 0, diskwriter.OriginCurrent)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, uint64(0), w.nextBlockIndex)
	assert.Equal(t, w.Slots(), w.slots.Free())

	require.NoError(t, w.Flush())
	assert.Empty(t, sink.Blocks())
}

func TestSingleWorkerCompressesInline(t *testing.T) {
	sink := &recordingSink{}
	compressor := &delayedCompressor{}

	w := New(sink, inlineOnlyPool{t}, compressor, nil)
	defer w.Close()

	assert.Equal(t, 2, w.Slots())

	for i := 0; i < 10; i++ {
		w.PushData(sequenceBlock(uint32(i), 16))
		_, err := w.WriteBlock(true, nil, 0, diskwriter.OriginCurrent)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), compressor.calls.Load())
	}

	require.NoError(t, w.Flush())
	assert.Len(t, sink.Blocks(), 10)
}

func TestPushAlignedPadsCurrentBlock(t *testing.T) {
	w := New(&recordingSink{}, newGatedPool(2), compression.Identity{}, nil)
	defer w.Close()

	w.PushAligned(16)
	assert.Equal(t, 0, w.Pending())

	w.PushData([]byte{1, 2, 3, 4, 5})
	w.PushAligned(16)
	assert.Equal(t, 16, w.Pending())

	w.PushAligned(16)
	assert.Equal(t, 16, w.Pending())

	w.PushData([]byte{6})
	w.PushAligned(0)
	w.PushAligned(-4)
	w.PushAligned(1)
	assert.Equal(t, 17, w.Pending())
}

func TestCompressionFailureStopsWriter(t *testing.T) {
	workers := pool.New(2)
	defer workers.Close()

	sink := &recordingSink{}
	w := New(sink, workers, failingCompressor{failOn: 3}, nil)
	defer w.Close()

	for i := 0; i < 6; i++ {
		w.PushData(sequenceBlock(uint32(i), 8))
		if _, err := w.WriteBlock(true, nil, 0, diskwriter.OriginCurrent); err != nil {
			require.ErrorIs(t, err, ErrCompression)
			break
		}
	}

	err := w.Flush()
	require.ErrorIs(t, err, ErrCompression)
	assert.ErrorIs(t, w.Err(), ErrCompression)

	got := sink.Blocks()
	require.Len(t, got, 3)
	for i, block := range got {
		assert.Equal(t, uint32(i), blockSequence(t, block, true))
	}

	w.PushData(sequenceBlock(99, 8))
	_, err = w.WriteBlock(true, nil, 0, diskwriter.OriginCurrent)
	assert.ErrorIs(t, err, ErrCompression)
}

func TestSinkFailureIsSticky(t *testing.T) {
	sinkErr := errors.New("disk gone")
	sink := &recordingSink{fail: sinkErr}

	w := New(sink, newGatedPool(2), compression.Identity{}, nil)
	defer w.Close()

	w.PushData([]byte{1, 2, 3, 4})
	_, err := w.WriteBlock(false, nil, 0, diskwriter.OriginCurrent)
	require.NoError(t, err)

	require.ErrorIs(t, w.Flush(), sinkErr)

	w.PushData([]byte{5})
	_, err = w.WriteBlock(false, nil, 0, diskwriter.OriginCurrent)
	assert.ErrorIs(t, err, sinkErr)
}

func TestClosedWriterRejectsBlocks(t *testing.T) {
	w := New(&recordingSink{}, newGatedPool(2), compression.Identity{}, nil)
	w.Close()

	w.PushData([]byte{1})
	_, err := w.WriteBlock(false, nil, 0, diskwriter.OriginCurrent)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFlushFillsEveryFuture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.bin")
	file, err := gcio.CreateFileWriter(path)
	require.NoError(t, err)

	disk, err := diskwriter.New(file, diskwriter.Options{})
	require.NoError(t, err)

	workers := pool.New(3)
	defer workers.Close()

	w := New(disk, workers, &delayedCompressor{}, nil)

	futures := make([]diskwriter.WriteFuture, 40)
	var expected uint64
	for i := range futures {
		w.PushData(sequenceBlock(uint32(i), 32+i))
		n, err := w.WriteBlock(true, &futures[i], 0, diskwriter.OriginCurrent)
		require.NoError(t, err)
		assert.Equal(t, 32+i, n)
	}

	require.NoError(t, w.Flush())
	require.NoError(t, disk.Flush())

	for i := range futures {
		require.True(t, futures[i].Done(), "future %d not filled", i)
		assert.Equal(t, expected, futures[i].Position())
		assert.Equal(t, uint32(schema.CompressedBlockHeaderSize+32+i), futures[i].Size())
		expected += uint64(futures[i].Size())
	}

	w.Close()
	require.NoError(t, disk.EndThread())
	require.NoError(t, file.Close())
}
