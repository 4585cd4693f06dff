// Package blockwriter cuts a byte stream into blocks, compresses them on a
// worker pool and hands them to a disk sink in the order they were cut.
package blockwriter

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dot5enko/geomcache/compression"
	"github.com/dot5enko/geomcache/diskwriter"
	"github.com/dot5enko/geomcache/metrics"
	"github.com/dot5enko/geomcache/ringbuf"
	"golang.org/x/exp/slices"
)

var (
	ErrCompression = errors.New("block compression failed")
	ErrClosed      = errors.New("block writer closed")
)

// Sink receives finished blocks strictly in block order.
type Sink interface {
	Write(buf []byte, future *diskwriter.WriteFuture, offset int64, origin diskwriter.Origin) error
}

// Pool runs compression jobs.
type Pool interface {
	Submit(job func())
	NumThreads() int
}

type compressionJob struct {
	blockIndex uint64
	data       []byte
	rawSize    int
	compress   bool

	finished bool
	written  bool
	err      error

	future *diskwriter.WriteFuture
	offset int64
	origin diskwriter.Origin
}

// BlockWriter is fed by a single producer goroutine (PushData,
// WriteBlock). Compression runs on the pool, a control goroutine
// forwards finished blocks to the sink.
type BlockWriter struct {
	sink       Sink
	pool       Pool
	compressor compression.Compressor
	metrics    *metrics.Pipeline

	// producer only
	staging        []byte
	nextBlockIndex uint64

	slots *ringbuf.TypedRingBuffer[compressionJob]

	lock             sync.Mutex
	jobFinished      *sync.Cond
	nextBlockToWrite uint64
	jobsRunning      int
	err              error
	quit             bool

	// control goroutine only
	ready []uint16

	done chan struct{}
}

// New starts the control goroutine. The writer keeps 2 x pool width
// blocks in flight at most.
func New(sink Sink, pool Pool, compressor compression.Compressor, m *metrics.Pipeline) *BlockWriter {
	threads := max(pool.NumThreads(), 1)

	w := &BlockWriter{
		sink:       sink,
		pool:       pool,
		compressor: compressor,
		metrics:    m,
		slots:      ringbuf.NewTypedRingBuffer[compressionJob](threads * 2),
		done:       make(chan struct{}),
	}
	w.jobFinished = sync.NewCond(&w.lock)

	go w.run()

	return w
}

// PushData appends to the current block.
func (w *BlockWriter) PushData(data []byte) {
	w.staging = append(w.staging, data...)
}

// PushAligned zero pads the current block to a multiple of alignment.
// An alignment below 2 leaves the block as is.
func (w *BlockWriter) PushAligned(alignment int) {
	if alignment < 2 {
		return
	}
	if rem := len(w.staging) % alignment; rem != 0 {
		w.staging = append(w.staging, make([]byte, alignment-rem)...)
	}
}

// Pending is the size of the current block.
func (w *BlockWriter) Pending() int {
	return len(w.staging)
}

// Slots is the number of blocks that may be in flight.
func (w *BlockWriter) Slots() int {
	return w.slots.Cap()
}

// WriteBlock cuts the current block and returns its uncompressed size.
// An empty block is not an error, nothing is written and 0 is returned.
// It blocks while every slot is in flight.
func (w *BlockWriter) WriteBlock(compress bool, future *diskwriter.WriteFuture, offset int64, origin diskwriter.Origin) (int, error) {
	if len(w.staging) == 0 {
		return 0, nil
	}

	if err := w.state(); err != nil {
		return 0, err
	}

	job, id := w.slots.Get()
	blockSize := len(w.staging)

	w.lock.Lock()
	*job = compressionJob{
		blockIndex: w.nextBlockIndex,
		data:       w.staging,
		rawSize:    blockSize,
		compress:   compress,
		future:     future,
		offset:     offset,
		origin:     origin,
	}
	if !compress {
		job.finished = true
	}
	w.jobsRunning++
	running := w.jobsRunning
	w.jobFinished.Broadcast()
	w.lock.Unlock()

	w.metrics.SetJobsRunning(running)

	w.nextBlockIndex++
	w.staging = make([]byte, 0, blockSize)

	if compress {
		// with a single worker the job runs here, the only worker may be
		// the one waiting for a slot
		if w.pool.NumThreads() <= 1 {
			w.compressJob(id)
		} else {
			w.pool.Submit(func() { w.compressJob(id) })
		}
	}

	return blockSize, nil
}

func (w *BlockWriter) state() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.quit {
		return ErrClosed
	}
	return w.err
}

func (w *BlockWriter) compressJob(id uint16) {
	job := w.slots.At(id)

	out, err := compression.EncodeBlock(w.compressor, job.data)

	w.lock.Lock()
	if err != nil {
		job.err = fmt.Errorf("%w: block %d: %w", ErrCompression, job.blockIndex, err)
	} else {
		job.data = out
	}
	job.finished = true
	w.jobFinished.Broadcast()
	w.lock.Unlock()
}

func (w *BlockWriter) run() {
	defer close(w.done)

	w.lock.Lock()
	defer w.lock.Unlock()

	for {
		w.forwardReady()

		if w.quit && w.jobsRunning == 0 {
			return
		}

		w.jobFinished.Wait()
	}
}

// forwardReady hands every finished block that continues the written
// sequence to the sink. Called with lock held; the lock is released
// around sink writes.
func (w *BlockWriter) forwardReady() {
	for {
		w.ready = w.ready[:0]

		slots := w.slots.Slots()
		for i := range slots {
			if slots[i].finished && !slots[i].written {
				w.ready = append(w.ready, uint16(i))
			}
		}

		if len(w.ready) == 0 {
			return
		}

		slices.SortFunc(w.ready, func(a, b uint16) int {
			return cmp.Compare(slots[a].blockIndex, slots[b].blockIndex)
		})

		progressed := false

		for _, id := range w.ready {
			job := &slots[id]
			if job.blockIndex != w.nextBlockToWrite {
				break
			}

			data := job.data
			job.data = nil

			if w.err == nil && job.err != nil {
				w.err = job.err
				slog.Error("block compression failed", "block", job.blockIndex, "error", job.err)
			}

			if w.err == nil {
				w.lock.Unlock()
				err := w.sink.Write(data, job.future, job.offset, job.origin)
				w.lock.Lock()

				if err != nil {
					w.err = fmt.Errorf("unable to forward block %d: %w", job.blockIndex, err)
				} else {
					w.metrics.RecordBlock(job.compress, job.rawSize, len(data))
				}
			}

			job.written = true
			w.jobsRunning--
			w.nextBlockToWrite++
			w.slots.Return(id)
			w.jobFinished.Broadcast()

			w.metrics.SetJobsRunning(w.jobsRunning)

			progressed = true
		}

		if !progressed {
			return
		}
	}
}

// Flush blocks until every cut block reached the sink and returns the
// first error of the writer.
func (w *BlockWriter) Flush() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	for w.jobsRunning > 0 {
		w.jobFinished.Wait()
	}

	return w.err
}

// BlocksWritten is the number of blocks handed to the sink or dropped
// after a failure.
func (w *BlockWriter) BlocksWritten() uint64 {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.nextBlockToWrite
}

func (w *BlockWriter) Err() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.err
}

// Close stops the control goroutine once every cut block was handled.
// Flush first; blocks still compressing delay Close.
func (w *BlockWriter) Close() {
	w.lock.Lock()
	w.quit = true
	w.jobFinished.Broadcast()
	w.lock.Unlock()

	<-w.done
}
