// Package diskwriter drains a bounded ring of buffers into one file on a
// dedicated goroutine.
package diskwriter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dot5enko/geomcache/metrics"
)

const (
	DefaultRingSize = 8
	MinRingSize     = 4
)

var (
	ErrIO          = errors.New("disk write failed")
	ErrEmptyBuffer = errors.New("empty buffer")
	ErrClosed      = errors.New("disk writer closed")
	ErrRingSize    = errors.New("ring size too small")
	ErrTooLarge    = errors.New("buffer too large")
)

// a WriteFuture records sizes as u32
var maxWriteSize uint64 = math.MaxUint32

// Origin selects what a write offset is relative to.
type Origin uint8

const (
	OriginCurrent Origin = iota
	OriginStart
)

func (o Origin) whence() int {
	if o == OriginStart {
		return io.SeekStart
	}
	return io.SeekCurrent
}

func (o Origin) String() string {
	if o == OriginStart {
		return "start"
	}
	return "current"
}

// File is the handle the disk goroutine writes through.
type File interface {
	Seek(offset int64, whence int) (int64, error)
	Write(p []byte) (int, error)
}

type Options struct {
	// RingSize is the number of buffers that may be queued, DefaultRingSize if zero.
	RingSize int

	// StallWarning logs when a Flush has been waiting longer than this.
	// It never changes behavior. Zero disables it.
	StallWarning time.Duration

	Metrics *metrics.Pipeline
}

type pendingBuffer struct {
	data   []byte
	future *WriteFuture
	offset int64
	origin Origin
}

// DiskWriter is the only writer of its file. Producers block in Write
// once RingSize buffers are queued.
type DiskWriter struct {
	file    File
	ring    chan pendingBuffer
	options Options

	// held for reading while a producer sends, for writing by EndThread
	sendLock sync.RWMutex
	closed   bool

	lock        sync.Mutex
	written     *sync.Cond
	outstanding int
	err         error

	bytesWritten int64
	writes       int64

	done chan struct{}
}

func New(file File, options Options) (*DiskWriter, error) {
	if options.RingSize == 0 {
		options.RingSize = DefaultRingSize
	}
	if options.RingSize < MinRingSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrRingSize, options.RingSize, MinRingSize)
	}

	w := &DiskWriter{
		file:    file,
		ring:    make(chan pendingBuffer, options.RingSize),
		options: options,
		done:    make(chan struct{}),
	}
	w.written = sync.NewCond(&w.lock)

	go w.run()

	return w, nil
}

// Write queues buf for writing at offset relative to origin. Ownership of
// buf moves to the writer, the caller must not touch it afterwards.
// future, if not nil, is filled once the write hits the file.
//
// Write must not be called concurrently with or after EndThread.
func (w *DiskWriter) Write(buf []byte, future *WriteFuture, offset int64, origin Origin) error {
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}
	if uint64(len(buf)) > maxWriteSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(buf))
	}

	w.sendLock.RLock()
	defer w.sendLock.RUnlock()

	if w.closed {
		return ErrClosed
	}

	w.lock.Lock()
	if w.err != nil {
		err := w.err
		w.lock.Unlock()
		return err
	}
	w.outstanding++
	depth := w.outstanding
	w.lock.Unlock()

	w.options.Metrics.SetDiskQueueDepth(depth)

	w.ring <- pendingBuffer{
		data:   buf,
		future: future,
		offset: offset,
		origin: origin,
	}

	return nil
}

func (w *DiskWriter) run() {
	defer close(w.done)

	for pending := range w.ring {

		w.lock.Lock()
		failed := w.err != nil
		w.lock.Unlock()

		var err error
		if !failed {
			err = w.writePending(pending)
		}

		w.lock.Lock()
		if err != nil {
			w.err = err
			slog.Error("disk write failed", "offset", pending.offset, "origin", pending.origin.String(), "size", len(pending.data), "error", err)
		} else if !failed {
			w.bytesWritten += int64(len(pending.data))
			w.writes++
		}
		w.outstanding--
		depth := w.outstanding
		w.written.Broadcast()
		w.lock.Unlock()

		if err == nil && !failed {
			w.options.Metrics.RecordDiskWrite(len(pending.data))
		}
		w.options.Metrics.SetDiskQueueDepth(depth)
	}
}

func (w *DiskWriter) writePending(pending pendingBuffer) error {

	position, err := w.file.Seek(pending.offset, pending.origin.whence())
	if err != nil {
		return fmt.Errorf("%w: unable to seek to %d from %s: %w", ErrIO, pending.offset, pending.origin, err)
	}

	n, err := w.file.Write(pending.data)
	if err != nil {
		return fmt.Errorf("%w: unable to write %d bytes at %d: %w", ErrIO, len(pending.data), position, err)
	}
	if n != len(pending.data) {
		return fmt.Errorf("%w: short write at %d: %d of %d bytes", ErrIO, position, n, len(pending.data))
	}

	if pending.future != nil {
		pending.future.complete(uint64(position), uint32(n))
	}

	return nil
}

// Flush blocks until every queued write finished and returns the first
// I/O error, if any.
func (w *DiskWriter) Flush() error {
	if w.options.StallWarning > 0 {
		start := time.Now()
		watchdog := time.AfterFunc(w.options.StallWarning, func() {
			slog.Warn("disk flush still waiting", "outstanding", w.Outstanding(), "waited", time.Since(start))
		})
		defer watchdog.Stop()
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	for w.outstanding > 0 {
		w.written.Wait()
	}

	return w.err
}

// EndThread stops the disk goroutine after it drained the ring. Later
// writes fail with ErrClosed. Safe to call more than once.
func (w *DiskWriter) EndThread() error {
	w.sendLock.Lock()
	if !w.closed {
		w.closed = true
		close(w.ring)
	}
	w.sendLock.Unlock()

	<-w.done

	return w.Err()
}

func (w *DiskWriter) Err() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.err
}

func (w *DiskWriter) Outstanding() int {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.outstanding
}

// BytesWritten counts bytes of completed writes, overwrites included.
func (w *DiskWriter) BytesWritten() int64 {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.bytesWritten
}

func (w *DiskWriter) Writes() int64 {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.writes
}
