package diskwriter

// WriteFuture receives the final location of one write. The disk
// goroutine fills it exactly once; it must only be read after a Flush
// that covers the write.
type WriteFuture struct {
	position uint64
	size     uint32
	done     bool
}

// Position is the absolute file offset the write started at.
func (f *WriteFuture) Position() uint64 {
	return f.position
}

// Size is the number of bytes written.
func (f *WriteFuture) Size() uint32 {
	return f.size
}

func (f *WriteFuture) Done() bool {
	return f.done
}

func (f *WriteFuture) complete(position uint64, size uint32) {
	f.position = position
	f.size = size
	f.done = true
}
