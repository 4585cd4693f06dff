package io

import (
	"errors"
	"fmt"
	"os"
)

var ErrReadMismatch = errors.New("read bytes mismatch")

type FileReader struct {
	path   string
	file   *os.File
	opened bool

	size int64
}

func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

func (f *FileReader) Open() (topErr error) {

	f.file, topErr = os.Open(f.path)
	if topErr != nil {
		return topErr
	}

	info, topErr := f.file.Stat()
	if topErr != nil {
		f.file.Close()
		return topErr
	}

	f.size = info.Size()
	f.opened = true

	return nil
}

func (f *FileReader) Size() int64 {
	return f.size
}

func (f *FileReader) Close() error {
	if !f.opened {
		return nil
	}

	f.opened = false
	return f.file.Close()
}

// ReadAt fills out completely from off.
func (f *FileReader) ReadAt(out []byte, off int64) (err error) {
	if !f.opened {
		return ErrNotOpened
	}

	if off+int64(len(out)) > f.size {
		return fmt.Errorf("%w: want [%d, %d) of %d byte file", ErrReadMismatch, off, off+int64(len(out)), f.size)
	}

	readBytes, err := f.file.ReadAt(out, off)
	if readBytes != len(out) {
		return fmt.Errorf("%w: %d of %d (%v)", ErrReadMismatch, readBytes, len(out), err)
	}

	return nil
}
