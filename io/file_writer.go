package io

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

var (
	ErrNotOpened     = errors.New("file not opened")
	ErrWriteMismatch = errors.New("written bytes mismatch")
)

// FileWriter is the single sequential handle a cache file is written
// through. It is not safe for concurrent use, the disk goroutine owns it.
type FileWriter struct {
	path   string
	file   *os.File
	opened bool

	written int64
}

// CreateFileWriter truncates path, creating missing parent directories.
func CreateFileWriter(path string) (*FileWriter, error) {
	if err := createDirIfNotExists(filepath.Dir(path)); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s: %w", path, err)
	}

	return &FileWriter{path: path, file: f, opened: true}, nil
}

func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("unable to create directory : %s", dir)
		return err
	}

	log.Printf(" >> created %s folder", dir)

	return nil
}

func (f *FileWriter) Path() string {
	return f.path
}

func (f *FileWriter) Seek(offset int64, whence int) (int64, error) {
	if !f.opened {
		return 0, ErrNotOpened
	}

	return f.file.Seek(offset, whence)
}

// Write writes all of p or fails. A short write is an error even when
// the OS reports none.
func (f *FileWriter) Write(p []byte) (int, error) {
	if !f.opened {
		return 0, ErrNotOpened
	}

	n, err := f.file.Write(p)
	f.written += int64(n)

	if err != nil {
		return n, err
	}

	if n != len(p) {
		return n, fmt.Errorf("%w: %d of %d", ErrWriteMismatch, n, len(p))
	}

	return n, nil
}

// BytesWritten counts every byte handed to the OS, overwrites included.
func (f *FileWriter) BytesWritten() int64 {
	return f.written
}

func (f *FileWriter) Sync() error {
	if !f.opened {
		return ErrNotOpened
	}

	return datasync(f.file)
}

func (f *FileWriter) Close() error {
	if !f.opened {
		return nil
	}

	f.opened = false
	return f.file.Close()
}

// Remove closes and deletes the file. Used to discard a failed export.
func (f *FileWriter) Remove() error {
	closeErr := f.Close()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	log.Printf(" >> removed partial file %s", f.path)

	return closeErr
}
