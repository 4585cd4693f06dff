//go:build !linux

package io

import "os"

func datasync(f *os.File) error {
	return f.Sync()
}
