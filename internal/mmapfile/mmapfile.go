//go:build unix

// Package mmapfile memory-maps the immutable index artifacts (prefix.fst,
// fuzzy.fst, fuzzy.msg, phrase.fst) read-only (spec.md §5: "reads from
// memory-mapped regions are data-race-free"). The sub-index Open functions
// decode the mapped bytes into in-memory structures at open time, and
// phrasex.Open reads each artifact in full beforehand to verify its
// checksum, so pages are not loaded lazily during queries.
package mmapfile

import (
	"fmt"
	"os"
	"syscall"
)

// File is a read-only memory-mapped view of a file on disk.
type File struct {
	data []byte
	f    *os.File
}

// Open memory-maps path for reading. The caller must call Close to unmap
// and release the underlying file descriptor.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return &File{f: f, data: nil}, nil
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mmap %s: %w", path, err)
	}
	return &File{data: data, f: f}, nil
}

// Bytes returns the mapped region. It is only valid until Close.
func (mf *File) Bytes() []byte { return mf.data }

// Close unmaps the region and closes the file descriptor. Idempotent.
func (mf *File) Close() error {
	var err error
	if mf.data != nil {
		err = syscall.Munmap(mf.data)
		mf.data = nil
	}
	if mf.f != nil {
		if cerr := mf.f.Close(); err == nil {
			err = cerr
		}
		mf.f = nil
	}
	return err
}
