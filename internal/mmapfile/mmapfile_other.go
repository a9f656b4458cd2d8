//go:build !unix

package mmapfile

import "os"

// File falls back to a plain in-memory read on platforms without mmap
// support; the read-only query guarantees spec.md §5 requires still hold,
// just without the page-fault-driven lazy loading unix gets.
type File struct {
	data []byte
}

func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &File{data: data}, nil
}

func (mf *File) Bytes() []byte { return mf.data }

func (mf *File) Close() error { mf.data = nil; return nil }
