// Package atomicfs writes files through a temporary neighbor and a
// rename, so readers never observe a partially written file.
package atomicfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

type File struct {
	tmpfile *os.File
	dstpath string
	sync    bool
}

type FileOption func(f *File) error

// WithSync fsyncs the temporary file before the rename.
func WithSync() FileOption {
	return func(f *File) error {
		f.sync = true
		return nil
	}
}

func WithMode(mode os.FileMode) FileOption {
	return func(f *File) error {
		return f.tmpfile.Chmod(mode)
	}
}

const tmpsuffix = ".tmp-"

func Create(path string, opts ...FileOption) (f *File, err error) {
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to make tmp file name: %w", err)
	}
	dir, base := filepath.Split(path)

	tmpf, err := os.CreateTemp(dir, base+tmpsuffix)
	if err != nil {
		return nil, err
	}

	f = &File{tmpfile: tmpf, dstpath: path}
	defer func() {
		if err != nil {
			_ = f.Discard()
		}
	}()

	// Not required, but lets Discard clean up uncommitted tmp files
	// that were dropped without Close.
	runtime.SetFinalizer(f, (*File).Discard)

	for _, opt := range opts {
		err = opt(f)
		if err != nil {
			return
		}
	}

	return f, nil
}

func (f *File) Write(data []byte) (int, error) {
	return f.tmpfile.Write(data)
}

// Discard removes the temporary file without touching the destination.
// Calling Discard after Close is a no-op.
func (f *File) Discard() error {
	if f.tmpfile == nil {
		return nil
	}
	defer func() {
		f.tmpfile = nil
	}()

	name := f.tmpfile.Name()
	_ = f.tmpfile.Close()
	return os.Remove(name)
}

// Close commits the file: the temporary is published at the destination
// path. On error the temporary is discarded.
func (f *File) Close() (err error) {
	if f.tmpfile == nil {
		return fmt.Errorf("calling atomicfs.File.Close on already finished atomicfs.File")
	}
	defer func() {
		if err != nil {
			_ = f.Discard()
		} else {
			f.tmpfile = nil
		}
	}()

	if f.sync {
		err = f.tmpfile.Sync()
		if err != nil {
			return err
		}
	}

	err = f.tmpfile.Close()
	if err != nil {
		return err
	}

	return os.Rename(f.tmpfile.Name(), f.dstpath)
}

var (
	_ io.Writer      = (*File)(nil)
	_ io.WriteCloser = (*File)(nil)
)

// WriteFile is an atomic version of os.WriteFile.
func WriteFile(path string, data []byte, opts ...FileOption) error {
	f, err := Create(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Discard()
	}()

	_, err = f.Write(data)
	if err != nil {
		return err
	}

	return f.Close()
}
