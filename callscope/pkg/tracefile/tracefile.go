// Package tracefile reads and writes the .cst trace container: a four byte
// magic, a format version byte, then the snappy-framed JSON snapshot of the
// call tree.
package tracefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"

	"github.com/tracelight/callscope/callscope/pkg/atomicfs"
	"github.com/tracelight/callscope/callscope/pkg/calltree"
)

// Extension is the conventional suffix for trace container files.
const Extension = ".cst"

// Version is the current container format version.
const Version = 1

var magic = [4]byte{'C', 'S', 'T', 'F'}

var (
	ErrBadMagic   = errors.New("tracefile: not a trace container")
	ErrBadVersion = errors.New("tracefile: unsupported container version")
)

// Write encodes the snapshot into the container format.
func Write(w io.Writer, s *calltree.Snapshot) error {
	if _, err := w.Write(append(magic[:], Version)); err != nil {
		return fmt.Errorf("tracefile: write header: %w", err)
	}

	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("tracefile: encode snapshot: %w", err)
	}

	zw := snappy.NewBufferedWriter(w)
	if _, err := zw.Write(body); err != nil {
		return fmt.Errorf("tracefile: compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("tracefile: compress snapshot: %w", err)
	}
	return nil
}

// Read decodes a container produced by Write.
func Read(r io.Reader) (*calltree.Snapshot, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("tracefile: read header: %w", err)
	}
	if !bytes.Equal(header[:4], magic[:]) {
		return nil, ErrBadMagic
	}
	if header[4] != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, header[4])
	}

	body, err := io.ReadAll(snappy.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("tracefile: decompress snapshot: %w", err)
	}

	var s calltree.Snapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("tracefile: decode snapshot: %w", err)
	}
	return &s, nil
}

// Save snapshots the trace and writes it to path.
func Save(path string, t *calltree.Trace) error {
	f, err := atomicfs.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Discard()
	}()

	if err := Write(f, t.Snapshot()); err != nil {
		return err
	}
	return f.Close()
}

// Load reads a container from path and rebuilds the trace.
func Load(path string) (*calltree.Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		return nil, err
	}
	return calltree.Restore(s)
}
