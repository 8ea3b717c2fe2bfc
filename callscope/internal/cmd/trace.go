package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/eventlog"
	"github.com/tracelight/callscope/callscope/pkg/tracefile"
)

// loadTrace reads a finalized trace from path, picking the format by
// extension: .cst containers, .json snapshots, .jsonl/.ndjson event logs.
// "-" reads an event log from stdin.
func loadTrace(path string) (*calltree.Trace, error) {
	if path == "-" {
		return readEvents(os.Stdin)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case tracefile.Extension:
		return tracefile.Load(path)
	case ".json":
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var snap calltree.Snapshot
		if err := json.Unmarshal(buf, &snap); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
		}
		return calltree.Restore(&snap)
	case ".jsonl", ".ndjson":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readEvents(f)
	default:
		return nil, fmt.Errorf("unknown trace format %q, expected .cst, .json, .jsonl or .ndjson", filepath.Ext(path))
	}
}

func readEvents(r io.Reader) (*calltree.Trace, error) {
	tree := calltree.New()
	if err := eventlog.ReadInto(r, tree); err != nil {
		return nil, err
	}
	return tree, nil
}
