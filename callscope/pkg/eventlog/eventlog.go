// Package eventlog reads and writes recorded call-event streams: one JSON
// object per line, each carrying a "type" discriminator plus the fields of
// the corresponding ingestion event.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tracelight/callscope/callscope/pkg/calltree"
)

const (
	typeEnter = "enter"
	typeExit  = "exit"
)

// maxLineSize bounds a single event line. Argument previews are clipped by
// the producer, so a megabyte is generous.
const maxLineSize = 1 << 20

type record struct {
	Type       string                   `json:"type"`
	Name       string                   `json:"name,omitempty"`
	Location   *calltree.SourceLocation `json:"location,omitempty"`
	ParamNames []string                 `json:"parameterNames,omitempty"`
	Callsite   string                   `json:"callsite,omitempty"`
	Arguments  []string                 `json:"arguments,omitempty"`
	Time       float64                  `json:"time"`
	Return     *string                  `json:"return,omitempty"`
	Throw      *string                  `json:"throw,omitempty"`
	Yield      *string                  `json:"yield,omitempty"`
}

// Reader decodes events from a line-delimited JSON stream.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event in the stream, io.EOF at its end, or an error
// naming the offending line. Blank lines are skipped.
func (r *Reader) Next() (calltree.Event, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("eventlog: line %d: %w", r.line, err)
		}

		ev, err := rec.event()
		if err != nil {
			return nil, fmt.Errorf("eventlog: line %d: %w", r.line, err)
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: read: %w", err)
	}
	return nil, io.EOF
}

func (rec *record) event() (calltree.Event, error) {
	switch rec.Type {
	case typeEnter:
		ev := calltree.EnterEvent{
			Name:       rec.Name,
			ParamNames: rec.ParamNames,
			Callsite:   rec.Callsite,
			Arguments:  rec.Arguments,
			Time:       rec.Time,
		}
		if rec.Location != nil {
			ev.Location = *rec.Location
		}
		return ev, ev.Validate()
	case typeExit:
		ev := calltree.ExitEvent{
			Time:    rec.Time,
			Return:  rec.Return,
			Thrown:  rec.Throw,
			Yielded: rec.Yield,
		}
		return ev, ev.Validate()
	default:
		return nil, fmt.Errorf("unknown event type %q", rec.Type)
	}
}

// Writer appends events to a stream in the format Reader understands.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(ev calltree.Event) error {
	var rec record
	switch e := ev.(type) {
	case calltree.EnterEvent:
		rec = record{
			Type:       typeEnter,
			Name:       e.Name,
			ParamNames: e.ParamNames,
			Callsite:   e.Callsite,
			Arguments:  e.Arguments,
			Time:       e.Time,
		}
		if e.Location != (calltree.SourceLocation{}) {
			loc := e.Location
			rec.Location = &loc
		}
	case calltree.ExitEvent:
		rec = record{
			Type:   typeExit,
			Time:   e.Time,
			Return: e.Return,
			Throw:  e.Thrown,
			Yield:  e.Yielded,
		}
	default:
		return fmt.Errorf("eventlog: unknown event type %T", ev)
	}

	buf, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("eventlog: encode: %w", err)
	}
	if _, err := w.w.Write(buf); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}

// ReadInto replays every event from r into the trace and finishes it. A
// stream that finalizes the trace mid-way (an unmatched exit) followed by
// further events is a producer bug and surfaces as an error.
func ReadInto(r io.Reader, t *calltree.Trace) error {
	rd := NewReader(r)
	for {
		ev, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := t.Apply(ev); err != nil {
			return fmt.Errorf("eventlog: line %d: %w", rd.line, err)
		}
	}
	t.Finish()
	return nil
}
