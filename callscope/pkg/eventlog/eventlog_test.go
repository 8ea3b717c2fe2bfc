package eventlog_test

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/eventlog"
	"github.com/tracelight/callscope/library/go/ptr"
)

func TestEventLog_RoundTrip(t *testing.T) {
	events := []calltree.Event{
		calltree.EnterEvent{
			Name: "main",
			Location: calltree.SourceLocation{
				Path:   "app.js",
				Line:   1,
				Column: 1,
			},
			ParamNames: []string{"argv"},
			Callsite:   "bootstrap.js:10:3",
			Arguments:  []string{`["--verbose"]`},
			Time:       0.0,
		},
		calltree.EnterEvent{Name: "anonymous", Time: 1.25},
		calltree.ExitEvent{Time: 2.5, Yielded: ptr.String("42")},
		calltree.ExitEvent{Time: 3.0, Thrown: ptr.String("Error: boom")},
		calltree.EnterEvent{Name: "cleanup", Time: 3.5},
		calltree.ExitEvent{Time: 4.0, Return: ptr.String("undefined")},
		calltree.ExitEvent{Time: 5.0},
	}

	var buf bytes.Buffer
	w := eventlog.NewWriter(&buf)
	for _, ev := range events {
		require.NoError(t, w.Write(ev))
	}
	require.NoError(t, w.Flush())

	r := eventlog.NewReader(&buf)
	var got []calltree.Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, ev)
	}
	require.Equal(t, events, got)
}

func TestEventLog_BlankLinesAreSkipped(t *testing.T) {
	input := strings.Join([]string{
		``,
		`{"type":"enter","name":"f","time":1}`,
		``,
		``,
		`{"type":"exit","time":2}`,
		``,
	}, "\n")

	r := eventlog.NewReader(strings.NewReader(input))

	ev, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, calltree.EnterEvent{Name: "f", Time: 1}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, calltree.ExitEvent{Time: 2}, ev)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestEventLog_ReaderErrors(t *testing.T) {
	for i, test := range []struct {
		line      string
		error     string
		malformed bool
	}{
		{
			line:  `{broken`,
			error: "line 2",
		},
		{
			line:  `{"type":"gc","time":1}`,
			error: `unknown event type "gc"`,
		},
		{
			line:      `{"type":"enter","time":1}`,
			error:     "line 2",
			malformed: true,
		},
		{
			line:      `{"type":"exit","time":1,"return":"a","throw":"b"}`,
			error:     "line 2",
			malformed: true,
		},
	} {
		t.Run(fmt.Sprintf("case/%d", i), func(t *testing.T) {
			input := `{"type":"enter","name":"f","time":0}` + "\n" + test.line + "\n"
			r := eventlog.NewReader(strings.NewReader(input))

			_, err := r.Next()
			require.NoError(t, err)

			_, err = r.Next()
			require.ErrorContains(t, err, test.error)
			if test.malformed {
				require.ErrorIs(t, err, calltree.ErrMalformedEvent)
			}
		})
	}
}

func TestEventLog_ReadInto(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"enter","name":"main","time":0}`,
		`{"type":"enter","name":"work","time":1}`,
		`{"type":"exit","time":4,"return":"3"}`,
		`{"type":"exit","time":5}`,
	}, "\n")

	tree := calltree.New()
	require.NoError(t, eventlog.ReadInto(strings.NewReader(input), tree))

	require.True(t, tree.Finished())
	require.Equal(t, 2, tree.NumFrames())

	main := tree.Frame(0)
	require.Equal(t, "main", main.Name)
	require.Equal(t, 5.0, main.Total)
	require.Equal(t, 2.0, main.Self)

	work := tree.Frame(1)
	require.Equal(t, "work", work.Name)
	require.Equal(t, "3", *work.Return)
}

func TestEventLog_ReadIntoFinishesOpenFrames(t *testing.T) {
	input := `{"type":"enter","name":"spin","time":1.5}` + "\n"

	tree := calltree.New()
	require.NoError(t, eventlog.ReadInto(strings.NewReader(input), tree))

	require.True(t, tree.Finished())
	require.False(t, tree.Frame(0).Closed)
	require.Equal(t, 1.5, tree.EndTime())
}

func TestEventLog_ReadIntoRejectsEventsAfterFinalization(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"enter","name":"f","time":1}`,
		`{"type":"exit","time":2}`,
		`{"type":"exit","time":3}`,
		`{"type":"enter","name":"g","time":4}`,
	}, "\n")

	err := eventlog.ReadInto(strings.NewReader(input), calltree.New())
	require.ErrorIs(t, err, calltree.ErrTraceFinished)
	require.ErrorContains(t, err, "line 4")
}
