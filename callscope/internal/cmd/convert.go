package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracelight/callscope/callscope/pkg/atomicfs"
	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/collapsed"
	"github.com/tracelight/callscope/callscope/pkg/convert"
	"github.com/tracelight/callscope/callscope/pkg/must"
	"github.com/tracelight/callscope/callscope/pkg/tracefile"
	"github.com/tracelight/callscope/callscope/pkg/xpflag"
)

var (
	convertInput  string
	convertOutput string
	convertFormat = xpflag.NewOneOf("pprof", "pprof", "collapsed", "snapshot", "cst")

	convertCmd = &cobra.Command{
		Use:   "convert",
		Short: "Convert a trace into another format",
		RunE: func(_ *cobra.Command, _ []string) error {
			tree, err := loadTrace(convertInput)
			if err != nil {
				return err
			}

			buf, err := renderTrace(tree, convertFormat.String())
			if err != nil {
				return err
			}

			if convertOutput == "" || convertOutput == "-" {
				_, err = os.Stdout.Write(buf)
				return err
			}
			return atomicfs.WriteFile(convertOutput, buf, atomicfs.WithMode(0o644))
		},
	}
)

func renderTrace(tree *calltree.Trace, format string) ([]byte, error) {
	switch format {
	case "pprof":
		prof, err := convert.TraceToPProf(tree)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := prof.Write(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case "collapsed":
		prof, err := convert.TraceToCollapsed(tree)
		if err != nil {
			return nil, err
		}
		return collapsed.Marshal(prof)

	case "snapshot":
		return json.MarshalIndent(tree.Snapshot(), "", "  ")

	case "cst":
		var buf bytes.Buffer
		if err := tracefile.Write(&buf, tree.Snapshot()); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func init() {
	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "-", "Input trace (.cst, .json, .jsonl, .ndjson or - for stdin)")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "-", "Output path, - for stdout")
	convertCmd.Flags().Var(convertFormat, "format", "Output format, one of ["+convertFormat.Variants()+"]")
	must.Must(convertCmd.RegisterFlagCompletionFunc("format", convertFormat.Complete))

	rootCmd.AddCommand(convertCmd)
}
