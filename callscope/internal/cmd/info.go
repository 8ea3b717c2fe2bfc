package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	infoCmd = &cobra.Command{
		Use:   "info <trace>",
		Short: "Print a trace summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := args[0]
			tree, err := loadTrace(path)
			if err != nil {
				return err
			}

			fmt.Printf("Frames:    %s\n", humanize.Comma(int64(tree.NumFrames())))
			fmt.Printf("Functions: %s\n", humanize.Comma(int64(tree.Functions().Len())))
			fmt.Printf("Max depth: %d\n", tree.MaxDepth())
			fmt.Printf("Start:     %.3fms\n", float64(tree.StartTime()))
			fmt.Printf("End:       %.3fms\n", float64(tree.EndTime()))
			fmt.Printf("Duration:  %.3fms\n", float64(tree.TotalTime()))

			if path != "-" {
				if st, err := os.Stat(path); err == nil {
					fmt.Printf("File size: %s\n", humanize.Bytes(uint64(st.Size())))
				}
			}
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(infoCmd)
}
