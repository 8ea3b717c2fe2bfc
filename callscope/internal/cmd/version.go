package cmd

import (
	"fmt"
	"runtime"
	rdebug "runtime/debug"

	"github.com/spf13/cobra"
)

const version = "v0.1.0"

var (
	versionVerbose bool

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Printf("callscope %s\n", version)
			if !versionVerbose {
				return nil
			}

			fmt.Println("Compiled with Go version:", runtime.Version())
			if info, ok := rdebug.ReadBuildInfo(); ok {
				fmt.Println("Main module:")
				fmt.Printf("\t%s@%s\n", info.Main.Path, info.Main.Version)
			}
			return nil
		},
	}
)

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "Print build details")
	rootCmd.AddCommand(versionCmd)
}
