package main

import (
	"github.com/tracelight/callscope/callscope/internal/cmd"
	"github.com/tracelight/callscope/callscope/pkg/maxprocs"
)

func main() {
	maxprocs.Adjust()
	cmd.Execute()
}
