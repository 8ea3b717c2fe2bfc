package cmd

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/must"
	"github.com/tracelight/callscope/callscope/pkg/xpflag"
)

var (
	topLimit int
	topSort  = xpflag.NewOneOf("self", "self", "total", "calls")

	topCmd = &cobra.Command{
		Use:   "top <trace>",
		Short: "Show the hottest functions of a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			tree, err := loadTrace(args[0])
			if err != nil {
				return err
			}
			printTopFunctions(tree, topSort.String(), topLimit)
			return nil
		},
	}
)

type topRow struct {
	name     string
	calls    int64
	total    float64
	self     float64
	hasTimes bool
}

func printTopFunctions(tree *calltree.Trace, order string, limit int) {
	functions := tree.Functions()
	rows := make([]topRow, 0, functions.Len())
	for i := 0; i < functions.Len(); i++ {
		fn := functions.Function(calltree.FunctionID(i))
		name := fn.Name
		if loc := fn.Location.String(); loc != "" {
			name += " (" + loc + ")"
		}
		rows = append(rows, topRow{
			name:     name,
			calls:    fn.CallCount,
			total:    fn.TotalTime,
			self:     fn.SelfTime,
			hasTimes: fn.HasTimes,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		switch order {
		case "total":
			if rows[i].total != rows[j].total {
				return rows[i].total > rows[j].total
			}
		case "calls":
			if rows[i].calls != rows[j].calls {
				return rows[i].calls > rows[j].calls
			}
		default:
			if rows[i].self != rows[j].self {
				return rows[i].self > rows[j].self
			}
		}
		return rows[i].name < rows[j].name
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	fmt.Printf("%-60s %10s %14s %14s\n", "FUNCTION", "CALLS", "TOTAL", "SELF")
	for _, row := range rows {
		total, self := "-", "-"
		if row.hasTimes {
			total = fmt.Sprintf("%.3fms", row.total)
			self = fmt.Sprintf("%.3fms", row.self)
		}
		fmt.Printf("%-60s %10s %14s %14s\n", row.name, humanize.Comma(row.calls), total, self)
	}
}

func init() {
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", 20, "Maximum number of functions to print, 0 for all")
	topCmd.Flags().Var(topSort, "sort", "Sort order, one of ["+topSort.Variants()+"]")
	must.Must(topCmd.RegisterFlagCompletionFunc("sort", topSort.Complete))

	rootCmd.AddCommand(topCmd)
}
