package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracelight/callscope/callscope/internal/cli"
	"github.com/tracelight/callscope/callscope/internal/hub"
	"github.com/tracelight/callscope/callscope/pkg/must"
	"github.com/tracelight/callscope/callscope/pkg/xpflag"
	"github.com/tracelight/callscope/library/go/core/log"
)

var (
	serveConfigPath  string
	serveHTTPAddr    string
	serveMetricsAddr string
	serveArchive     string
	serveLogLevel    = xpflag.NewOneOf("info", log.Levels()...)

	serveSessionIdle     time.Duration
	serveSessionIdleFlag = xpflag.NewFunc(func(val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("unexpected session idle timeout %q: %w", val, err)
		}
		serveSessionIdle = d
		return nil
	})

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the callscope hub",
		Long:  "The hub ingests live recording sessions, archives finished traces and serves the call tree query API.",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := cli.New(&cli.Config{LogLevel: serveLogLevel.String()})
			if err != nil {
				return err
			}
			defer app.Shutdown()

			conf := &hub.Config{}
			if serveConfigPath != "" {
				conf, err = hub.ParseConfig(serveConfigPath)
				if err != nil {
					return err
				}
			}
			if serveHTTPAddr != "" {
				conf.Listen.HTTPAddr = serveHTTPAddr
			}
			if serveMetricsAddr != "" {
				conf.Listen.MetricsAddr = serveMetricsAddr
			}
			if serveArchive != "" {
				conf.Archive.Path = serveArchive
			}
			if serveSessionIdle > 0 {
				conf.Sessions.IdleTimeout = serveSessionIdle
			}

			service, err := hub.NewService(conf, app.Logger())
			if err != nil {
				return err
			}
			return service.Run(app.Context())
		},
	}
)

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to the hub config file")
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "HTTP API address, overrides the config")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Metrics address, overrides the config")
	serveCmd.Flags().StringVar(&serveArchive, "archive", "", "Archive database path, overrides the config")
	serveCmd.Flags().Var(serveSessionIdleFlag, "session-idle", "Finalize sessions idle longer than this, overrides the config")
	serveCmd.Flags().VarP(serveLogLevel, "log-level", "l", "Logging level, one of ["+serveLogLevel.Variants()+"]")
	must.Must(serveCmd.RegisterFlagCompletionFunc("log-level", serveLogLevel.Complete))

	rootCmd.AddCommand(serveCmd)
}
