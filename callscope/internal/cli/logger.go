package cli

import (
	"os"

	"github.com/mattn/go-isatty"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tracelight/callscope/callscope/pkg/xlog"
	"github.com/tracelight/callscope/library/go/core/log"
	"github.com/tracelight/callscope/library/go/core/log/zap"
)

func NewLogger(level log.Level) (xlog.Logger, error) {
	config := uberzap.NewDevelopmentConfig()
	config.Level = uberzap.NewAtomicLevelAt(zap.ZapifyLevel(level))

	if isatty.IsTerminal(os.Stderr.Fd()) {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	config.EncoderConfig.ConsoleSeparator = " "
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(`15:04:05.000`)
	config.DisableStacktrace = true
	return xlog.TryNew(zap.New(config))
}
