package cli

import (
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// NewLogger builds the process logger. format is "text" or "json".
func NewLogger(level, format string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, errors.Errorf("unsupported log format %q (want text or json)", format)
	}

	logger, props, err := log.InitLogger(&log.Config{
		Level:  level,
		Format: format,
	})
	if err != nil {
		return nil, errors.Annotate(err, "failed to initialize logger")
	}
	log.ReplaceGlobals(logger, props)
	return logger, nil
}
