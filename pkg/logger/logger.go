// Package logger provides the structured logger used across the module.
package logger

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log wraps logr.Logger so call sites don't depend on the zap backend directly.
type Log struct {
	logr.Logger
}

// New builds a logger for the given component name. When production is false
// the development encoder (colorized levels) is used; logPath, if set,
// redirects output to <logPath>/<name>.log instead of stderr.
func New(name, logPath string, production bool) (*Log, error) {
	var zc zap.Config

	if production {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc.DisableCaller = true
	zc.DisableStacktrace = true

	if logPath != "" {
		if err := os.MkdirAll(logPath, fs.ModeDir); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		zc.OutputPaths = []string{
			filepath.Join(logPath, fmt.Sprintf("%s.log", name)),
		}
	}

	z, err := zc.Build()
	if err != nil {
		return nil, err
	}

	return &Log{Logger: zapr.NewLogger(z).WithName(name)}, nil
}

// NewSimple returns a logger on top of the global zap logger, useful for
// tests and one-off tools that don't want to build a full config.
func NewSimple(name string) *Log {
	return &Log{Logger: zapr.NewLogger(zap.L().Named(name))}
}

// New returns a named child logger, e.g. log.New("grant") for a sub-component.
func (l *Log) New(name string) *Log {
	return &Log{Logger: l.WithName(name)}
}

// Info logs at the default verbosity.
func (l *Log) Info(msg string, args ...interface{}) {
	l.Logger.V(0).WithValues(args...).Info(msg)
}

// Debug logs at verbosity 1.
func (l *Log) Debug(msg string, args ...interface{}) {
	l.Logger.V(1).WithValues(args...).Info(msg)
}

// Trace logs at verbosity 2, the noisiest level.
func (l *Log) Trace(msg string, args ...interface{}) {
	l.Logger.V(2).WithValues(args...).Info(msg)
}
