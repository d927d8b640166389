// Package logging builds the zap logger used by the service and adapts it
// to the membership.Logger contract.
package logging

import (
	"os"
	"strings"

	"github.com/goliatone/go-membership"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level string
	Dev   bool
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New initializes and returns a *zap.Logger
func New(opts Options) (*zap.Logger, error) {
	lvl := levelFromString(opts.Level)
	if opts.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// ZapLogger implements membership.Logger. The message is logged verbatim
// and the trailing arguments are treated as key/value pairs.
type ZapLogger struct {
	s *zap.SugaredLogger
}

var _ membership.Logger = (*ZapLogger)(nil)

func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	// skip the adapter frame so callers show up in the output
	return &ZapLogger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Named returns a child logger for a component
func (l *ZapLogger) Named(name string) *ZapLogger {
	return &ZapLogger{s: l.s.Named(name)}
}

func (l *ZapLogger) Debug(format string, args ...any) { l.s.Debugw(format, args...) }
func (l *ZapLogger) Info(format string, args ...any)  { l.s.Infow(format, args...) }
func (l *ZapLogger) Warn(format string, args ...any)  { l.s.Warnw(format, args...) }
func (l *ZapLogger) Error(format string, args ...any) { l.s.Errorw(format, args...) }

// Sync flushes buffered entries
func (l *ZapLogger) Sync() error {
	return l.s.Sync()
}
