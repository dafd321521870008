// ABOUTME: Structured logger wrapping zap's SugaredLogger
// ABOUTME: Components take a *Logger and tag their lines with a component field
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin key/value facade over zap
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	level         *zap.AtomicLevel
}

// New builds a production (JSON) or development (console) logger
func New(mode string) (*Logger, error) {
	return NewWithLevel(mode, zapcore.InfoLevel)
}

// NewWithLevel is New with an explicit minimum level
func NewWithLevel(mode string, level zapcore.Level) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	// stdout belongs to command output and the MCP stdio transport
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	atom := zap.NewAtomicLevelAt(level)
	cfg.Level = atom

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar(), level: &atom}, nil
}

// FromZap wraps an existing zap logger
func FromZap(l *zap.Logger) *Logger {
	return &Logger{SugaredLogger: l.Sugar()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// OrNop returns l, or a discarding logger when l is nil
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// SetLevel moves the minimum level of a logger built by New in either
// direction. A wrapped zap logger can only be raised.
func SetLevel(l *Logger, level zapcore.Level) *Logger {
	if l.level != nil {
		l.level.SetLevel(level)
		return l
	}
	return &Logger{SugaredLogger: l.SugaredLogger.Desugar().WithOptions(zap.IncreaseLevel(level)).Sugar()}
}

// Enabled reports whether lines at level are written
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.SugaredLogger.Desugar().Core().Enabled(level)
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}

// With returns a child logger carrying the given fields on every line
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}

// Component is shorthand for With("component", name)
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}
