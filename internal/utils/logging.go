package utils

import (
	"go.uber.org/zap"
)

// Logger keeps the key/value call shape used across handlers and delegates to zap.
type Logger struct {
	l *zap.SugaredLogger
}

func NewLogger() *Logger {
	z, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	return &Logger{l: z.Sugar()}
}

// NewNopLogger discards everything; used by tests.
func NewNopLogger() *Logger { return &Logger{l: zap.NewNop().Sugar()} }

func (lg *Logger) Info(msg string, kv ...any)  { lg.l.Infow(msg, kv...) }
func (lg *Logger) Warn(msg string, kv ...any)  { lg.l.Warnw(msg, kv...) }
func (lg *Logger) Error(msg string, kv ...any) { lg.l.Errorw(msg, kv...) }
func (lg *Logger) Debug(msg string, kv ...any) { lg.l.Debugw(msg, kv...) }

// With returns a child logger that always carries kv.
func (lg *Logger) With(kv ...any) *Logger { return &Logger{l: lg.l.With(kv...)} }

func (lg *Logger) Sync() { _ = lg.l.Sync() }
