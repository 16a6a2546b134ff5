package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter implements Logger on top of a zap sugared logger.
type ZapAdapter struct {
	sugar *zap.SugaredLogger
}

// NewZapAdapter wraps l. A nil logger yields a no-op zap logger.
func NewZapAdapter(l *zap.Logger) *ZapAdapter {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapAdapter{sugar: l.Sugar()}
}

// NewZapProduction builds a JSON production zap logger at the given level.
func NewZapProduction(level LogLevel) (*ZapAdapter, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapAdapter(l), nil
}

func zapLevel(l LogLevel) zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (z *ZapAdapter) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }
func (z *ZapAdapter) Info(msg string, args ...any)  { z.sugar.Infow(msg, args...) }
func (z *ZapAdapter) Warn(msg string, args ...any)  { z.sugar.Warnw(msg, args...) }
func (z *ZapAdapter) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

// Sync flushes buffered entries.
func (z *ZapAdapter) Sync() error { return z.sugar.Sync() }
