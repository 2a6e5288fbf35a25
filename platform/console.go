package platform

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Console is the host's log sink.
type Console interface {
	Error(msg string)
	Info(msg string)
	Warn(msg string)
}

// consoleCore routes encoded zap entries to a Console by level.
type consoleCore struct {
	zapcore.LevelEnabler
	enc     zapcore.Encoder
	console Console
}

// NewConsoleLogger builds a logger whose output goes to console.
// Debug entries are dropped.
func NewConsoleLogger(console Console) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = ""
	cfg.LineEnding = ""
	return zap.New(&consoleCore{
		LevelEnabler: zapcore.InfoLevel,
		enc:          zapcore.NewConsoleEncoder(cfg),
		console:      console,
	})
}

func (c *consoleCore) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for i := range fields {
		fields[i].AddTo(enc)
	}
	return &consoleCore{LevelEnabler: c.LevelEnabler, enc: enc, console: c.console}
}

func (c *consoleCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *consoleCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := buf.String()
	buf.Free()

	switch {
	case ent.Level >= zapcore.ErrorLevel:
		c.console.Error(msg)
	case ent.Level == zapcore.WarnLevel:
		c.console.Warn(msg)
	default:
		c.console.Info(msg)
	}
	return nil
}

func (c *consoleCore) Sync() error { return nil }
