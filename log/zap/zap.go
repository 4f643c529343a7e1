// Package zap adapts a *zap.Logger to modelcache.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/modelcache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ modelcache.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger "modelcache" so cache events can be filtered.
func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("modelcache")} }

func (z ZapLogger) Debug(msg string, f modelcache.Fields) { z.log(zapcore.DebugLevel, msg, f) }
func (z ZapLogger) Info(msg string, f modelcache.Fields)  { z.log(zapcore.InfoLevel, msg, f) }
func (z ZapLogger) Warn(msg string, f modelcache.Fields)  { z.log(zapcore.WarnLevel, msg, f) }
func (z ZapLogger) Error(msg string, f modelcache.Fields) { z.log(zapcore.ErrorLevel, msg, f) }

func (z ZapLogger) log(lvl zapcore.Level, msg string, f modelcache.Fields) {
	// fields are only built when the level is enabled
	if ce := z.L.Check(lvl, msg); ce != nil {
		ce.Write(zf(f)...)
	}
}

func zf(f modelcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
