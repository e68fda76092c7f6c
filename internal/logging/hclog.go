package logging

import (
	"github.com/hashicorp/go-hclog"
)

// HclogLogger is the production Logger implementation, backed by
// hashicorp/go-hclog.
type HclogLogger struct {
	inner hclog.Logger
}

// NewHclogLogger creates a Logger named after the owning component.
// level accepts the usual hclog names ("debug", "info", "warn", "error");
// an empty or unknown value falls back to info.
func NewHclogLogger(component, level string) *HclogLogger {
	return &HclogLogger{
		inner: hclog.New(&hclog.LoggerOptions{
			Name:       component,
			Level:      hclog.LevelFromString(level),
			JSONFormat: true,
		}),
	}
}

// WrapHclog adapts an existing hclog.Logger.
func WrapHclog(l hclog.Logger) *HclogLogger {
	return &HclogLogger{inner: l}
}

// Hclog exposes the underlying hclog.Logger for libraries that want one
// directly (e.g. resty's log adapter).
func (h *HclogLogger) Hclog() hclog.Logger { return h.inner }

func flatten(fields []Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

func (h *HclogLogger) Debug(msg string, fields ...Field) { h.inner.Debug(msg, flatten(fields)...) }
func (h *HclogLogger) Info(msg string, fields ...Field)  { h.inner.Info(msg, flatten(fields)...) }
func (h *HclogLogger) Warn(msg string, fields ...Field)  { h.inner.Warn(msg, flatten(fields)...) }
func (h *HclogLogger) Error(msg string, fields ...Field) { h.inner.Error(msg, flatten(fields)...) }

func (h *HclogLogger) With(fields ...Field) Logger {
	return &HclogLogger{inner: h.inner.With(flatten(fields)...)}
}
