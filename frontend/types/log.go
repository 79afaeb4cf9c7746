package types

import (
	"context"
	"log/slog"

	"github.com/rill-lang/rill/internal/log"
)

var logger = slog.New(SlogHandler(log.DefaultLogger.Handler())).With("section", "types")

// LogValue wraps t so that it is only rendered if the record is actually written
func LogValue(t Type) slog.LogValuer { return typeLogValuer{t} }

type typeLogValuer struct{ Type }

func (l typeLogValuer) LogValue() slog.Value {
	if l.Type == nil {
		return slog.StringValue("<nil>")
	}
	return slog.StringValue(l.Type.String())
}

// SlogHandler is a slog.Handler capable of lazy-printing types
func SlogHandler(underlying slog.Handler) slog.Handler {
	return &typeLogHandler{underlying: underlying}
}

type typeLogHandler struct {
	underlying slog.Handler
}

func wrapAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindAny {
		return attr
	}
	switch value := attr.Value.Any().(type) {
	case Type:
		attr.Value = slog.AnyValue(LogValue(value))
	case []Type:
		attr.Value = slog.StringValue("[" + joinTypes(value) + "]")
	}
	return attr
}

func (l *typeLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return l.underlying.Enabled(ctx, level)
}

func (l *typeLogHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		newRecord.AddAttrs(wrapAttr(attr))
		return true
	})
	return l.underlying.Handle(ctx, newRecord)
}

func (l *typeLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	wrapped := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		wrapped[i] = wrapAttr(attr)
	}
	return SlogHandler(l.underlying.WithAttrs(wrapped))
}

func (l *typeLogHandler) WithGroup(name string) slog.Handler {
	return SlogHandler(l.underlying.WithGroup(name))
}
