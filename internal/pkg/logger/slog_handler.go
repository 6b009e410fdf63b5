package logger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/zap"
)

// slogZapHandler routes slog records into zap so libraries using slog share
// the process cores. Attrs added via WithAttrs are converted to zap fields
// once, not per record.
type slogZapHandler struct {
	logger *zap.Logger
	groups []string
}

func newSlogZapHandler(logger *zap.Logger) slog.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &slogZapHandler{logger: logger}
}

func (h *slogZapHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.Core().Enabled(zapLevel(level))
}

func (h *slogZapHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]zap.Field, 0, record.NumAttrs())
	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, h.field(attr))
		return true
	})

	switch zapLevel(record.Level) {
	case LevelError:
		h.logger.Error(record.Message, fields...)
	case LevelWarn:
		h.logger.Warn(record.Message, fields...)
	case LevelDebug:
		h.logger.Debug(record.Message, fields...)
	default:
		h.logger.Info(record.Message, fields...)
	}
	return nil
}

func (h *slogZapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	fields := make([]zap.Field, 0, len(attrs))
	for _, attr := range attrs {
		fields = append(fields, h.field(attr))
	}
	next := *h
	next.logger = h.logger.With(fields...)
	return &next
}

func (h *slogZapHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

func (h *slogZapHandler) field(attr slog.Attr) zap.Field {
	key := attr.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	value := attr.Value.Resolve()
	switch value.Kind() {
	case slog.KindBool:
		return zap.Bool(key, value.Bool())
	case slog.KindInt64:
		return zap.Int64(key, value.Int64())
	case slog.KindUint64:
		return zap.Uint64(key, value.Uint64())
	case slog.KindFloat64:
		return zap.Float64(key, value.Float64())
	case slog.KindDuration:
		return zap.Duration(key, value.Duration())
	case slog.KindTime:
		return zap.Time(key, value.Time())
	case slog.KindString:
		return zap.String(key, value.String())
	case slog.KindGroup:
		members := value.Group()
		m := make(map[string]any, len(members))
		for _, nested := range members {
			m[nested.Key] = nested.Value.Resolve().Any()
		}
		return zap.Any(key, m)
	case slog.KindAny:
		if t, ok := value.Any().(time.Time); ok {
			return zap.Time(key, t)
		}
		return zap.Any(key, value.Any())
	default:
		return zap.String(key, value.String())
	}
}

func zapLevel(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level <= slog.LevelDebug:
		return LevelDebug
	default:
		return LevelInfo
	}
}
