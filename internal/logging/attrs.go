package logging

import (
	"log/slog"
	"time"

	"perapera/internal/services"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error records err under "error". A nil error is recorded as "<nil>".
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// BlockIndex and PathID locate a sub-structure inside an asset.
func BlockIndex(index int) Attr { return slog.Int(FieldBlockIndex, index) }

func PathID(id int64) Attr { return slog.Int64(FieldPathID, id) }

// ErrorKind records the taxonomy name of err.
func ErrorKind(err error) Attr { return slog.String(FieldErrorKind, services.Kind(err)) }

// Args converts attrs into the variadic form slog methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// FieldImpact is the standardized key for user-facing consequence of a warning.
const FieldImpact = "impact"

// WarnWithContext logs a warning carrying cause, impact and next step. Missing
// event_type, error_hint and impact fields are filled with defaults, and an
// error attribute without error_kind gets its taxonomy name.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs, eventType)
	if !hasAttr(attrs, FieldImpact) {
		attrs = append(attrs, String(FieldImpact, "asset processed with omissions"))
	}
	logger.Warn(msg, Args(attrs...)...)
}

// ErrorWithContext logs an error with the same defaults as WarnWithContext,
// minus impact.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Error(msg, Args(withDefaults(attrs, eventType)...)...)
}

func withDefaults(attrs []Attr, eventType string) []Attr {
	if !hasAttr(attrs, FieldEventType) {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !hasAttr(attrs, FieldErrorHint) {
		attrs = append(attrs, String(FieldErrorHint, "check logs for details"))
	}
	if !hasAttr(attrs, FieldErrorKind) {
		for _, a := range attrs {
			if err, ok := a.Value.Any().(error); ok && a.Key == "error" {
				attrs = append(attrs, ErrorKind(err))
				break
			}
		}
	}
	return attrs
}

func hasAttr(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}
