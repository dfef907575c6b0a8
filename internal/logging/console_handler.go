package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "15:04:05"

// consoleHandler writes one line per record for terminal use:
//
//	12:04:05 WARN [dispatcher] story/data/04/1001/x (extract) message key=value
//
// The component, asset and stage attributes move into the header.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	prefix    string
	attrs     []slog.Attr
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var (
		component, asset, stage string
		fields                  []string
		seen                    = make(map[string]int)
	)
	collect := func(key string, value slog.Value) {
		value = value.Resolve()
		switch key {
		case FieldComponent:
			component = value.String()
		case FieldAsset:
			asset = value.String()
		case FieldStage:
			stage = value.String()
		case "":
		default:
			field := key + "=" + consoleValue(value)
			if pos, ok := seen[key]; ok {
				fields[pos] = field
				return
			}
			seen[key] = len(fields)
			fields = append(fields, field)
		}
	}
	for _, attr := range h.attrs {
		collect(attr.Key, attr.Value)
	}
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key != "" {
			collect(h.prefix+attr.Key, attr.Value)
		}
		return true
	})

	stamp := record.Time
	if stamp.IsZero() {
		stamp = time.Now()
	}

	var buf bytes.Buffer
	buf.WriteString(stamp.Format(consoleTimeLayout))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if component != "" {
		buf.WriteString(" [" + component + "]")
	}
	if asset != "" {
		buf.WriteString(" " + asset)
	}
	if stage != "" {
		buf.WriteString(" (" + stage + ")")
	}
	buf.WriteByte(' ')
	buf.WriteString(record.Message)
	for _, field := range fields {
		buf.WriteByte(' ')
		buf.WriteString(field)
	}
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			buf.WriteString(" @" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line))
		}
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, attr := range attrs {
		attr.Key = h.prefix + attr.Key
		clone.attrs = append(clone.attrs, attr)
	}
	return &clone
}

// WithGroup dots later keys under name. Perapera never nests groups.
func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// consoleValue quotes values that would break the key=value layout.
func consoleValue(v slog.Value) string {
	var s string
	if err, ok := v.Any().(error); ok && v.Kind() == slog.KindAny {
		s = err.Error()
	} else {
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
