package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

// prettyHandler renders one line per record:
//
//	2026-03-01 10:00:00 WARN [STREAM_TRUNCATED] streaming[42]: message key=value
//
// component, book_id and alert are lifted out of the key=value tail.
type prettyHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool

	// Fields bound through WithAttrs. tail is already rendered.
	component string
	bookID    string
	alert     string
	tail      string
	prefix    string
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	line := *h
	var tail strings.Builder
	tail.WriteString(h.tail)
	record.Attrs(func(attr slog.Attr) bool {
		line.absorb(&tail, h.prefix, attr)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.Grow(96 + tail.Len())
	b.WriteString(ts.Local().Format(consoleTimeLayout))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteByte(' ')
	if line.alert != "" {
		b.WriteString("[" + strings.ToUpper(line.alert) + "] ")
	}
	if line.component != "" {
		b.WriteString(line.component)
		if line.bookID != "" {
			b.WriteString("[" + line.bookID + "]")
		}
		b.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteString(tail.String())
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	var tail strings.Builder
	tail.WriteString(h.tail)
	for _, attr := range attrs {
		next.absorb(&tail, h.prefix, attr)
	}
	next.tail = tail.String()
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// absorb lifts the headline fields into h and renders the rest into tail.
// Headline keys are lifted even inside groups; the first value seen wins.
func (h *prettyHandler) absorb(tail *strings.Builder, prefix string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix += attr.Key + "."
		}
		for _, member := range value.Group() {
			h.absorb(tail, groupPrefix, member)
		}
		return
	}
	var slot *string
	switch attr.Key {
	case FieldComponent:
		slot = &h.component
	case FieldBookID:
		slot = &h.bookID
	case FieldAlert:
		slot = &h.alert
	}
	if slot != nil {
		if *slot == "" {
			*slot = plainValue(value)
		}
		return
	}
	key := prefix + attr.Key
	if key == "" {
		return
	}
	tail.WriteByte(' ')
	tail.WriteString(key)
	tail.WriteByte('=')
	tail.WriteString(quoted(plainValue(value)))
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().Local().Format(consoleTimeLayout)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoted(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool {
		return r == '=' || r == '"' || unicode.IsSpace(r) || !unicode.IsPrint(r)
	}) {
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
