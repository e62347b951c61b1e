package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/muesli/termenv"
	"go.trai.ch/bundle/internal/ui/output"
	"go.trai.ch/bundle/internal/ui/style"
)

// levelStyle is how one severity is printed.
type levelStyle struct {
	prefix string
	color  string
}

// styleFor picks the prefix and color of a record. Warnings and errors
// carry a marker so they stand out in install output.
func styleFor(level slog.Level) levelStyle {
	switch {
	case level >= slog.LevelError:
		return levelStyle{prefix: style.Cross + " ", color: string(style.Red)}
	case level >= slog.LevelWarn:
		return levelStyle{prefix: style.Warning + " ", color: string(style.Yellow)}
	case level >= slog.LevelInfo:
		return levelStyle{color: string(style.Green)}
	default:
		return levelStyle{color: string(style.Slate)}
	}
}

// PrettyHandler is a slog.Handler printing one colored line per record,
// followed by its attributes as key=value pairs.
type PrettyHandler struct {
	out    *termenv.Output
	level  slog.Leveler
	prefix string
	attrs  []string
}

// NewPrettyHandler creates a PrettyHandler writing to w, or to stderr when w
// is nil.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}
	h := &PrettyHandler{out: output.New(w), level: slog.LevelInfo}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

// Enabled implements slog.Handler.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	ls := styleFor(r.Level)

	var b strings.Builder
	b.WriteString(ls.prefix)
	b.WriteString(r.Message)
	for _, kv := range h.attrs {
		b.WriteByte(' ')
		b.WriteString(kv)
	}
	r.Attrs(func(attr slog.Attr) bool {
		b.WriteByte(' ')
		b.WriteString(h.pair(attr))
		return true
	})

	line := h.out.String(b.String()).Foreground(termenv.RGBColor(ls.color))
	_, err := h.out.WriteString(line.String() + "\n")
	return err
}

// WithAttrs implements slog.Handler.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, attr := range attrs {
		next.attrs = append(next.attrs, h.pair(attr))
	}
	return next
}

// WithGroup implements slog.Handler. Nested groups join with dots.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = h.prefix + name + "."
	return next
}

func (h *PrettyHandler) clone() *PrettyHandler {
	return &PrettyHandler{
		out:    h.out,
		level:  h.level,
		prefix: h.prefix,
		attrs:  slices.Clone(h.attrs),
	}
}

func (h *PrettyHandler) pair(attr slog.Attr) string {
	return h.prefix + attr.Key + "=" + attr.Value.String()
}
