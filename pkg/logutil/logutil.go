// Package logutil sets up the process-wide slog logger.
//
// Diagnostics go to stderr. The text format prints one line per record,
// prefixed with the program name the way classic Unix tools do:
//
//	procs-need-restart: warning: path too long, skipping pid=812 path=/opt/...
//
// The json format uses slog's JSON handler unchanged.
package logutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Prog is the prefix of every text log line.
const Prog = "procs-need-restart"

// Format selects the log encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json" (case-insensitive); empty is text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("logutil: unknown log format %q", s)
}

// Setup installs a logger writing to w as slog's default and returns it.
// Debug records are dropped unless debug is set.
func Setup(w io.Writer, debug bool, format Format) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		h = NewPrefixHandler(w, Prog, level)
	}

	l := slog.New(h)
	slog.SetDefault(l)
	return l
}

// PrefixHandler renders "<prefix>: [<level>: ]<msg> key=value ...". The
// level is omitted for info records.
type PrefixHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	prefix string
	level  slog.Leveler

	attrs  string // preformatted " key=value" pairs from WithAttrs
	groups string // "a.b." from WithGroup
}

func NewPrefixHandler(w io.Writer, prefix string, level slog.Leveler) *PrefixHandler {
	return &PrefixHandler{mu: &sync.Mutex{}, w: w, prefix: prefix, level: level}
}

func (h *PrefixHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *PrefixHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(h.prefix)
	b.WriteString(": ")
	if name := levelName(r.Level); name != "" {
		b.WriteString(name)
		b.WriteString(": ")
	}
	b.WriteString(r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.groups, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *PrefixHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	for _, a := range attrs {
		appendAttr(&b, h.groups, a)
	}
	h2 := *h
	h2.attrs += b.String()
	return &h2
}

func (h *PrefixHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups += name + "."
	return &h2
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warning"
	case l >= slog.LevelInfo:
		return ""
	}
	return "debug"
}

func appendAttr(b *strings.Builder, groups string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		g := groups
		if a.Key != "" {
			g += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, g, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(groups)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(quote(a.Value.String()))
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
