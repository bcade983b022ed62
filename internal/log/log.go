// Package log provides logging output for the kernel and its tools.
package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"runtime"
	"sync"
	"time"
)

var (
	// DefaultLogger returns a new formatted logger writing to standard error. Components grab
	// one during startup and cache the result.
	DefaultLogger = func() *Logger { return NewFormattedLogger(os.Stderr) }

	// SetDefault sets the log/slog package default logger. It does not change what
	// DefaultLogger returns.
	SetDefault = slog.SetDefault

	// LogLevel holds the log level. It can be changed at runtime.
	LogLevel = &slog.LevelVar{}
)

// NewFormattedLogger returns a logger that uses a Handler to format and write records to a writer.
func NewFormattedLogger(out io.Writer) *Logger {
	return slog.New(NewHandler(out))
}

// Handler implements slog.Handler. It writes one line per record: a timestamp, the level, the
// source location, the message, and any attributes as key=value pairs.
type Handler struct {
	mut *sync.Mutex // Synchronizes writer.
	out io.Writer

	opts  *slog.HandlerOptions
	group string
	attrs []Attr
}

// Options for log handlers.
var Options = &slog.HandlerOptions{
	AddSource:   true,
	Level:       LogLevel,
	ReplaceAttr: func(_ []string, attr Attr) Attr { return attr },
}

// NewHandler creates and initializes a Handler with a writer.
func NewHandler(out io.Writer) *Handler {
	h := Handler{
		out:  out,
		mut:  new(sync.Mutex),
		opts: Options,
	}

	return &h
}

// Enabled returns true if the level is at or above the current logging level.
func (h *Handler) Enabled(_ context.Context, level Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle formats and writes a log record to the handler's writer.
func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	out := bytes.NewBuffer(make([]byte, 0, 256))

	if !rec.Time.IsZero() {
		fmt.Fprintf(out, "%s ", rec.Time.Format(time.RFC3339))
	}

	fmt.Fprintf(out, "%-5s ", rec.Level.String())

	if h.opts.AddSource && rec.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{rec.PC})
		f, _ := frames.Next()
		_, file := path.Split(f.File)
		fmt.Fprintf(out, "%s:%d ", file, f.Line)
	}

	fmt.Fprint(out, rec.Message)

	for _, a := range h.attrs {
		h.appendAttr(out, a, "")
	}

	rec.Attrs(func(attr Attr) bool {
		h.appendAttr(out, attr, "")
		return true
	})

	fmt.Fprintln(out)

	h.mut.Lock()
	defer h.mut.Unlock()

	_, err := h.out.Write(out.Bytes())

	return err
}

// WithGroup returns a handler that prefixes attribute keys with the group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	attrs := make([]Attr, len(h.attrs))
	copy(attrs, h.attrs)

	return &Handler{
		mut:   h.mut,
		out:   h.out,
		opts:  h.opts,
		attrs: attrs,
		group: name,
	}
}

// WithAttrs returns a handler that combines the handler's attributes and those in the argument.
func (h *Handler) WithAttrs(attrs []Attr) slog.Handler {
	as := make([]Attr, 0, len(h.attrs)+len(attrs))
	as = append(as, h.attrs...)
	as = append(as, attrs...)

	return &Handler{
		mut:   h.mut,
		out:   h.out,
		opts:  h.opts,
		attrs: as,
		group: h.group,
	}
}

func (h *Handler) appendAttr(out io.Writer, attr slog.Attr, prefix string) {
	attr.Value = attr.Value.Resolve()
	attr = h.opts.ReplaceAttr([]string{h.group}, attr)

	if attr.Equal(Attr{}) {
		return
	}

	key, value := attr.Key, attr.Value

	if prefix == "" && h.group != "" {
		prefix = h.group
	}

	if prefix != "" && key != "" {
		key = prefix + "." + key
	}

	if value.Kind() == slog.KindGroup {
		for _, a := range value.Group() {
			h.appendAttr(out, a, key)
		}

		return
	}

	fmt.Fprintf(out, " %s=%v", key, value.Any())
}

// Loggable components accept a logger after construction.
type Loggable interface {
	WithLogger(*Logger)
}

type (
	Attr   = slog.Attr
	Level  = slog.Level
	Logger = slog.Logger
	Value  = slog.Value
)

var (
	String      = slog.String
	StringValue = slog.StringValue
	Int         = slog.Int
	Group       = slog.Group
	GroupValue  = slog.GroupValue
	Any         = slog.Any
	AnyValue    = slog.AnyValue
)

const (
	Debug = slog.LevelDebug
	Info  = slog.LevelInfo
	Warn  = slog.LevelWarn
	Error = slog.LevelError
)
