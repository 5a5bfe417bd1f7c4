package slogpretty

import (
	"context"
	"encoding/json"
	"io"
	stdLog "log"
	"log/slog"
	"slices"

	"github.com/fatih/color"
)

type PrettyHandlerOptions struct {
	SlogOpts *slog.HandlerOptions
	// NoColor disables escape sequences, for output that is not a terminal
	NoColor bool
}

type PrettyHandler struct {
	opts PrettyHandlerOptions
	slog.Handler
	l      *stdLog.Logger
	attrs  []slog.Attr
	groups []string
}

func (opts PrettyHandlerOptions) NewPrettyHandler(out io.Writer) *PrettyHandler {
	return &PrettyHandler{
		opts:    opts,
		Handler: slog.NewJSONHandler(out, opts.SlogOpts),
		l:       stdLog.New(out, "", 0),
	}
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = h.paint(color.FgMagenta, level)
	case slog.LevelInfo:
		level = h.paint(color.FgBlue, level)
	case slog.LevelWarn:
		level = h.paint(color.FgYellow, level)
	case slog.LevelError:
		level = h.paint(color.FgRed, level)
	}

	fields := make(map[string]interface{}, r.NumAttrs()+len(h.attrs))

	for _, a := range h.attrs {
		addField(fields, a)
	}

	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	for _, a := range nest(h.groups, attrs) {
		addField(fields, a)
	}

	var b []byte
	var err error

	if len(fields) > 0 {
		b, err = json.MarshalIndent(fields, "", "  ")
		if err != nil {
			return err
		}
	}

	timeStr := r.Time.Format("[15:04:05.000]")
	msg := h.paint(color.FgCyan, r.Message)

	h.l.Println(
		timeStr,
		level,
		msg,
		h.paint(color.FgWhite, string(b)),
	)

	return nil
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PrettyHandler{
		opts:    h.opts,
		Handler: h.Handler,
		l:       h.l,
		attrs:   append(slices.Clip(h.attrs), nest(h.groups, attrs)...),
		groups:  h.groups,
	}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &PrettyHandler{
		opts:    h.opts,
		Handler: h.Handler.WithGroup(name),
		l:       h.l,
		attrs:   h.attrs,
		groups:  append(slices.Clip(h.groups), name),
	}
}

// nest wraps attrs into the open groups, outermost first
func nest(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	for i := len(groups) - 1; i >= 0; i-- {
		attrs = []slog.Attr{{Key: groups[i], Value: slog.GroupValue(attrs...)}}
	}
	return attrs
}

// addField puts a into fields, a group becomes a nested object merged with one of the same key
func addField(fields map[string]interface{}, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() != slog.KindGroup {
		fields[a.Key] = a.Value.Any()
		return
	}

	group := a.Value.Group()
	if len(group) == 0 {
		return
	}
	if a.Key == "" {
		for _, ga := range group {
			addField(fields, ga)
		}
		return
	}
	sub, ok := fields[a.Key].(map[string]interface{})
	if !ok {
		sub = make(map[string]interface{}, len(group))
		fields[a.Key] = sub
	}
	for _, ga := range group {
		addField(sub, ga)
	}
}

func (h *PrettyHandler) paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	if h.opts.NoColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c.Sprint(s)
}
