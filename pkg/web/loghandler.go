package web

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// LogHandler returns a slog.Handler that feeds records at or above level
// into the dashboard log. Combine it with the console handler through
// log.Options.Extra.
func (s *Server) LogHandler(level slog.Leveler) slog.Handler {
	return &logHandler{server: s, level: level}
}

type logHandler struct {
	server *Server
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

func (h *logHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *logHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		attrs[key] = a.Value.String()
		return true
	})

	// the hubs log through the dashboard too; feeding those back would loop
	if strings.HasPrefix(attrs["component"], "hub.") {
		return nil
	}

	at := r.Time
	if at.IsZero() {
		at = time.Now()
	}
	h.server.AddLog(LogEntry{
		Time:    at.Format("15:04:05"),
		Level:   strings.ToLower(r.Level.String()),
		Message: r.Message,
		Attrs:   attrs,
	})
	return nil
}

func (h *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *logHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	c.group = name
	return &c
}
