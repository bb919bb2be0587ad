// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

// Logger is the leveled key-value logger used across packages.
type Logger = *slog.Logger

var rootHandler atomic.Value // slog.Handler

func init() {
	rootHandler.Store(slog.Handler(discardHandler{}))
}

// Init sets the process-wide log output and verbosity.
// Callers (normally cmd/) invoke it once at startup; package-level loggers
// created earlier via WithContext pick up the new handler automatically.
func Init(w io.Writer, lvl slog.Level) {
	rootHandler.Store(slog.Handler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// WithContext returns a logger carrying the given key-value context.
// Typical use: var logger = log.WithContext("pkg", "vault")
func WithContext(args ...any) Logger {
	return slog.New(dynamicHandler{}).With(args...)
}

// dynamicHandler delegates to whatever handler Init installed, so loggers
// bound at package init time still honor the runtime configuration.
type dynamicHandler struct {
	attrs []slog.Attr
}

func (h dynamicHandler) current() slog.Handler {
	handler := rootHandler.Load().(slog.Handler)
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	return handler
}

func (h dynamicHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.current().Enabled(ctx, lvl)
}

func (h dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return dynamicHandler{attrs: merged}
}

func (h dynamicHandler) WithGroup(name string) slog.Handler {
	return h
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
