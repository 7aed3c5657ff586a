// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// textTimeFormat renders a fixed-width 26-character timestamp, matching
// the text handler's "time=..." field.
const textTimeFormat = "2006/01/02 15:04:05.000000"

// handlerFactory builds text or JSON slog handlers sharing a mutex and a
// message prefix, the way gcsfuse's defaultLoggerFactory parameterizes its
// handlers per app name.
type handlerFactory struct {
	mu     sync.Mutex
	prefix string
}

func newHandlerFactory(prefix string) *handlerFactory {
	return &handlerFactory{prefix: prefix}
}

func (f *handlerFactory) createHandler(w io.Writer, level *slog.LevelVar, format string) slog.Handler {
	if format == "json" {
		return &etherdfsHandler{mu: &f.mu, w: w, level: level, prefix: f.prefix, json: true}
	}
	return &etherdfsHandler{mu: &f.mu, w: w, level: level, prefix: f.prefix}
}

// etherdfsHandler is a minimal slog.Handler rendering exactly the
// time/severity/message shape the redirector's log lines use, in either
// text or JSON form.
type etherdfsHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  *slog.LevelVar
	prefix string
	json   bool
	attrs  []slog.Attr
}

func (h *etherdfsHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *etherdfsHandler) Handle(_ context.Context, r slog.Record) error {
	sev := levelNames[r.Level]
	if sev == "" {
		sev = r.Level.String()
	}
	message := h.prefix + r.Message

	var extra strings.Builder
	appendAttr := func(a slog.Attr) bool {
		fmt.Fprintf(&extra, " %s=%v", a.Key, a.Value.Any())
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool { return appendAttr(a) })

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.json {
		_, err := fmt.Fprintf(h.w, "{\"timestamp\":{\"seconds\":%d,\"nanos\":%d},\"severity\":%q,\"message\":%q}%s\n",
			r.Time.Unix(), r.Time.Nanosecond(), sev, message, extra.String())
		return err
	}

	_, err := fmt.Fprintf(h.w, "time=%q severity=%s message=%q%s\n",
		r.Time.Format(textTimeFormat), sev, message, extra.String())
	return err
}

func (h *etherdfsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *etherdfsHandler) WithGroup(string) slog.Handler {
	return h
}
