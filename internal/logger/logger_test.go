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
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var textInfoPattern = regexp.MustCompile(`^time="[a-zA-Z0-9/:. ]{26}" severity=INFO message="hello"`)
var jsonInfoPattern = regexp.MustCompile(`^\{"timestamp":\{"seconds":\d{1,10},"nanos":\d{1,9}\},"severity":"INFO","message":"hello"\}`)

func TestHandler_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	h := newHandlerFactory("").createHandler(&buf, lv, "text")
	l := slog.New(h)

	l.Info("hello")
	assert.Regexp(t, textInfoPattern, buf.String())
}

func TestHandler_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	h := newHandlerFactory("").createHandler(&buf, lv, "json")
	l := slog.New(h)

	l.Info("hello")
	assert.Regexp(t, jsonInfoPattern, buf.String())
}

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	lv.Set(LevelWarning)
	h := newHandlerFactory("").createHandler(&buf, lv, "text")
	l := slog.New(h)

	l.Info("hello")
	assert.Empty(t, buf.String(), "INFO must be filtered out when the level is WARNING")

	l.Warn("uh oh")
	assert.Contains(t, buf.String(), "severity=WARNING")
}

func TestSeverityToLevel(t *testing.T) {
	assert.Equal(t, LevelTrace, severityToLevel("TRACE"))
	assert.Equal(t, LevelError+1, severityToLevel("OFF"))
	assert.Equal(t, LevelInfo, severityToLevel("unknown"))
}
