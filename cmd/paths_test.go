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

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreddyVRetro/etherdfs-go/cfg"
)

func TestResolveFilePath_ExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	resolved, err := resolveFilePath("~/logs/etherdfsd.log", "logging.file-path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs/etherdfsd.log"), resolved)
}

func TestResolveFilePath_LeavesAbsolutePathAlone(t *testing.T) {
	resolved, err := resolveFilePath("/var/log/etherdfsd.log", "logging.file-path")
	require.NoError(t, err)
	assert.Equal(t, "/var/log/etherdfsd.log", resolved)
}

func TestResolveConfigPaths_SkipsEmptyLogFile(t *testing.T) {
	c := &cfg.Config{}
	require.NoError(t, resolveConfigPaths(c))
	assert.Empty(t, c.Logging.FilePath)
}

func TestResolveConfigPaths_ExpandsLogFile(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	c := &cfg.Config{Logging: cfg.LoggingConfig{FilePath: "~/etherdfsd.log"}}
	require.NoError(t, resolveConfigPaths(c))
	assert.Equal(t, cfg.ResolvedPath(filepath.Join(home, "etherdfsd.log")), c.Logging.FilePath)
}
