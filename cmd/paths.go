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
	"strings"

	"github.com/FreddyVRetro/etherdfs-go/cfg"
	"github.com/FreddyVRetro/etherdfs-go/internal/logger"
)

// resolveFilePath expands a leading "~" against the user's home directory
// and logs when it changes the value, mirroring gcsfuse's
// resolveFilePath/resolvePathForTheFlagInContext pair that resolves
// flag-supplied paths before they are used.
func resolveFilePath(path, configKey string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path, err
	}

	resolved := filepath.Join(home, strings.TrimPrefix(path, "~"))
	logger.Infof("resolved %s from %q to %q", configKey, path, resolved)
	return resolved, nil
}

// resolveConfigPaths resolves every user-suppliable path field in c in
// place: the log file, if one was configured. Unlike gcsfuse there is no
// parent/child working-directory split to account for beyond what
// daemonize.Run itself already provides.
func resolveConfigPaths(c *cfg.Config) error {
	if c.Logging.FilePath == "" {
		return nil
	}
	resolved, err := resolveFilePath(string(c.Logging.FilePath), "logging.file-path")
	if err != nil {
		return err
	}
	c.Logging.FilePath = cfg.ResolvedPath(resolved)
	return nil
}
