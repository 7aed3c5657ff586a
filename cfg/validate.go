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

package cfg

import "fmt"

const (
	// NoDrivesAndNotUnloadError is returned when neither a drive mapping nor
	// --unload was given; spec.md §6 requires "at least one drive mapping"
	// unless tearing down.
	NoDrivesAndNotUnloadError = "at least one drive mapping is required unless --unload is set"
	// DrivesAndUnloadError is returned when both are given; spec.md §6 calls
	// these mutually exclusive.
	DrivesAndUnloadError = "drive mappings and --unload are mutually exclusive"
)

func isValidLogRotateConfig(config *LogRotateConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be at least 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (retain all) or positive")
	}
	return nil
}

func isValidDrives(drives []DriveMapping) error {
	seenLocal := make(map[DriveLetter]bool, len(drives))
	for _, d := range drives {
		if seenLocal[d.Local] {
			return fmt.Errorf("local drive %s is mapped more than once", d.Local)
		}
		seenLocal[d.Local] = true
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid. Peer
// reachability and drive-already-in-use checks happen later, against live
// host/link state (spec.md §4.G steps 2 and 5), not here.
func ValidateConfig(config *Config) error {
	if config.Unload {
		if len(config.Drives) > 0 {
			return fmt.Errorf(DrivesAndUnloadError)
		}
		return nil
	}

	if len(config.Drives) == 0 {
		return fmt.Errorf(NoDrivesAndNotUnloadError)
	}

	if err := isValidDrives(config.Drives); err != nil {
		return fmt.Errorf("error parsing drives config: %w", err)
	}

	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	return nil
}
