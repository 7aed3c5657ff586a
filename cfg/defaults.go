// Copyright 2024 Google LLC
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

// DefaultConfig returns a Config with every field set to the value
// etherdfsd uses when neither a config file nor a flag overrides it.
func DefaultConfig() Config {
	return Config{
		AppName: "etherdfsd",
		Peer:    PeerConfig{MAC: MACAddress{Auto: true}},
		Logging: GetDefaultLoggingConfig(),
	}
}

// GetDefaultLoggingConfig returns the default logging configuration used
// during application startup, before any config file or flag has been
// parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "text",
		LogRotate: LogRotateConfig{
			MaxFileSizeMb:   10,
			BackupFileCount: 2,
			Compress:        true,
		},
	}
}

// DefaultMaxTransactionAttempts is the hard cap on transmit attempts per
// transaction, per spec.md §4.C.
const DefaultMaxTransactionAttempts = 5

// DefaultAttemptTimeoutTicks is the number of 1-tick-resolution ticks the
// transaction engine waits before giving up on one attempt, per spec.md
// §4.C ("≈ 100 ms on the reference platform").
const DefaultAttemptTimeoutTicks = 2
