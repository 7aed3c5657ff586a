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

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full configuration surface of etherdfsd (spec.md §6
// "Configuration surface"), bound from a YAML config file and CLI flags via
// viper, the way gcsfuse's cfg.Config is bound.
type Config struct {
	AppName string `yaml:"app-name"`

	// Drives lists the local→remote drive mappings to install. At least one
	// is required unless Unload is set.
	Drives []DriveMapping `yaml:"drives"`

	Peer    PeerConfig    `yaml:"peer"`
	Link    LinkConfig    `yaml:"link"`
	Logging LoggingConfig `yaml:"logging"`
	Debug   DebugConfig   `yaml:"debug"`

	// Unload tears the redirector down instead of installing it. Mutually
	// exclusive with a non-empty Drives list (spec.md §6).
	Unload bool `yaml:"unload"`

	// Foreground runs the engine in this process instead of daemonizing.
	Foreground bool `yaml:"foreground"`
}

// PeerConfig describes how to find the remote peer (spec.md §3 "Peer
// address").
type PeerConfig struct {
	// MAC is either an explicit link-layer address or MACAddress{Auto: true},
	// in which case the peer is learned from the first DISKSPACE reply.
	MAC MACAddress `yaml:"mac"`
}

// LinkConfig describes the local link-layer driver to bind to (spec.md §6
// "explicit link-driver interrupt number" — the modern analog is a network
// interface name).
type LinkConfig struct {
	Interface        string `yaml:"interface"`
	ChecksumDisabled bool   `yaml:"checksum-disabled"`
}

// LoggingConfig configures internal/logger.
type LoggingConfig struct {
	Severity  LogSeverity     `yaml:"severity"`
	Format    string          `yaml:"format"` // "text" or "json"
	FilePath  ResolvedPath    `yaml:"file-path"`
	LogRotate LogRotateConfig `yaml:"log-rotate"`
}

// LogRotateConfig configures lumberjack rotation of the log file.
type LogRotateConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

// DebugConfig enables verbose, non-production-default behavior.
type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`
	TraceFrames              bool `yaml:"trace-frames"`
}

// BindFlags registers the CLI flags and binds each to its viper config key,
// mirroring gcsfuse's cfg.BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	type binding struct {
		key  string
		name string
	}

	flagSet.StringP("app-name", "", "etherdfsd", "Application name recorded in logs.")
	flagSet.StringSliceP("drive", "d", nil, "Drive mapping LOCAL=REMOTE, repeatable (e.g. -d E=C).")
	flagSet.StringP("peer-mac", "", "auto", "Peer link-layer address, or \"auto\" to learn it.")
	flagSet.StringP("iface", "i", "", "Network interface to bind the raw socket to.")
	flagSet.BoolP("checksum-disabled", "", false, "Disable the per-frame rotating checksum.")
	flagSet.BoolP("unload", "u", false, "Tear down a previously installed redirector instead of installing.")
	flagSet.BoolP("foreground", "f", false, "Run in this process instead of daemonizing.")
	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "Minimum log severity to emit.")
	flagSet.StringP("log-format", "", "text", "Log line format: text or json.")
	flagSet.StringP("log-file", "", "", "Path to the log file (rotated via lumberjack); empty logs to stdout.")
	flagSet.BoolP("debug-invariants", "", false, "Sets debug.exit-on-invariant-violation; no component reads this setting.")
	flagSet.BoolP("debug-trace-frames", "", false, "Sets debug.trace-frames; no component reads this setting and no frame dumps are logged.")

	bindings := []binding{
		{"app-name", "app-name"},
		{"drives", "drive"},
		{"peer.mac", "peer-mac"},
		{"link.interface", "iface"},
		{"link.checksum-disabled", "checksum-disabled"},
		{"unload", "unload"},
		{"foreground", "foreground"},
		{"logging.severity", "log-severity"},
		{"logging.format", "log-format"},
		{"logging.file-path", "log-file"},
		{"debug.exit-on-invariant-violation", "debug-invariants"},
		{"debug.trace-frames", "debug-trace-frames"},
	}

	for _, b := range bindings {
		if err := viper.BindPFlag(b.key, flagSet.Lookup(b.name)); err != nil {
			return err
		}
	}

	return nil
}
