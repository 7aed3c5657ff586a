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
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// LogSeverity represents the logging severity and can accept the following
// values: "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF".
type LogSeverity string

// Constants for all supported log severities.
const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

// severityRanking maps each level to an integer for comparison.
var severityRanking = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity %q: must be one of TRACE, DEBUG, INFO, WARNING, ERROR, OFF", text)
	}
	*l = level
	return nil
}

// Rank returns the integer representation of the severity rank, used to
// decide whether a given log line should be emitted. Returns -1 for an
// unrecognized severity (should not happen post-validation).
func (l LogSeverity) Rank() int {
	if rank, ok := severityRanking[l]; ok {
		return rank
	}
	return -1
}

// MACAddress is a 6-byte link-layer address, accepted in the config either
// as a colon-separated hex string ("AA:BB:CC:DD:EE:FF") or the literal
// "auto", meaning the peer is to be learned from the first DISKSPACE reply
// (spec.md §3 "Peer address").
type MACAddress struct {
	Addr [6]byte
	Auto bool
}

// Broadcast is the address used to solicit the first reply during
// auto-discovery.
var Broadcast = MACAddress{Addr: [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}}

func (m *MACAddress) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if strings.EqualFold(s, "auto") || s == "" {
		*m = MACAddress{Auto: true}
		return nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return fmt.Errorf("invalid MAC address %q: expected 6 colon-separated hex octets or \"auto\"", s)
	}
	var addr [6]byte
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return fmt.Errorf("invalid MAC address %q: octet %d: %w", s, i, err)
		}
		addr[i] = byte(v)
	}
	*m = MACAddress{Addr: addr}
	return nil
}

func (m MACAddress) String() string {
	if m.Auto {
		return "auto"
	}
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		m.Addr[0], m.Addr[1], m.Addr[2], m.Addr[3], m.Addr[4], m.Addr[5])
}

// DriveLetter is a single uppercase drive letter, A..Z, stored as the
// 0-based index used throughout spec.md §3 ("Drive map").
type DriveLetter byte

func (d *DriveLetter) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	if len(s) != 1 || s[0] < 'A' || s[0] > 'Z' {
		return fmt.Errorf("invalid drive letter %q: expected a single letter A-Z", text)
	}
	*d = DriveLetter(s[0] - 'A')
	return nil
}

func (d DriveLetter) String() string {
	return string(rune('A' + d))
}

// DriveMapping is one "L=R" entry of the config's drive list: local drive L
// is redirected to remote drive R on the peer (spec.md §3 "Drive map").
type DriveMapping struct {
	Local  DriveLetter
	Remote DriveLetter
}

func (dm *DriveMapping) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid drive mapping %q: expected LOCAL=REMOTE, e.g. E=C", s)
	}
	var local, remote DriveLetter
	if err := local.UnmarshalText([]byte(parts[0])); err != nil {
		return fmt.Errorf("invalid drive mapping %q: %w", s, err)
	}
	if err := remote.UnmarshalText([]byte(parts[1])); err != nil {
		return fmt.Errorf("invalid drive mapping %q: %w", s, err)
	}
	dm.Local, dm.Remote = local, remote
	return nil
}

func (dm DriveMapping) String() string {
	return fmt.Sprintf("%s=%s", dm.Local, dm.Remote)
}

// ResolvedPath is a non-empty, OS-native file path. Unlike gcsfuse's
// ResolvedPath this module has no parent-process-relative resolution to do
// (there is no daemonized-child CWD problem beyond what jacobsa/daemonize
// already solves), so it is kept as a thin distinct type purely so config
// decode hooks can target it specifically.
type ResolvedPath string

func (p *ResolvedPath) UnmarshalText(text []byte) error {
	*p = ResolvedPath(strings.TrimSpace(string(text)))
	return nil
}

// validSeverities returns the accepted severity names in sorted order.
func validSeverities() []string {
	keys := make([]string, 0, len(severityRanking))
	for k := range severityRanking {
		keys = append(keys, string(k))
	}
	slices.Sort(keys)
	return keys
}
