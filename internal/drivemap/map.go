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

// Package drivemap implements component D: the 26-slot local-to-remote
// drive index mapping of spec.md §4.D, immutable after install.
package drivemap

import (
	"fmt"
	"sort"

	"github.com/jacobsa/syncutil"
)

// NumLetters is the number of drive letters, A through Z.
const NumLetters = 26

// unmapped marks a slot with no remote drive assigned.
const unmapped = -1

// Map is the local drive letter -> remote drive letter table of spec.md
// §4.D. It uses syncutil.InvariantMutex, the same guard the teacher places
// on any struct whose fields must satisfy an invariant across every
// read/write, to enforce "indices set once at startup, never mutated at
// runtime" (spec.md §3 "Drive map").
type Map struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	remote [NumLetters]int

	// GUARDED_BY(mu)
	sealed bool
}

// New returns an empty drive map, open for MapLocal calls until Seal is
// called.
func New() *Map {
	m := &Map{}
	for i := range m.remote {
		m.remote[i] = unmapped
	}
	m.mu = syncutil.NewInvariantMutex(m.checkInvariants)
	return m
}

func (m *Map) checkInvariants() {
	for _, r := range m.remote {
		if r != unmapped && (r < 0 || r >= NumLetters) {
			panic("drivemap: remote index out of range")
		}
	}
}

// MapLocal records local -> remote, rejecting a local slot that is already
// mapped (spec.md §4.D: "rejects if local slot already mapped") or a map
// that has already been sealed (spec.md §3: "immutable after install").
func (m *Map) MapLocal(local, remote byte) error {
	if local >= NumLetters {
		return fmt.Errorf("drivemap: local drive %d out of range", local)
	}
	if remote >= NumLetters {
		return fmt.Errorf("drivemap: remote drive %d out of range", remote)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return fmt.Errorf("drivemap: map is sealed, cannot map local drive %c", 'A'+local)
	}
	if m.remote[local] != unmapped {
		return fmt.Errorf("drivemap: local drive %c already mapped", 'A'+local)
	}
	m.remote[local] = int(remote)
	return nil
}

// Seal freezes the map; subsequent MapLocal calls fail. Install calls this
// once all configured drive mappings have been recorded (spec.md §4.G step
// 2-3).
func (m *Map) Seal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sealed = true
}

// Resolve returns the remote drive index mapped to local, and whether one
// exists. An unmapped local drive means "forward to the host's prior
// handler unchanged" (spec.md §4.D).
func (m *Map) Resolve(local byte) (remote byte, ok bool) {
	if local >= NumLetters {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.remote[local]
	if r == unmapped {
		return 0, false
	}
	return byte(r), true
}

// Enumerate returns every mapped local drive letter in ascending order,
// used on install to seed current-directory structures and on uninstall to
// clear them (spec.md §4.D).
func (m *Map) Enumerate() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []byte
	for i, r := range m.remote {
		if r != unmapped {
			out = append(out, byte(i))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
