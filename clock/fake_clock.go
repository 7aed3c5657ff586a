// Copyright 2025 Google LLC
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

package clock

import "time"

// FakeClock reports real wall-clock time from Now, and its After fires once
// WaitTime has elapsed, whatever duration is requested. The transaction
// Engine reads only Now, so an Engine built with a FakeClock times its
// attempts exactly as with RealClock; WaitTime has no effect on it. Use
// SimulatedClock when the timeline itself must be controlled.
type FakeClock struct {
	WaitTime time.Duration
}

// Now returns the current real time.
func (fc *FakeClock) Now() time.Time {
	return time.Now()
}

// After notifies on the returned channel once WaitTime has elapsed,
// regardless of the requested duration.
func (fc *FakeClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time)
	go func() {
		time.Sleep(fc.WaitTime)
		ch <- time.Now()
	}()
	return ch
}
