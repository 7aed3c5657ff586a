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

// RealClock is the Clock the redirector installs in production: its
// AttemptTimeout deadlines are wall-clock, so a transaction engine built
// with RealClock behaves exactly like the legacy two-tick retry loop it
// replaces (spec.md §7 Open Question 2).
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// After notifies on the returned channel once d has elapsed.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
