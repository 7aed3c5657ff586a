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

// HasDrives reports whether the config names at least one drive mapping.
func HasDrives(c *Config) bool {
	return len(c.Drives) > 0
}

// LocalDrives returns the set of local drive letters the config maps,
// used to seed the redirector's drive map at install time (spec.md §4.D).
func LocalDrives(c *Config) []DriveLetter {
	out := make([]DriveLetter, 0, len(c.Drives))
	for _, d := range c.Drives {
		out = append(out, d.Local)
	}
	return out
}
