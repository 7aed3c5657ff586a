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

package dispatch

import "strings"

// stripDrivePrefix removes a leading "D:" (drive letter + colon) from path,
// per spec.md §4.E "Path normalization before every path-bearing request:
// strip the leading 'D:' (two bytes), send only the remainder."
func stripDrivePrefix(path string) string {
	if len(path) >= 2 && path[1] == ':' {
		return path[2:]
	}
	return path
}

// hasWildcard reports whether path contains a DOS wildcard character,
// used by RENAME and OPEN/CREATE to reject ambiguous targets locally
// (spec.md §4.E).
func hasWildcard(path string) bool {
	return strings.ContainsAny(path, "*?")
}

// normalizeFCBName renders name (an 8.3 style string, optionally
// dot-separated) into the 11-byte space-padded FCB layout of spec.md §3
// "FCB-style name normalization (11 bytes: 8 name + 3 extension,
// space-padded, dot-separated in input)".
func normalizeFCBName(name string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}

	base, ext, hasExt := strings.Cut(strings.ToUpper(name), ".")
	if len(base) > 8 {
		base = base[:8]
	}
	copy(out[0:8], base)

	if hasExt {
		if len(ext) > 3 {
			ext = ext[:3]
		}
		copy(out[8:11], ext)
	}
	return out
}
