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

// Stringify renders the config for a single structured log line at
// startup, the way gcsfuse logs its resolved mount config.
func Stringify(c *Config) string {
	s := fmt.Sprintf("app-name=%s peer.mac=%s link.interface=%s link.checksum-disabled=%t unload=%t drives=[",
		c.AppName, c.Peer.MAC, c.Link.Interface, c.Link.ChecksumDisabled, c.Unload)
	for i, d := range c.Drives {
		if i > 0 {
			s += " "
		}
		s += d.String()
	}
	return s + "]"
}
