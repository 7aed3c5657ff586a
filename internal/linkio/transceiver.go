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

package linkio

import "context"

// Transceiver is the external link-layer contract of spec.md §4.B:
// transmit is synchronous and may fail silently (failures manifest as a
// missing reply, not an error return the dispatcher inspects); Run drives
// the asynchronous receive upcall into buf until ctx is cancelled.
type Transceiver interface {
	// LocalMAC returns the link-layer address obtained from the driver at
	// startup (spec.md §3 "Local address").
	LocalMAC() [6]byte

	// Transmit sends frame as-is. The dispatcher does not inspect the
	// result; a transmit failure is indistinguishable from a dropped frame
	// and is handled by the transaction engine's retry loop.
	Transmit(frame []byte) error

	// Run feeds every received frame whose EtherType matches ours into buf
	// via the two-phase TryClaim/Deliver upcall, until ctx is cancelled or
	// an unrecoverable driver error occurs.
	Run(ctx context.Context, buf *ReceiveBuffer) error

	// Close releases the underlying link-driver registration (spec.md §4.G
	// teardown: "release link-driver registration").
	Close() error
}
