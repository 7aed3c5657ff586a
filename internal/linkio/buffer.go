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

// Package linkio implements components B and F of the redirector: raw
// link-layer frame transmit/receive (spec.md §4.B) and the single-slot
// receive buffer shared between the asynchronous receive callback and the
// foreground transaction engine (spec.md §4.F).
package linkio

import "sync/atomic"

// ReceiveBuffer is the single, fixed-size region with a sentinel length
// word described in spec.md §3 "Receive buffer". It forms a 3-value
// protocol between a producer (the async receive callback) and a single
// consumer (the foreground transaction engine):
//
//	0          empty, callback may claim          (written by consumer)
//	-N         reserved for N bytes, filling       (written by callback)
//	+N         frame of N bytes ready to read      (written by callback)
//
// The sentinel is a single atomic word so both sides can interpret it with
// one atomic read, per spec.md §4.F ("the foreground must interpret the
// sentinel atomically").
type ReceiveBuffer struct {
	data     []byte
	sentinel atomic.Int32
}

// NewReceiveBuffer allocates a receive buffer of the given capacity, which
// must be at least wire.MinFrameBytes and large enough for the largest
// frame the link driver may offer.
func NewReceiveBuffer(capacity int) *ReceiveBuffer {
	return &ReceiveBuffer{data: make([]byte, capacity)}
}

// Cap returns the buffer's capacity in bytes.
func (b *ReceiveBuffer) Cap() int { return len(b.data) }

// Reset clears the sentinel to 0 (empty). Only the consumer calls this: on
// starting to wait for a reply, or after rejecting an invalid one
// (spec.md §3 invariant: "the consumer sets 0 before sending").
func (b *ReceiveBuffer) Reset() {
	b.sentinel.Store(0)
}

// TryClaim is the link driver's first upcall phase (spec.md §4.B): it
// offers a frame of length n and asks for a buffer to copy it into. TryClaim
// returns the buffer to copy into and true if the sentinel is currently 0
// and n fits in the buffer's capacity; otherwise it returns (nil, false),
// meaning "drop this frame". On acceptance the sentinel is set to -n to
// mark the slot reserved.
func (b *ReceiveBuffer) TryClaim(n int) ([]byte, bool) {
	if n <= 0 || n > len(b.data) {
		return nil, false
	}
	if !b.sentinel.CompareAndSwap(0, int32(-n)) {
		return nil, false
	}
	return b.data[:n], true
}

// Deliver is the link driver's second upcall phase: the copy into the
// buffer TryClaim returned is complete, so the sentinel flips to +n,
// positive, making the frame visible to the consumer.
func (b *ReceiveBuffer) Deliver(n int) {
	b.sentinel.Store(int32(n))
}

// Poll returns the delivered frame and true if the sentinel is currently
// positive. It never blocks; callers loop on it (spec.md §4.C step 5b).
func (b *ReceiveBuffer) Poll() ([]byte, bool) {
	n := b.sentinel.Load()
	if n <= 0 {
		return nil, false
	}
	return b.data[:n], true
}
