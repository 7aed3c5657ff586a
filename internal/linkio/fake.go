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

import (
	"context"
	"sync"
)

// FakeTransceiver is an in-memory Transceiver used by transaction- and
// dispatcher-level tests to script peer behavior (reply, drop, delay)
// without a real network interface, the way gcsfuse's fake GCS bucket lets
// fs tests run without real cloud credentials.
type FakeTransceiver struct {
	mu            sync.Mutex
	local         [6]byte
	sent          [][]byte
	onTransmit    func(frame []byte, buf *ReceiveBuffer)
	onTransmitBuf *ReceiveBuffer
	closed        bool
}

// NewFakeTransceiver creates a fake bound to localMAC. onTransmit, if set,
// is invoked synchronously from Transmit and may call buf.TryClaim/Deliver
// to simulate a reply arriving — tests use this to script drops, delays
// (by not calling Deliver at all), and checksum corruption.
func NewFakeTransceiver(localMAC [6]byte) *FakeTransceiver {
	return &FakeTransceiver{local: localMAC}
}

func (f *FakeTransceiver) LocalMAC() [6]byte { return f.local }

// SetOnTransmit installs the callback Run's caller uses to react to each
// transmitted frame. Because the real link driver's callback can fire
// "between any two operations of the foreground" but never concurrently
// with Transmit itself on a single-threaded host, this implementation
// invokes it inline — sufficient to exercise the transaction engine's
// validation and retry logic deterministically.
func (f *FakeTransceiver) SetOnTransmit(fn func(frame []byte, buf *ReceiveBuffer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTransmit = fn
}

// Sent returns copies of every frame handed to Transmit so far, in order.
func (f *FakeTransceiver) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

// Transmit records a copy of frame and, if a callback was installed with
// SetOnTransmit, invokes it with that copy and the receive buffer passed to
// Run (nil before Run is called). It never delivers into the buffer itself;
// the callback does that, typically via DeliverReply.
func (f *FakeTransceiver) Transmit(frame []byte) error {
	f.mu.Lock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	f.sent = append(f.sent, cp)
	onTransmit := f.onTransmit
	buf := f.onTransmitBuf
	f.mu.Unlock()

	if onTransmit != nil {
		onTransmit(cp, buf)
	}
	return nil
}

func (f *FakeTransceiver) Run(ctx context.Context, buf *ReceiveBuffer) error {
	f.mu.Lock()
	f.onTransmitBuf = buf
	f.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (f *FakeTransceiver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeTransceiver) receiveBuffer() *ReceiveBuffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onTransmitBuf
}

// DeliverReply simulates the link driver accepting and delivering frame as
// a received frame, via the same two-phase TryClaim/Deliver upcall the raw
// socket implementation uses. It is a no-op if Run has not been called yet
// or the sentinel is not currently empty (matching "drop" semantics).
func (f *FakeTransceiver) DeliverReply(frame []byte) bool {
	buf := f.receiveBuffer()
	if buf == nil {
		return false
	}
	dst, ok := buf.TryClaim(len(frame))
	if !ok {
		return false
	}
	copy(dst, frame)
	buf.Deliver(len(frame))
	return true
}
