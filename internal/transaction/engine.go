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

// Package transaction implements component C: the single-exchange,
// bounded-retry transport described in spec.md §4.C that turns the
// unreliable link layer in internal/linkio into a request/reply call the
// dispatcher can treat as synchronous.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FreddyVRetro/etherdfs-go/clock"
	"github.com/FreddyVRetro/etherdfs-go/internal/linkio"
	"github.com/FreddyVRetro/etherdfs-go/internal/wire"
)

// MaxAttempts and AttemptTimeout are the fixed retry budget of spec.md §4.C
// and §7: "a transaction has a hard upper bound of five attempts x two
// ticks ~= 500ms". Open Question 2 resolves the legacy "two ticks" as an
// explicit 100ms, driven by an injectable clock.Clock rather than a
// hardware timer.
const (
	MaxAttempts    = 5
	AttemptTimeout = 100 * time.Millisecond
)

// pollInterval bounds how often the engine re-checks the receive buffer's
// sentinel while waiting out an attempt; it is a busy-wait granularity, not
// part of the protocol, so it runs on wall-clock time regardless of which
// clock.Clock the engine was built with.
const pollInterval = time.Millisecond

// MinTxBufferBytes is the minimum transmission buffer size required by
// spec.md §3 ("Transmission buffer... >= 1090 bytes"), sized to hold the
// largest operation payload (a full READFIL/WRITEFIL chunk) plus header.
const MinTxBufferBytes = 1090

// ErrTimeout is returned when all MaxAttempts attempts elapse without a
// valid reply (spec.md §4.C step 6).
var ErrTimeout = errors.New("transaction: no reply after all attempts")

// Reply is the validated response to a single Exchange.
type Reply struct {
	Status  uint16
	Payload []byte
}

// Engine owns the transmission buffer, the receive buffer, the peer MAC and
// the sequence counter described in spec.md §3 and §4.F as "mutable global
// state" — grouped here into one object constructed once and passed by
// reference through the dispatcher, per spec.md §9.
//
// Engine is not safe for concurrent use: spec.md §4.F designates the
// transmission buffer, receive buffer consumer side and sequence counter as
// foreground-only, so only one Exchange may be in flight at a time.
type Engine struct {
	tx    linkio.Transceiver
	rb    *linkio.ReceiveBuffer
	clk   clock.Clock
	rec   Recorder

	txBuf           []byte
	checksumEnabled bool
	peerMAC         [6]byte
	sequence        byte
}

// New constructs an Engine bound to tx and its receive buffer. checksum
// enables the optional per-frame integrity check (spec.md §3). The peer MAC
// starts at broadcast; callers that already know the peer may set it with
// SetPeerMAC before issuing the first Exchange, otherwise the first
// learn-flagged Exchange performs discovery (spec.md §4.G step 5).
func New(tx linkio.Transceiver, rb *linkio.ReceiveBuffer, clk clock.Clock, checksum bool) *Engine {
	bufLen := MinTxBufferBytes
	if rb.Cap() > bufLen {
		bufLen = rb.Cap()
	}
	return &Engine{
		tx:              tx,
		rb:              rb,
		clk:             clk,
		rec:             NopRecorder{},
		txBuf:           make([]byte, bufLen),
		checksumEnabled: checksum,
		peerMAC:         wire.Broadcast(),
	}
}

// SetRecorder installs the instrumentation sink; nil restores NopRecorder.
func (e *Engine) SetRecorder(rec Recorder) {
	if rec == nil {
		rec = NopRecorder{}
	}
	e.rec = rec
}

// SetPeerMAC sets the peer address directly, bypassing auto-discovery —
// used when the configuration supplies an explicit peer MAC (spec.md §3
// "Peer address").
func (e *Engine) SetPeerMAC(mac [6]byte) {
	e.peerMAC = mac
}

// PeerMAC returns the engine's current notion of the peer address, which
// may have been learned rather than configured.
func (e *Engine) PeerMAC() [6]byte { return e.peerMAC }

// Exchange performs one reliable single-exchange transaction: it encodes op
// against drive with payload, transmits it up to MaxAttempts times, and
// waits up to AttemptTimeout per attempt for a validated reply. If learn is
// set, the request is sent to broadcast and the first validated reply's
// source MAC is adopted as the peer MAC (spec.md §4.C, §3 "Peer address").
func (e *Engine) Exchange(ctx context.Context, op, drive byte, payload []byte, learn bool) (Reply, error) {
	start := e.clk.Now()
	defer func() { e.rec.RecordLatency(op, e.clk.Now().Sub(start)) }()

	e.sequence++
	seq := e.sequence

	dst := e.peerMAC
	if learn {
		dst = wire.Broadcast()
	}

	header := wire.Header{
		DstMAC:          dst,
		SrcMAC:          e.tx.LocalMAC(),
		ChecksumEnabled: e.checksumEnabled,
		Sequence:        seq,
	}
	total, err := wire.EncodeRequestHeader(e.txBuf, header, drive, op, len(payload))
	if err != nil {
		return Reply{}, fmt.Errorf("transaction: encode request: %w", err)
	}
	copy(e.txBuf[wire.OffPayload:total], payload)
	if e.checksumEnabled {
		wire.WriteChecksum(e.txBuf, total)
	}
	frame := e.txBuf[:total]

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Reply{}, err
		}

		e.rb.Reset()
		e.rec.RecordAttempt(op)
		// A transmit error is indistinguishable from a dropped frame
		// (spec.md §4.B): it falls through to the same wait-and-retry path.
		if err := e.tx.Transmit(frame); err == nil {
			e.rec.RecordBytesSent(len(frame))
		}

		reply, ok := e.waitForReply(ctx, seq, learn)
		if ok {
			e.rec.RecordBytesReceived(len(reply.Payload) + wire.HeaderLen)
			if learn {
				e.rec.RecordPeerLearned()
			}
			return reply, nil
		}
	}

	e.rec.RecordTimeout(op)
	return Reply{}, ErrTimeout
}

// waitForReply polls the receive buffer until a validated reply with
// sequence seq arrives or AttemptTimeout elapses, per spec.md §4.C steps
// 5a-d. Invalid frames clear the sentinel and waiting continues within the
// same attempt, exactly as the spec requires.
func (e *Engine) waitForReply(ctx context.Context, seq byte, learn bool) (Reply, bool) {
	deadline := e.clk.Now().Add(AttemptTimeout)

	for e.clk.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return Reply{}, false
		}

		frame, ok := e.rb.Poll()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}

		reply, valid := e.validate(frame, seq, learn)
		if !valid {
			e.rb.Reset()
			continue
		}
		return reply, true
	}
	return Reply{}, false
}

// validate applies the acceptance predicates of spec.md §4.C "Validation":
// minimum length, destination MAC, ethertype, source MAC (or learn),
// sequence match, declared length within the buffer, and checksum.
func (e *Engine) validate(frame []byte, seq byte, learn bool) (Reply, bool) {
	if len(frame) < wire.MinFrameBytes {
		return Reply{}, false
	}
	if wire.DstMAC(frame) != e.tx.LocalMAC() {
		return Reply{}, false
	}
	if wire.EtherTypeField(frame) != wire.EtherType {
		return Reply{}, false
	}

	src := wire.SrcMAC(frame)
	if learn {
		e.peerMAC = src
	} else if src != e.peerMAC {
		return Reply{}, false
	}

	if wire.Sequence(frame) != seq {
		return Reply{}, false
	}

	total := int(wire.TotalLen(frame))
	if total < wire.MinFrameBytes || total > len(frame) {
		return Reply{}, false
	}

	if wire.ChecksumEnabled(frame) {
		if !wire.VerifyChecksum(frame, total) {
			e.rec.RecordChecksumFailure(wire.Op(frame))
			return Reply{}, false
		}
	}

	payload := make([]byte, total-wire.HeaderLen)
	copy(payload, frame[wire.OffPayload:total])
	return Reply{Status: wire.Status(frame), Payload: payload}, true
}
