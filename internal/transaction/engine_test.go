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

package transaction_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreddyVRetro/etherdfs-go/clock"
	"github.com/FreddyVRetro/etherdfs-go/internal/linkio"
	"github.com/FreddyVRetro/etherdfs-go/internal/transaction"
	"github.com/FreddyVRetro/etherdfs-go/internal/wire"
)

var localMAC = [6]byte{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}
var peerMAC = [6]byte{0x02, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE}

// startEngine wires a FakeTransceiver and a real clock.RealClock (attempts
// are short enough for a test to simply wait on them) into a fresh Engine,
// returning both so tests can script replies via the fake.
func startEngine(t *testing.T, checksum bool) (*transaction.Engine, *linkio.FakeTransceiver, *linkio.ReceiveBuffer) {
	t.Helper()
	rb := linkio.NewReceiveBuffer(2048)
	fake := linkio.NewFakeTransceiver(localMAC)
	e := transaction.New(fake, rb, clock.RealClock{}, checksum)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go fake.Run(ctx, rb)

	return e, fake, rb
}

func buildReply(t *testing.T, seq byte, status uint16, payload []byte, checksum bool) []byte {
	t.Helper()
	buf := make([]byte, wire.HeaderLen+len(payload))
	h := wire.Header{
		DstMAC:          localMAC,
		SrcMAC:          peerMAC,
		ChecksumEnabled: checksum,
		Sequence:        seq,
	}
	n, err := wire.EncodeReplyHeader(buf, h, status, len(payload))
	require.NoError(t, err)
	copy(buf[wire.OffPayload:n], payload)
	if checksum {
		wire.WriteChecksum(buf, n)
	}
	return buf[:n]
}

func TestExchange_DiskspaceSuccess(t *testing.T) {
	e, fake, _ := startEngine(t, false)
	e.SetPeerMAC(peerMAC)

	fake.SetOnTransmit(func(req []byte, rb *linkio.ReceiveBuffer) {
		payload := []byte{0x04, 0x00, 0x00, 0x01, 0x00, 0x02, 0x80, 0x00}
		reply := buildReply(t, wire.Sequence(req), 4, payload, false)
		fake.DeliverReply(reply)
	})

	rep, err := e.Exchange(context.Background(), 0x0C, 3, nil, false)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), rep.Status)
	assert.Len(t, fake.Sent(), 1)
}

func TestExchange_AutoDiscoveryLearnsPeer(t *testing.T) {
	e, fake, _ := startEngine(t, false)
	// peerMAC left at broadcast; learn flag drives discovery.

	fake.SetOnTransmit(func(req []byte, rb *linkio.ReceiveBuffer) {
		assert.Equal(t, wire.Broadcast(), wire.DstMAC(req))
		reply := buildReply(t, wire.Sequence(req), 0, nil, false)
		fake.DeliverReply(reply)
	})

	_, err := e.Exchange(context.Background(), 0x0C, 0, nil, true)
	require.NoError(t, err)
	assert.Equal(t, peerMAC, e.PeerMAC())
}

func TestExchange_ChecksumMismatchThenRecovery(t *testing.T) {
	e, fake, _ := startEngine(t, true)
	e.SetPeerMAC(peerMAC)

	fake.SetOnTransmit(func(req []byte, rb *linkio.ReceiveBuffer) {
		bad := buildReply(t, wire.Sequence(req), 0, []byte{1, 2, 3}, true)
		bad[wire.OffChecksum] ^= 0xFF // corrupt checksum
		fake.DeliverReply(bad)

		go func() {
			time.Sleep(5 * time.Millisecond)
			good := buildReply(t, wire.Sequence(req), 0, []byte{1, 2, 3}, true)
			fake.DeliverReply(good)
		}()
	})

	rep, err := e.Exchange(context.Background(), 0x08, 0, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, rep.Payload)
	assert.Len(t, fake.Sent(), 1, "recovery must happen within the same attempt, no retransmit")
}

func TestExchange_TimeoutAfterFiveAttempts(t *testing.T) {
	rb := linkio.NewReceiveBuffer(2048)
	fake := linkio.NewFakeTransceiver(localMAC)
	sc := clock.NewSimulatedClock(time.Unix(0, 0))
	e := transaction.New(fake, rb, sc, false)
	e.SetPeerMAC(peerMAC)
	// No onTransmit scripted: every attempt goes unanswered.

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go fake.Run(ctx, rb)

	errCh := make(chan error, 1)
	go func() {
		_, err := e.Exchange(context.Background(), 0x0C, 0, nil, false)
		errCh <- err
	}()

	// Push the simulated clock past each attempt's deadline instead of
	// sleeping out the real five-attempt retry budget (spec.md §7 Open
	// Question 2).
	for i := 0; i < transaction.MaxAttempts+1; i++ {
		time.Sleep(2 * time.Millisecond)
		sc.AdvanceTime(transaction.AttemptTimeout + time.Millisecond)
	}

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, transaction.ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("Exchange did not return after simulated timeout")
	}
	assert.Len(t, fake.Sent(), transaction.MaxAttempts)
}

func TestExchange_RejectsWrongSequence(t *testing.T) {
	e, fake, _ := startEngine(t, false)
	e.SetPeerMAC(peerMAC)

	fake.SetOnTransmit(func(req []byte, rb *linkio.ReceiveBuffer) {
		stale := buildReply(t, wire.Sequence(req)-1, 0, nil, false)
		fake.DeliverReply(stale)
	})

	_, err := e.Exchange(context.Background(), 0x0C, 0, nil, false)
	assert.ErrorIs(t, err, transaction.ErrTimeout)
}
