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

import (
	"context"
	"errors"
	"fmt"

	"github.com/FreddyVRetro/etherdfs-go/internal/drivemap"
	"github.com/FreddyVRetro/etherdfs-go/internal/transaction"
	"github.com/FreddyVRetro/etherdfs-go/internal/wire"
)

// ErrNotMapped is returned by every operation method when the resolved
// local drive is not in the drive map. Per spec.md §4.E: "If the resolved
// local drive is not in the map, the request is forwarded to the host's
// prior handler unchanged" — callers embedding this dispatcher into a host
// shim treat ErrNotMapped as "not mine, pass through".
var ErrNotMapped = errors.New("dispatch: local drive not mapped")

// Dispatcher implements component E, translating host-shaped control
// blocks into transaction-engine exchanges and applying the replies back.
type Dispatcher struct {
	engine *transaction.Engine
	drives *drivemap.Map
}

// New builds a Dispatcher over an installed transaction engine and its
// sealed drive map.
func New(engine *transaction.Engine, drives *drivemap.Map) *Dispatcher {
	return &Dispatcher{engine: engine, drives: drives}
}

// resolve maps a local drive letter index to its remote counterpart,
// returning ErrNotMapped if the local drive was never configured.
func (d *Dispatcher) resolve(localDrive byte) (remote byte, err error) {
	if localDrive == 0xFF {
		return 0, ErrNotMapped
	}
	remote, ok := d.drives.Resolve(localDrive)
	if !ok {
		return 0, ErrNotMapped
	}
	return remote, nil
}

// exchange is the common request/reply plumbing shared by every operation:
// resolve remote drive once, run the transaction, and translate a network
// timeout into the operation's documented fallback status (spec.md §4.E
// "Error translation").
func (d *Dispatcher) exchange(ctx context.Context, op byte, localDrive byte, payload []byte, timeoutStatus uint16) (transaction.Reply, error) {
	remote, err := d.resolve(localDrive)
	if err != nil {
		return transaction.Reply{}, err
	}

	rep, err := d.engine.Exchange(ctx, op, remote, payload, false)
	if errors.Is(err, transaction.ErrTimeout) {
		return transaction.Reply{Status: timeoutStatus}, nil
	}
	if err != nil {
		return transaction.Reply{}, fmt.Errorf("dispatch: op %#x: %w", op, err)
	}
	return rep, nil
}

// PeerMAC returns the transaction engine's current notion of the peer
// address, which may have been learned during auto-discovery rather than
// configured (spec.md §3 "Peer address").
func (d *Dispatcher) PeerMAC() [6]byte { return d.engine.PeerMAC() }

// InstallCheck implements op 0x00: an identity stamp handled locally and
// never forwarded over the wire (spec.md §4.E).
func (d *Dispatcher) InstallCheck() bool { return true }

// Unknown2D implements op 0x2D: spec.md §7 Open Question 3 resolves this
// as a constant status of 2, handled entirely locally.
func (d *Dispatcher) Unknown2D() uint16 {
	return wire.StatusFileNotFound
}
