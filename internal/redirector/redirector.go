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

// Package redirector implements component G: the bootstrap and teardown
// sequence of spec.md §4.G, wiring the wire/linkio/transaction/drivemap/
// dispatch components into one running instance bound to a link interface
// and a sealed set of drive mappings.
package redirector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FreddyVRetro/etherdfs-go/cfg"
	"github.com/FreddyVRetro/etherdfs-go/clock"
	"github.com/FreddyVRetro/etherdfs-go/internal/dispatch"
	"github.com/FreddyVRetro/etherdfs-go/internal/drivemap"
	"github.com/FreddyVRetro/etherdfs-go/internal/linkio"
	"github.com/FreddyVRetro/etherdfs-go/internal/logger"
	"github.com/FreddyVRetro/etherdfs-go/internal/transaction"
)

// CDS flag bits the host's current-directory structure carries per mapped
// drive (spec.md §3 "Current-directory structure", §4.G step 6: "Mark each
// mapped drive as network/physical").
const (
	cdsFlagNetwork  uint16 = 0x8000
	cdsFlagPhysical uint16 = 0x4000
)

// driveRegistry plays the role of the host's interrupt-vector table for
// spec.md §4.G steps 2 and 7 ("reject if any mapped local drive is
// currently in use" / "verify interception still points at our hook"):
// since there is no real vector table to inspect on this host, an installed
// Engine instead claims each of its local drives here under a unique
// token, and teardown only releases drives whose token still matches.
var driveRegistry = struct {
	mu    sync.Mutex
	owner map[byte]uuid.UUID
}{owner: make(map[byte]uuid.UUID)}

func claimDrives(token uuid.UUID, locals []byte) error {
	driveRegistry.mu.Lock()
	defer driveRegistry.mu.Unlock()

	for _, l := range locals {
		if _, busy := driveRegistry.owner[l]; busy {
			return fmt.Errorf("redirector: local drive %c is already in use", 'A'+l)
		}
	}
	for _, l := range locals {
		driveRegistry.owner[l] = token
	}
	return nil
}

func releaseDrives(token uuid.UUID, locals []byte) {
	driveRegistry.mu.Lock()
	defer driveRegistry.mu.Unlock()

	for _, l := range locals {
		if driveRegistry.owner[l] == token {
			delete(driveRegistry.owner, l)
		}
	}
}

// Engine is one installed redirector instance: a running link driver, a
// transaction engine and dispatcher bound to it, and the per-drive
// current-directory structures the host consults for drive flags and path.
type Engine struct {
	Dispatcher *dispatch.Dispatcher

	token  uuid.UUID
	locals []byte
	cds    map[byte]*dispatch.CDS

	tx     linkio.Transceiver
	group  *errgroup.Group
	cancel context.CancelFunc
}

// Install performs spec.md §4.G's bootstrap sequence: open the link
// driver, validate configuration, claim the mapped drives, run peer
// discovery if requested, and seed each drive's current-directory
// structure. rec may be nil, in which case transaction events are
// discarded (transaction.NopRecorder).
func Install(ctx context.Context, c cfg.Config, rec transaction.Recorder) (*Engine, error) {
	tx, err := linkio.OpenRawSocket(c.Link.Interface)
	if err != nil {
		return nil, fmt.Errorf("redirector: open link driver: %w", err)
	}
	e, err := install(ctx, c, rec, tx)
	if err != nil {
		_ = tx.Close()
		return nil, err
	}
	return e, nil
}

// install is Install's link-driver-agnostic core, split out so tests can
// supply a linkio.FakeTransceiver in place of a real network interface.
func install(ctx context.Context, c cfg.Config, rec transaction.Recorder, tx linkio.Transceiver) (*Engine, error) {
	if err := cfg.ValidateConfig(&c); err != nil {
		return nil, fmt.Errorf("redirector: invalid config: %w", err)
	}
	if c.Unload {
		return nil, fmt.Errorf("redirector: install called with Unload set")
	}

	drives := drivemap.New()
	for _, m := range c.Drives {
		if err := drives.MapLocal(byte(m.Local), byte(m.Remote)); err != nil {
			return nil, fmt.Errorf("redirector: %w", err)
		}
	}
	drives.Seal()

	locals := drives.Enumerate()
	if len(locals) == 0 {
		return nil, fmt.Errorf("redirector: no drives mapped")
	}

	token := uuid.New()
	if err := claimDrives(token, locals); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	rb := linkio.NewReceiveBuffer(transaction.MinTxBufferBytes)
	group.Go(func() error { return tx.Run(groupCtx, rb) })

	engine := transaction.New(tx, rb, clock.RealClock{}, !c.Link.ChecksumDisabled)
	engine.SetRecorder(rec)
	if !c.Peer.MAC.Auto {
		engine.SetPeerMAC(c.Peer.MAC.Addr)
	}

	disp := dispatch.New(engine, drives)

	cds := make(map[byte]*dispatch.CDS, len(locals))
	for _, l := range locals {
		cds[l] = &dispatch.CDS{Path: drivePath(l)}
	}

	// spec.md §4.G step 5: auto-discovery rides on the first mapped
	// drive's DISKSPACE request; a timeout here aborts startup rather than
	// being translated into a fallback status, unlike every other op.
	if _, _, err := disp.DISKSPACE(runCtx, cds[locals[0]], c.Peer.MAC.Auto); err != nil {
		releaseDrives(token, locals)
		cancel()
		_ = group.Wait()
		return nil, fmt.Errorf("redirector: peer discovery on drive %c: %w", 'A'+locals[0], err)
	}

	for _, l := range locals {
		cds[l].Flags |= cdsFlagNetwork | cdsFlagPhysical
	}

	logger.Infof("redirector installed, drives=%v peer=%s", driveLetters(locals), macString(engine.PeerMAC()))

	return &Engine{
		Dispatcher: disp,
		token:      token,
		locals:     locals,
		cds:        cds,
		tx:         tx,
		group:      group,
		cancel:     cancel,
	}, nil
}

// CDS returns the current-directory structure for a mapped local drive,
// and whether that drive was in fact installed.
func (e *Engine) CDS(local byte) (*dispatch.CDS, bool) {
	c, ok := e.cds[local]
	return c, ok
}

// Uninstall performs spec.md §4.G's teardown sequence in reverse order:
// verify the hook is still ours, clear the current-directory flags, stop
// the receive loop, and release the link-driver registration.
func (e *Engine) Uninstall() error {
	driveRegistry.mu.Lock()
	var foreign []byte
	for _, l := range e.locals {
		if owner, ok := driveRegistry.owner[l]; ok && owner != e.token {
			foreign = append(foreign, l)
		}
	}
	driveRegistry.mu.Unlock()
	if len(foreign) > 0 {
		return fmt.Errorf("redirector: hook for drive(s) %v was reassigned, refusing to uninstall", driveLetters(foreign))
	}

	for _, l := range e.locals {
		e.cds[l].Flags &^= cdsFlagNetwork | cdsFlagPhysical
	}
	releaseDrives(e.token, e.locals)

	e.cancel()
	err := e.group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if cerr := e.tx.Close(); cerr != nil && err == nil {
		err = cerr
	}

	logger.Infof("redirector uninstalled, drives=%v", driveLetters(e.locals))
	return err
}

func drivePath(local byte) string {
	return string(rune('A'+local)) + `:\`
}

func driveLetters(locals []byte) []string {
	out := make([]string, len(locals))
	for i, l := range locals {
		out[i] = string(rune('A' + l))
	}
	return out
}

func macString(mac [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}
