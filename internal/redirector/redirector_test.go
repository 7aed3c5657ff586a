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

package redirector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreddyVRetro/etherdfs-go/cfg"
	"github.com/FreddyVRetro/etherdfs-go/internal/linkio"
	"github.com/FreddyVRetro/etherdfs-go/internal/wire"
)

var localMAC = [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
var peerMAC = [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}

func testConfig() cfg.Config {
	return cfg.Config{
		AppName: "etherdfsd",
		Drives:  []cfg.DriveMapping{{Local: 4, Remote: 2}}, // E=C
		Peer:    cfg.PeerConfig{MAC: cfg.MACAddress{Addr: peerMAC}},
		Link:    cfg.LinkConfig{Interface: "eth0"},
		Logging: cfg.GetDefaultLoggingConfig(),
	}
}

// scriptDiskspaceReply arranges for the fake transceiver to answer the
// first transmitted frame as a successful DISKSPACE reply, echoing
// whatever sequence number the request carried.
func scriptDiskspaceReply(fake *linkio.FakeTransceiver) {
	fake.SetOnTransmit(func(frame []byte, buf *linkio.ReceiveBuffer) {
		seq := wire.Sequence(frame)
		payload := make([]byte, 6)
		reply := make([]byte, wire.HeaderLen+len(payload))
		_, _ = wire.EncodeReplyHeader(reply, wire.Header{
			DstMAC:   localMAC,
			SrcMAC:   peerMAC,
			Sequence: seq,
		}, wire.StatusOK, len(payload))
		copy(reply[wire.OffPayload:], payload)

		dst, ok := buf.TryClaim(len(reply))
		if !ok {
			return
		}
		copy(dst, reply)
		buf.Deliver(len(reply))
	})
}

func TestInstall_SeedsCDSAndSealsDriveMap(t *testing.T) {
	fake := linkio.NewFakeTransceiver(localMAC)
	scriptDiskspaceReply(fake)

	e, err := install(context.Background(), testConfig(), nil, fake)
	require.NoError(t, err)
	defer func() { _ = e.Uninstall() }()

	cds, ok := e.CDS(4)
	require.True(t, ok)
	assert.Equal(t, `E:\`, cds.Path)
	assert.NotZero(t, cds.Flags&cdsFlagNetwork)
	assert.NotZero(t, cds.Flags&cdsFlagPhysical)

	_, ok = e.CDS(5)
	assert.False(t, ok, "unmapped drive must not have a CDS entry")
}

func TestInstall_RejectsDriveAlreadyInUse(t *testing.T) {
	fake1 := linkio.NewFakeTransceiver(localMAC)
	scriptDiskspaceReply(fake1)
	e1, err := install(context.Background(), testConfig(), nil, fake1)
	require.NoError(t, err)
	defer func() { _ = e1.Uninstall() }()

	fake2 := linkio.NewFakeTransceiver(localMAC)
	scriptDiskspaceReply(fake2)
	_, err = install(context.Background(), testConfig(), nil, fake2)
	assert.Error(t, err)
}

func TestInstall_AbortsOnDiscoveryTimeout(t *testing.T) {
	fake := linkio.NewFakeTransceiver(localMAC) // never replies

	_, err := install(context.Background(), testConfig(), nil, fake)
	require.Error(t, err)

	// A failed install must not leave the drive claimed.
	fake2 := linkio.NewFakeTransceiver(localMAC)
	scriptDiskspaceReply(fake2)
	e2, err := install(context.Background(), testConfig(), nil, fake2)
	require.NoError(t, err)
	_ = e2.Uninstall()
}

func TestUninstall_ClearsCDSFlagsAndReleasesDrive(t *testing.T) {
	fake := linkio.NewFakeTransceiver(localMAC)
	scriptDiskspaceReply(fake)

	e, err := install(context.Background(), testConfig(), nil, fake)
	require.NoError(t, err)

	cds, _ := e.CDS(4)
	require.NoError(t, e.Uninstall())
	assert.Zero(t, cds.Flags&cdsFlagNetwork)
	assert.Zero(t, cds.Flags&cdsFlagPhysical)

	// The drive should now be free for a second install.
	fake2 := linkio.NewFakeTransceiver(localMAC)
	scriptDiskspaceReply(fake2)
	e2, err := install(context.Background(), testConfig(), nil, fake2)
	require.NoError(t, err)
	require.NoError(t, e2.Uninstall())
}

func TestInstall_RejectsInvalidConfig(t *testing.T) {
	fake := linkio.NewFakeTransceiver(localMAC)
	bad := testConfig()
	bad.Drives = nil

	_, err := install(context.Background(), bad, nil, fake)
	assert.Error(t, err)
}

func TestInstall_AutoDiscoveryLearnsPeer(t *testing.T) {
	fake := linkio.NewFakeTransceiver(localMAC)
	scriptDiskspaceReply(fake)

	c := testConfig()
	c.Peer.MAC = cfg.MACAddress{Auto: true}

	e, err := install(context.Background(), c, nil, fake)
	require.NoError(t, err)
	defer func() { _ = e.Uninstall() }()

	assert.Equal(t, peerMAC, e.Dispatcher.PeerMAC())
}
