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

package dispatch_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreddyVRetro/etherdfs-go/clock"
	"github.com/FreddyVRetro/etherdfs-go/internal/dispatch"
	"github.com/FreddyVRetro/etherdfs-go/internal/drivemap"
	"github.com/FreddyVRetro/etherdfs-go/internal/linkio"
	"github.com/FreddyVRetro/etherdfs-go/internal/transaction"
	"github.com/FreddyVRetro/etherdfs-go/internal/wire"
)

var localMAC = [6]byte{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}
var peerMAC = [6]byte{0x02, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE}

func newDispatcher(t *testing.T) (*dispatch.Dispatcher, *linkio.FakeTransceiver) {
	t.Helper()
	rb := linkio.NewReceiveBuffer(2048)
	fake := linkio.NewFakeTransceiver(localMAC)
	engine := transaction.New(fake, rb, clock.RealClock{}, false)
	engine.SetPeerMAC(peerMAC)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go fake.Run(ctx, rb)

	drives := drivemap.New()
	require.NoError(t, drives.MapLocal(2, 0)) // C: -> A:
	drives.Seal()

	return dispatch.New(engine, drives), fake
}

func scriptReply(t *testing.T, fake *linkio.FakeTransceiver, status uint16, payload []byte) {
	t.Helper()
	fake.SetOnTransmit(func(req []byte, rb *linkio.ReceiveBuffer) {
		buf := make([]byte, wire.HeaderLen+len(payload))
		n, err := wire.EncodeReplyHeader(buf, wire.Header{
			DstMAC:   localMAC,
			SrcMAC:   peerMAC,
			Sequence: wire.Sequence(req),
		}, status, len(payload))
		require.NoError(t, err)
		copy(buf[wire.OffPayload:n], payload)
		fake.DeliverReply(buf[:n])
	})
}

func TestDispatcher_DiskSpace(t *testing.T) {
	d, fake := newDispatcher(t)
	payload := []byte{0x00, 0x01, 0x00, 0x02, 0x80, 0x00}
	scriptReply(t, fake, 4, payload)

	cds := &dispatch.CDS{Path: `C:\`}
	ds, status, err := d.DISKSPACE(context.Background(), cds, false)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), status) // status word carries sectors-per-cluster for this op
	assert.Equal(t, uint16(0x0100), ds.TotalClusters)
	assert.Equal(t, uint16(0x0200), ds.BytesPerSector)
	assert.Equal(t, uint16(0x0080), ds.FreeClusters)
}

func TestDispatcher_DiskSpace_NotMapped(t *testing.T) {
	d, _ := newDispatcher(t)
	cds := &dispatch.CDS{Path: `Z:\`}
	_, _, err := d.DISKSPACE(context.Background(), cds, false)
	assert.ErrorIs(t, err, dispatch.ErrNotMapped)
}

func TestDispatcher_RMDIR_RejectsCurrentDirLocally(t *testing.T) {
	d, fake := newDispatcher(t)
	status, err := d.RMDIR(context.Background(), `C:\FOO`, `C:\FOO`)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusInvalidArg, status)
	assert.Empty(t, fake.Sent(), "local rejection must not touch the wire")
}

func TestDispatcher_OPEN_PopulatesSFT(t *testing.T) {
	d, fake := newDispatcher(t)

	payload := make([]byte, 23)
	payload[0] = 0x20 // attr
	copy(payload[1:12], "HELLO      ")
	binary.LittleEndian.PutUint16(payload[12:], 0x1234) // time
	binary.LittleEndian.PutUint16(payload[14:], 0x5678) // date
	binary.LittleEndian.PutUint16(payload[16:], 0x0042) // fileid
	binary.LittleEndian.PutUint32(payload[18:], 1024)   // size
	payload[22] = 0x02                                   // open-mode-low

	scriptReply(t, fake, wire.StatusOK, payload)

	sft := &dispatch.SFT{OpenModeHigh: 0x01}
	status, err := d.OPEN(context.Background(), sft, `C:\HELLO`, 0)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, uint16(0x0042), sft.FileID)
	assert.Equal(t, uint32(1024), sft.Size)
	assert.Equal(t, byte(0x02), sft.OpenModeLow)
	assert.Equal(t, byte(0x01), sft.OpenModeHigh, "open-mode-high must be preserved")
}

func TestDispatcher_READFIL_StopsOnShortReply(t *testing.T) {
	d, fake := newDispatcher(t)
	sft := &dispatch.SFT{DeviceInfoWord: 0x8040 | 2, FileID: 7}

	calls := 0
	fake.SetOnTransmit(func(req []byte, rb *linkio.ReceiveBuffer) {
		calls++
		// Always reply with 3 bytes, less than requested, signalling EOF.
		data := []byte{1, 2, 3}
		buf := make([]byte, wire.HeaderLen+len(data))
		n, err := wire.EncodeReplyHeader(buf, wire.Header{
			DstMAC:   localMAC,
			SrcMAC:   peerMAC,
			Sequence: wire.Sequence(req),
		}, wire.StatusOK, len(data))
		require.NoError(t, err)
		copy(buf[wire.OffPayload:n], data)
		fake.DeliverReply(buf[:n])
	})

	res, status, err := d.READFIL(context.Background(), sft, 7, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, []byte{1, 2, 3}, res.Data)
	assert.Equal(t, 1, calls, "short reply must stop the loop immediately")
	assert.Equal(t, uint32(3), sft.Position)
}

func TestDispatcher_READFIL_RejectsWriteOnly(t *testing.T) {
	d, _ := newDispatcher(t)
	sft := &dispatch.SFT{DeviceInfoWord: 0x8040 | 2, OpenModeLow: 0x01}

	_, status, err := d.READFIL(context.Background(), sft, 7, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusAccessDenied, status)
}

func TestDispatcher_WRITEFIL_ZeroByteTruncates(t *testing.T) {
	d, fake := newDispatcher(t)
	sft := &dispatch.SFT{DeviceInfoWord: 0x8040 | 2}

	calls := 0
	fake.SetOnTransmit(func(req []byte, rb *linkio.ReceiveBuffer) {
		calls++
		buf := make([]byte, wire.HeaderLen+2)
		n, err := wire.EncodeReplyHeader(buf, wire.Header{
			DstMAC:   localMAC,
			SrcMAC:   peerMAC,
			Sequence: wire.Sequence(req),
		}, wire.StatusOK, 2)
		require.NoError(t, err)
		fake.DeliverReply(buf[:n])
	})

	_, status, err := d.WRITEFIL(context.Background(), sft, 9, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, 1, calls, "a zero-byte write must still perform exactly one exchange")
}

func TestDispatcher_READFIL_BackendErrorLeavesPositionUntouched(t *testing.T) {
	d, fake := newDispatcher(t)
	sft := &dispatch.SFT{DeviceInfoWord: 0x8040 | 2, Position: 42}

	const firstChunkLen = transaction.MinTxBufferBytes - wire.HeaderLen // one full chunk: loop must not treat it as EOF
	firstChunk := make([]byte, firstChunkLen)
	for i := range firstChunk {
		firstChunk[i] = byte(i)
	}

	calls := 0
	fake.SetOnTransmit(func(req []byte, rb *linkio.ReceiveBuffer) {
		calls++
		if calls == 1 {
			buf := make([]byte, wire.HeaderLen+len(firstChunk))
			n, err := wire.EncodeReplyHeader(buf, wire.Header{
				DstMAC:   localMAC,
				SrcMAC:   peerMAC,
				Sequence: wire.Sequence(req),
			}, wire.StatusOK, len(firstChunk))
			require.NoError(t, err)
			copy(buf[wire.OffPayload:n], firstChunk)
			fake.DeliverReply(buf[:n])
			return
		}
		// Second chunk: the peer reports a genuine backend error.
		buf := make([]byte, wire.HeaderLen)
		n, err := wire.EncodeReplyHeader(buf, wire.Header{
			DstMAC:   localMAC,
			SrcMAC:   peerMAC,
			Sequence: wire.Sequence(req),
		}, wire.StatusAccessDenied, 0)
		require.NoError(t, err)
		fake.DeliverReply(buf[:n])
	})

	res, status, err := d.READFIL(context.Background(), sft, 7, 0, uint16(firstChunkLen+100))
	require.NoError(t, err)
	require.Equal(t, 2, calls, "test must actually exercise the multi-chunk path")
	assert.Equal(t, wire.StatusAccessDenied, status)
	assert.Equal(t, firstChunk, res.Data, "bytes read before the error are still returned")
	assert.Equal(t, uint32(42), sft.Position, "a mid-call backend error must not advance file_pos")
}

func buildDirEntryPayload(attr byte, name [11]byte, timeField, dateField uint16, size uint32, parentCluster, entryIndex uint16) []byte {
	payload := make([]byte, 24)
	payload[0] = attr
	copy(payload[1:12], name[:])
	binary.LittleEndian.PutUint16(payload[12:], timeField)
	binary.LittleEndian.PutUint16(payload[14:], dateField)
	binary.LittleEndian.PutUint32(payload[16:], size)
	binary.LittleEndian.PutUint16(payload[20:], parentCluster)
	binary.LittleEndian.PutUint16(payload[22:], entryIndex)
	return payload
}

func TestDispatcher_FINDFIRST_Success(t *testing.T) {
	d, fake := newDispatcher(t)
	var name [11]byte
	copy(name[:], "HELLO   TXT")
	scriptReply(t, fake, wire.StatusOK, buildDirEntryPayload(0x20, name, 0x1111, 0x2222, 512, 0x0003, 0x0004))

	cds := &dispatch.CDS{Path: `C:\`}
	dta := &dispatch.DTA{}
	entry, status, err := d.FINDFIRST(context.Background(), cds, dta, 0x00, `C:\*.TXT`)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, uint32(512), entry.Size)
	assert.Equal(t, uint16(0x0003), dta.ParentCluster)
	assert.Equal(t, uint16(0x0004), dta.EntryIndex)
	assert.Equal(t, byte(2), dta.Drive, "dta.Drive must carry the resolved local drive")
}

func TestDispatcher_FINDFIRST_PropagatesGenuinePeerStatus(t *testing.T) {
	d, fake := newDispatcher(t)
	scriptReply(t, fake, wire.StatusAccessDenied, nil)

	cds := &dispatch.CDS{Path: `C:\`}
	dta := &dispatch.DTA{}
	_, status, err := d.FINDFIRST(context.Background(), cds, dta, 0x00, `C:\*.TXT`)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusAccessDenied, status, "a genuine peer error must propagate unchanged, not collapse to status 2")
}

func TestDispatcher_FINDNEXT_Success(t *testing.T) {
	d, fake := newDispatcher(t)
	var name [11]byte
	copy(name[:], "WORLD   TXT")
	scriptReply(t, fake, wire.StatusOK, buildDirEntryPayload(0x20, name, 0, 0, 256, 5, 6))

	dta := &dispatch.DTA{Drive: 2}
	entry, status, err := d.FINDNEXT(context.Background(), dta)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, uint32(256), entry.Size)
}

func TestDispatcher_FINDNEXT_PropagatesGenuinePeerStatus(t *testing.T) {
	d, fake := newDispatcher(t)
	scriptReply(t, fake, wire.StatusAccessDenied, nil)

	dta := &dispatch.DTA{Drive: 2}
	_, status, err := d.FINDNEXT(context.Background(), dta)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusAccessDenied, status, "a genuine peer error must propagate unchanged, not collapse to status 18")
}

func TestDispatcher_LOCKFIL(t *testing.T) {
	d, fake := newDispatcher(t)
	sft := &dispatch.SFT{DeviceInfoWord: 0x8040 | 2}
	scriptReply(t, fake, wire.StatusOK, nil)

	status, err := d.LOCKFIL(context.Background(), sft, 7, []dispatch.LockRegion{{Offset: 0, Length: 100}}, false)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
}

func TestDispatcher_UNLOCKFIL_AlwaysFailsLocally(t *testing.T) {
	d, _ := newDispatcher(t)
	assert.Equal(t, wire.StatusFileNotFound, d.UNLOCKFIL())
}

func TestDispatcher_SETATTR(t *testing.T) {
	d, fake := newDispatcher(t)
	scriptReply(t, fake, wire.StatusOK, nil)

	status, err := d.SETATTR(context.Background(), `C:\FOO.TXT`, 0x20)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
}

func TestDispatcher_GETATTR(t *testing.T) {
	d, fake := newDispatcher(t)
	payload := make([]byte, 9)
	payload[0] = 0x20
	binary.LittleEndian.PutUint16(payload[1:], 0x1111)
	binary.LittleEndian.PutUint16(payload[3:], 0x2222)
	binary.LittleEndian.PutUint32(payload[5:], 4096)
	scriptReply(t, fake, wire.StatusOK, payload)

	res, status, err := d.GETATTR(context.Background(), `C:\FOO.TXT`)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, byte(0x20), res.Attr)
	assert.Equal(t, uint32(4096), res.Size)
}

func TestDispatcher_RENAME_Success(t *testing.T) {
	d, fake := newDispatcher(t)
	scriptReply(t, fake, wire.StatusOK, nil)

	status, err := d.RENAME(context.Background(), `C:\OLD.TXT`, `C:\NEW.TXT`)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
}

func TestDispatcher_RENAME_RejectsCrossDriveLocally(t *testing.T) {
	d, fake := newDispatcher(t)
	status, err := d.RENAME(context.Background(), `C:\OLD.TXT`, `D:\NEW.TXT`)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusInvalidArg, status)
	assert.Empty(t, fake.Sent(), "cross-drive rename must not touch the wire")
}

func TestDispatcher_RENAME_RejectsWildcardTargetLocally(t *testing.T) {
	d, fake := newDispatcher(t)
	status, err := d.RENAME(context.Background(), `C:\OLD.TXT`, `C:\*.TXT`)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusInvalidArg, status)
	assert.Empty(t, fake.Sent(), "wildcard rename target must not touch the wire")
}

func TestDispatcher_SKFMEND(t *testing.T) {
	d, fake := newDispatcher(t)
	sft := &dispatch.SFT{DeviceInfoWord: 0x8040 | 2}
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, 2048)
	scriptReply(t, fake, wire.StatusOK, payload)

	newPos, status, err := d.SKFMEND(context.Background(), sft, 7, -100)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, uint32(2048), newPos)
	assert.Equal(t, uint32(2048), sft.Position)
}

func TestDispatcher_SPOPNFIL(t *testing.T) {
	d, fake := newDispatcher(t)
	payload := make([]byte, 23)
	payload[0] = 0x20
	copy(payload[1:12], "SHARED  TXT")
	binary.LittleEndian.PutUint16(payload[16:], 0x0099)
	binary.LittleEndian.PutUint32(payload[18:], 77)
	scriptReply(t, fake, wire.StatusOK, payload)

	sft := &dispatch.SFT{}
	mode, status, err := d.SPOPNFIL(context.Background(), sft, `C:\SHARED.TXT`, 0, 1, 0x42)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, uint16(0x42), mode)
	assert.Equal(t, uint16(0x0099), sft.FileID)
}

func TestDispatcher_CLSFIL(t *testing.T) {
	d, fake := newDispatcher(t)
	sft := &dispatch.SFT{DeviceInfoWord: 0x8040 | 2, HandleCount: 2}
	scriptReply(t, fake, wire.StatusOK, nil)

	status, err := d.CLSFIL(context.Background(), sft, 7)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, 1, sft.HandleCount, "handle count must decrement unconditionally")
}

func TestDispatcher_MKDIR(t *testing.T) {
	d, fake := newDispatcher(t)
	scriptReply(t, fake, wire.StatusOK, nil)

	status, err := d.MKDIR(context.Background(), `C:\NEWDIR`)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
}

func TestDispatcher_CHDIR(t *testing.T) {
	d, fake := newDispatcher(t)
	scriptReply(t, fake, wire.StatusOK, nil)

	status, err := d.CHDIR(context.Background(), `C:\SUBDIR`)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
}

func TestDispatcher_DELETE(t *testing.T) {
	d, fake := newDispatcher(t)
	scriptReply(t, fake, wire.StatusOK, nil)

	status, err := d.DELETE(context.Background(), `C:\FOO.TXT`)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
}
