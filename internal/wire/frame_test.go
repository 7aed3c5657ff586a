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

package wire_test

import (
	"testing"

	"github.com/FreddyVRetro/etherdfs-go/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header() wire.Header {
	return wire.Header{
		DstMAC:          [6]byte{0x02, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE},
		SrcMAC:          [6]byte{0x02, 0x11, 0x22, 0x33, 0x44, 0x55},
		ChecksumEnabled: true,
		Sequence:        7,
	}
}

func TestEncodeRequestHeader_RoundTrip(t *testing.T) {
	buf := make([]byte, 1090)
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	n, err := wire.EncodeRequestHeader(buf, header(), 3, 0x0C, len(payload))
	require.NoError(t, err)
	copy(wire.Payload(buf)[:len(payload)], payload)

	assert.Equal(t, wire.HeaderLen+len(payload), n)
	assert.Equal(t, uint16(n), wire.TotalLen(buf))
	assert.Equal(t, uint16(wire.EtherType), wire.EtherTypeField(buf))
	assert.True(t, wire.ChecksumEnabled(buf))
	assert.Equal(t, byte(wire.ProtocolVersion), wire.Version(buf))
	assert.Equal(t, byte(7), wire.Sequence(buf))
	assert.Equal(t, byte(3), wire.Drive(buf))
	assert.Equal(t, byte(0x0C), wire.Op(buf))
	assert.Equal(t, payload, wire.Payload(buf)[:len(payload)])
	assert.Equal(t, header().DstMAC, wire.DstMAC(buf))
	assert.Equal(t, header().SrcMAC, wire.SrcMAC(buf))
}

func TestEncodeRequestHeader_BufferTooSmall(t *testing.T) {
	buf := make([]byte, 10)
	_, err := wire.EncodeRequestHeader(buf, header(), 0, 0, 100)
	assert.Error(t, err)
}

func TestChecksum_RoundTrip(t *testing.T) {
	buf := make([]byte, 1090)
	n, err := wire.EncodeRequestHeader(buf, header(), 3, 0x0C, 4)
	require.NoError(t, err)

	wire.WriteChecksum(buf, n)
	assert.True(t, wire.VerifyChecksum(buf, n))

	buf[n-1] ^= 0xFF
	assert.False(t, wire.VerifyChecksum(buf, n))
}

func TestChecksum_ExcludesChecksumField(t *testing.T) {
	buf := make([]byte, 1090)
	n, err := wire.EncodeRequestHeader(buf, header(), 3, 0x0C, 4)
	require.NoError(t, err)

	sumBefore := wire.Checksum(buf, n)
	wire.PutChecksum(buf, 0x1234)
	sumAfter := wire.Checksum(buf, n)

	assert.Equal(t, sumBefore, sumAfter, "checksum computation must exclude the checksum field itself")
}

func TestEncodeReplyHeader_StatusRoundTrip(t *testing.T) {
	buf := make([]byte, 1090)
	n, err := wire.EncodeReplyHeader(buf, header(), wire.StatusFileNotFound, 0)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusFileNotFound, wire.Status(buf[:n]))
}

func TestDiskspaceScenario(t *testing.T) {
	// spec.md §8 scenario 1: DISKSPACE success.
	buf := make([]byte, 1090)
	h := header()
	n, err := wire.EncodeReplyHeader(buf, h, wire.StatusOK, 6)
	require.NoError(t, err)
	payload := wire.Payload(buf)
	payload[0], payload[1] = 0x00, 0x01 // clusters = 0x0100
	payload[2], payload[3] = 0x00, 0x02 // bytesPerSector = 0x0200
	payload[4], payload[5] = 0x80, 0x00 // free = 0x0080

	assert.Equal(t, 66, n)
	assert.Equal(t, wire.StatusOK, wire.Status(buf[:n]))
}
