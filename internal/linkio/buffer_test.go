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

package linkio_test

import (
	"testing"

	"github.com/FreddyVRetro/etherdfs-go/internal/linkio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveBuffer_SentinelCycle(t *testing.T) {
	b := linkio.NewReceiveBuffer(128)

	_, ok := b.Poll()
	assert.False(t, ok, "fresh buffer must not report a frame")

	dst, ok := b.TryClaim(10)
	require.True(t, ok)
	require.Len(t, dst, 10)

	_, ok = b.Poll()
	assert.False(t, ok, "reserved (negative) state must not be visible to Poll")

	for i := range dst {
		dst[i] = byte(i)
	}
	b.Deliver(10)

	got, ok := b.Poll()
	require.True(t, ok)
	assert.Equal(t, 10, len(got))
	assert.Equal(t, byte(5), got[5])

	b.Reset()
	_, ok = b.Poll()
	assert.False(t, ok)
}

func TestReceiveBuffer_RefusesClaimWhenNotEmpty(t *testing.T) {
	b := linkio.NewReceiveBuffer(64)

	_, ok := b.TryClaim(8)
	require.True(t, ok)

	_, ok = b.TryClaim(8)
	assert.False(t, ok, "callback must refuse to claim a non-empty sentinel")
}

func TestReceiveBuffer_RefusesOversizedClaim(t *testing.T) {
	b := linkio.NewReceiveBuffer(16)
	_, ok := b.TryClaim(17)
	assert.False(t, ok)
}
