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
	"encoding/binary"

	"github.com/FreddyVRetro/etherdfs-go/internal/wire"
)

// minSFTReplyLen is the smallest OPEN/CREATE/SPOPNFIL reply payload the
// dispatcher can decode: attr(1) + name(11) + time(2) + date(2) +
// fileid(2) + size(4) + open-mode-low(1) (spec.md §4.E "SFT population").
const minSFTReplyLen = 1 + 11 + 2 + 2 + 2 + 4 + 1

// applySFTReply decodes an OPEN/CREATE/SPOPNFIL reply payload onto sft,
// per spec.md §4.E "SFT population on OPEN/CREATE/SPOPNFIL".
func applySFTReply(sft *SFT, localDrive byte, payload []byte) bool {
	if len(payload) < minSFTReplyLen {
		return false
	}

	var name [11]byte
	copy(name[:], payload[1:12])
	timeField := binary.LittleEndian.Uint16(payload[12:])
	dateField := binary.LittleEndian.Uint16(payload[14:])
	fileID := binary.LittleEndian.Uint16(payload[16:])
	size := binary.LittleEndian.Uint32(payload[18:])
	openModeLow := payload[22]

	sft.populate(localDrive, payload[0], name, timeField, dateField, fileID, size, openModeLow)
	return true
}

// buildOpenPayload encodes the (stack-word, 0, 0, path) shape shared by
// OPEN and CREATE (spec.md §4.E).
func buildOpenPayload(stackWord uint16, path string) []byte {
	rel := stripDrivePrefix(path)
	payload := make([]byte, 6+len(rel))
	binary.LittleEndian.PutUint16(payload, stackWord)
	copy(payload[6:], rel)
	return payload
}

// OPEN implements op 0x16.
func (d *Dispatcher) OPEN(ctx context.Context, sft *SFT, path string, stackWord uint16) (uint16, error) {
	if hasWildcard(path) {
		return wire.StatusInvalidArg, nil
	}

	localDrive := pathDriveLetterIndex(path)
	rep, err := d.exchange(ctx, OpOPEN, localDrive, buildOpenPayload(stackWord, path), wire.StatusFileNotFound)
	if err != nil {
		return 0, err
	}
	if rep.Status == wire.StatusOK {
		applySFTReply(sft, localDrive, rep.Payload)
	}
	return rep.Status, nil
}

// CREATE implements op 0x17, identical in shape to OPEN (spec.md §4.E).
func (d *Dispatcher) CREATE(ctx context.Context, sft *SFT, path string, stackWord uint16) (uint16, error) {
	if hasWildcard(path) {
		return wire.StatusInvalidArg, nil
	}

	localDrive := pathDriveLetterIndex(path)
	rep, err := d.exchange(ctx, OpCREATE, localDrive, buildOpenPayload(stackWord, path), wire.StatusFileNotFound)
	if err != nil {
		return 0, err
	}
	if rep.Status == wire.StatusOK {
		applySFTReply(sft, localDrive, rep.Payload)
	}
	return rep.Status, nil
}

// SPOPNFIL implements op 0x2E: SFT population plus the mode word echoed
// back into CX (spec.md §4.E).
func (d *Dispatcher) SPOPNFIL(ctx context.Context, sft *SFT, path string, stackWord, action, mode uint16) (echoedMode, status uint16, err error) {
	rel := stripDrivePrefix(path)
	payload := make([]byte, 6+len(rel))
	binary.LittleEndian.PutUint16(payload, stackWord)
	binary.LittleEndian.PutUint16(payload[2:], action)
	binary.LittleEndian.PutUint16(payload[4:], mode)
	copy(payload[6:], rel)

	localDrive := pathDriveLetterIndex(path)
	rep, err := d.exchange(ctx, OpSPOPNFIL, localDrive, payload, wire.StatusFileNotFound)
	if err != nil {
		return 0, 0, err
	}
	if rep.Status == wire.StatusOK {
		applySFTReply(sft, localDrive, rep.Payload)
	}
	return mode, rep.Status, nil
}
