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

const minDirEntryReplyLen = 1 + 11 + 2 + 2 + 4 + 4 // attr+name+time+date+size+2 continuation tokens

// decodeDirEntry pulls the directory entry fields (attr, name, time, date,
// size: 20 bytes) plus the two 16-bit continuation tokens, 24 bytes in all,
// off a FINDFIRST/FINDNEXT reply and stores the
// tokens back onto dta for the next FINDNEXT (spec.md §3
// "Directory-search control block").
func decodeDirEntry(dta *DTA, payload []byte) (DirEntry, bool) {
	if len(payload) < minDirEntryReplyLen {
		return DirEntry{}, false
	}

	var name [11]byte
	copy(name[:], payload[1:12])
	e := DirEntry{
		Attr: payload[0],
		Name: name,
		Time: binary.LittleEndian.Uint16(payload[12:]),
		Date: binary.LittleEndian.Uint16(payload[14:]),
		Size: binary.LittleEndian.Uint32(payload[16:]),
	}
	dta.ParentCluster = binary.LittleEndian.Uint16(payload[20:])
	dta.EntryIndex = binary.LittleEndian.Uint16(payload[22:])
	return e, true
}

// FINDFIRST implements op 0x1B. Unlike FINDNEXT, it resolves its local
// drive from the CDS path, not the DTA (spec.md §4.E "Drive resolution...
// Everything else: first character of the CDS path"). Status 2 is only the
// network-timeout fallback (wired through d.exchange's timeoutStatus); a
// genuine nonzero peer status propagates unchanged (spec.md §7).
func (d *Dispatcher) FINDFIRST(ctx context.Context, cds *CDS, dta *DTA, attr byte, path string) (DirEntry, uint16, error) {
	rel := stripDrivePrefix(path)
	payload := make([]byte, 1+len(rel))
	payload[0] = attr
	copy(payload[1:], rel)

	dta.Attr = attr
	dta.FCBName = normalizeFCBName(rel)

	rep, err := d.exchange(ctx, OpFINDFIRST, cds.localDrive(), payload, wire.StatusFileNotFound)
	if err != nil {
		return DirEntry{}, 0, err
	}
	if rep.Status != wire.StatusOK {
		return DirEntry{}, rep.Status, nil
	}

	entry, ok := decodeDirEntry(dta, rep.Payload)
	if !ok {
		return DirEntry{}, wire.StatusFileNotFound, nil
	}
	dta.Drive = cds.localDrive() & 0x1F
	return entry, wire.StatusOK, nil
}

// FINDNEXT implements op 0x1C. It resolves its local drive from the DTA's
// drive byte (spec.md §4.E). Status 18 ("no more files") is only the
// network-timeout fallback; a genuine nonzero peer status propagates
// unchanged (spec.md §7).
func (d *Dispatcher) FINDNEXT(ctx context.Context, dta *DTA) (DirEntry, uint16, error) {
	payload := make([]byte, 2+2+1+11)
	binary.LittleEndian.PutUint16(payload, dta.ParentCluster)
	binary.LittleEndian.PutUint16(payload[2:], dta.EntryIndex)
	payload[4] = dta.Attr
	copy(payload[5:], dta.FCBName[:])

	rep, err := d.exchange(ctx, OpFINDNEXT, dta.localDrive(), payload, wire.StatusNoMoreFiles)
	if err != nil {
		return DirEntry{}, 0, err
	}
	if rep.Status != wire.StatusOK {
		return DirEntry{}, rep.Status, nil
	}

	entry, ok := decodeDirEntry(dta, rep.Payload)
	if !ok {
		return DirEntry{}, wire.StatusNoMoreFiles, nil
	}
	return entry, wire.StatusOK, nil
}
