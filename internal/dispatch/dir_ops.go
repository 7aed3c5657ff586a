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

// pathDriveLetterIndex resolves the local drive from a path's leading
// drive letter, per spec.md §4.E "Name-bearing ops... first character of
// the primary filename."
func pathDriveLetterIndex(path string) byte {
	if len(path) == 0 {
		return 0xFF
	}
	return driveLetterIndex(path[0])
}

// RMDIR implements op 0x01. It rejects locally (status 16) if path
// names the current directory, without ever going to the wire (spec.md
// §4.E).
func (d *Dispatcher) RMDIR(ctx context.Context, path, currentDir string) (uint16, error) {
	rel := stripDrivePrefix(path)
	if rel == stripDrivePrefix(currentDir) {
		return wire.StatusInvalidArg, nil
	}

	rep, err := d.exchange(ctx, OpRMDIR, pathDriveLetterIndex(path), []byte(rel), wire.StatusFileNotFound)
	return rep.Status, err
}

// MKDIR implements op 0x03.
func (d *Dispatcher) MKDIR(ctx context.Context, path string) (uint16, error) {
	rel := stripDrivePrefix(path)
	rep, err := d.exchange(ctx, OpMKDIR, pathDriveLetterIndex(path), []byte(rel), wire.StatusFileNotFound)
	return rep.Status, err
}

// CHDIR implements op 0x05. The dispatcher never mutates the
// current-directory structure itself — the host applies that only after
// a success reply (spec.md §4.E).
func (d *Dispatcher) CHDIR(ctx context.Context, path string) (uint16, error) {
	rel := stripDrivePrefix(path)
	rep, err := d.exchange(ctx, OpCHDIR, pathDriveLetterIndex(path), []byte(rel), wire.StatusPathNotFound)
	return rep.Status, err
}

// DELETE implements op 0x13.
func (d *Dispatcher) DELETE(ctx context.Context, path string) (uint16, error) {
	rel := stripDrivePrefix(path)
	rep, err := d.exchange(ctx, OpDELETE, pathDriveLetterIndex(path), []byte(rel), wire.StatusFileNotFound)
	return rep.Status, err
}

// SETATTR implements op 0x0E: attribute word followed by path.
func (d *Dispatcher) SETATTR(ctx context.Context, path string, attr uint16) (uint16, error) {
	rel := stripDrivePrefix(path)
	payload := make([]byte, 2+len(rel))
	binary.LittleEndian.PutUint16(payload, attr)
	copy(payload[2:], rel)

	rep, err := d.exchange(ctx, OpSETATTR, pathDriveLetterIndex(path), payload, wire.StatusFileNotFound)
	return rep.Status, err
}

// GetAttrResult is the decoded reply of op 0x0F (spec.md §4.E: "(attr:8,
// time:16, date:16, size:32) -> into AX, CX, DX, BX:DI").
type GetAttrResult struct {
	Attr byte
	Time uint16
	Date uint16
	Size uint32
}

// GETATTR implements op 0x0F.
func (d *Dispatcher) GETATTR(ctx context.Context, path string) (GetAttrResult, uint16, error) {
	rel := stripDrivePrefix(path)
	rep, err := d.exchange(ctx, OpGETATTR, pathDriveLetterIndex(path), []byte(rel), wire.StatusFileNotFound)
	if err != nil || rep.Status != wire.StatusOK {
		return GetAttrResult{}, rep.Status, err
	}
	if len(rep.Payload) < 9 {
		return GetAttrResult{}, wire.StatusInvalidArg, nil
	}
	return GetAttrResult{
		Attr: rep.Payload[0],
		Time: binary.LittleEndian.Uint16(rep.Payload[1:]),
		Date: binary.LittleEndian.Uint16(rep.Payload[3:]),
		Size: binary.LittleEndian.Uint32(rep.Payload[5:]),
	}, rep.Status, nil
}

// RENAME implements op 0x11. Two local rejections never reach the wire:
// old and new drive letters differing, and a new path containing wildcards
// (spec.md §4.E).
func (d *Dispatcher) RENAME(ctx context.Context, oldPath, newPath string) (uint16, error) {
	if pathDriveLetterIndex(oldPath) != pathDriveLetterIndex(newPath) {
		return wire.StatusInvalidArg, nil
	}
	if hasWildcard(newPath) {
		return wire.StatusInvalidArg, nil
	}

	oldRel := stripDrivePrefix(oldPath)
	newRel := stripDrivePrefix(newPath)

	payload := make([]byte, 1+len(oldRel)+len(newRel))
	payload[0] = byte(len(oldRel))
	copy(payload[1:], oldRel)
	copy(payload[1+len(oldRel):], newRel)

	rep, err := d.exchange(ctx, OpRENAME, pathDriveLetterIndex(oldPath), payload, wire.StatusFileNotFound)
	return rep.Status, err
}

// DiskSpace is the decoded reply of op 0x0C (spec.md §4.E: "(sectors-per-
// cluster as status, total clusters, bytes per sector, free clusters) ->
// into AX, BX, CX, DX").
type DiskSpace struct {
	SectorsPerCluster uint16
	TotalClusters     uint16
	BytesPerSector    uint16
	FreeClusters      uint16
}

// DISKSPACE implements op 0x0C. Like FINDFIRST, it resolves its local
// drive from the CDS, not a path (spec.md §4.E "Drive resolution...
// Everything else: first character of the CDS path"), and its learn
// parameter drives peer auto-discovery at install time (spec.md §4.G).
func (d *Dispatcher) DISKSPACE(ctx context.Context, cds *CDS, learn bool) (DiskSpace, uint16, error) {
	localDrive := cds.localDrive()
	remote, err := d.resolve(localDrive)
	if err != nil {
		return DiskSpace{}, 0, err
	}

	rep, err := d.engine.Exchange(ctx, OpDISKSPACE, remote, nil, learn)
	if err != nil {
		return DiskSpace{}, 0, err
	}

	return DiskSpace{
		SectorsPerCluster: rep.Status,
		TotalClusters:     decodeU16(rep.Payload, 0),
		BytesPerSector:    decodeU16(rep.Payload, 2),
		FreeClusters:      decodeU16(rep.Payload, 4),
	}, rep.Status, nil
}

func decodeU16(b []byte, off int) uint16 {
	if len(b) < off+2 {
		return 0
	}
	return binary.LittleEndian.Uint16(b[off:])
}
