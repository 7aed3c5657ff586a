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
	"errors"

	"github.com/FreddyVRetro/etherdfs-go/internal/transaction"
	"github.com/FreddyVRetro/etherdfs-go/internal/wire"
)

// maxChunkPayload bounds how much of a single READFIL/WRITEFIL exchange's
// payload the dispatcher will request or send in one frame, based on the
// engine's transmission buffer size (spec.md §4.E "loop in chunks of (max
// frame - 60)" / "(max frame - 66)").
const maxChunkPayload = transaction.MinTxBufferBytes - wire.HeaderLen

// readRequestPayloadLen is the READFIL request's fixed payload (offset:32,
// fileid:16, chunk-len:16) = 8 bytes, leaving (max frame - 60) - nothing
// extra for the reply, which is pure data.
const readRequestPayloadLen = 8

// writeRequestOverhead is WRITEFIL's fixed request prefix (offset:32,
// fileid:16) = 6 bytes before the data bytes begin, matching spec.md's
// "(max frame - 66)" chunk size (66 = 60 header + 6 prefix bytes).
const writeRequestOverhead = 6

// CLSFIL implements op 0x06. The handle-count decrement happens
// unconditionally, before the peer's reply is even inspected (spec.md
// §4.E).
func (d *Dispatcher) CLSFIL(ctx context.Context, sft *SFT, fileID uint16) (uint16, error) {
	if sft.HandleCount > 0 {
		sft.HandleCount--
	}

	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, fileID)

	rep, err := d.exchange(ctx, OpCLSFIL, sft.LocalDrive(), payload, wire.StatusFileNotFound)
	return rep.Status, err
}

// CMMTFIL implements op 0x07: always a local no-op success, per spec.md
// §4.E ("no-op success").
func (d *Dispatcher) CMMTFIL() uint16 {
	return wire.StatusOK
}

// ReadResult is the outcome of a READFIL call: the bytes actually read. The
// reply status is returned separately by READFIL.
type ReadResult struct {
	Data []byte
}

// READFIL implements op 0x08. It loops in chunks of maxChunkPayload until
// count bytes have been read or a short reply signals EOF, then mutates
// sft.Position by the total bytes actually read (spec.md §4.E).
func (d *Dispatcher) READFIL(ctx context.Context, sft *SFT, fileID uint16, offset uint32, count uint16) (ReadResult, uint16, error) {
	if sft.isWriteOnly() {
		return ReadResult{}, wire.StatusAccessDenied, nil
	}

	remote, err := d.resolve(sft.LocalDrive())
	if err != nil {
		return ReadResult{}, 0, err
	}

	out := make([]byte, 0, count)
	remaining := int(count)
	pos := offset

	for remaining > 0 {
		want := remaining
		if want > maxChunkPayload {
			want = maxChunkPayload
		}

		payload := make([]byte, readRequestPayloadLen)
		binary.LittleEndian.PutUint32(payload, pos)
		binary.LittleEndian.PutUint16(payload[4:], fileID)
		binary.LittleEndian.PutUint16(payload[6:], uint16(want))

		rep, err := d.engine.Exchange(ctx, OpREADFIL, remote, payload, false)
		if err != nil {
			if errorsIsTimeout(err) {
				break
			}
			return ReadResult{}, 0, err
		}
		if rep.Status != wire.StatusOK {
			return ReadResult{Data: out}, rep.Status, nil
		}

		out = append(out, rep.Payload...)
		pos += uint32(len(rep.Payload))
		remaining -= len(rep.Payload)

		if len(rep.Payload) < want {
			break // short reply: EOF (spec.md §4.E).
		}
	}

	sft.Position = offset + uint32(len(out))
	return ReadResult{Data: out}, wire.StatusOK, nil
}

// WRITEFIL implements op 0x09. Even a zero-byte write performs exactly one
// exchange (the documented truncate semantic); a partial write stops the
// loop immediately (spec.md §4.E).
func (d *Dispatcher) WRITEFIL(ctx context.Context, sft *SFT, fileID uint16, offset uint32, data []byte) (uint16, uint16, error) {
	if sft.isReadOnly() {
		return 0, wire.StatusAccessDenied, nil
	}

	remote, err := d.resolve(sft.LocalDrive())
	if err != nil {
		return 0, 0, err
	}

	writeChunk := maxChunkPayload - writeRequestOverhead
	pos := offset
	var totalWritten uint16

	for first := true; first || len(data) > 0; first = false {
		chunk := data
		if len(chunk) > writeChunk {
			chunk = chunk[:writeChunk]
		}

		payload := make([]byte, writeRequestOverhead+len(chunk))
		binary.LittleEndian.PutUint32(payload, pos)
		binary.LittleEndian.PutUint16(payload[4:], fileID)
		copy(payload[writeRequestOverhead:], chunk)

		rep, err := d.engine.Exchange(ctx, OpWRITEFIL, remote, payload, false)
		if err != nil {
			if errorsIsTimeout(err) {
				break
			}
			return totalWritten, 0, err
		}
		if rep.Status != wire.StatusOK {
			sft.Position = pos
			if pos > sft.Size {
				sft.Size = pos
			}
			return totalWritten, rep.Status, nil
		}

		written := decodeU16(rep.Payload, 0)
		totalWritten += written
		pos += uint32(written)
		data = data[len(chunk):]

		if int(written) < len(chunk) {
			break // partial write: stop (spec.md §4.E).
		}
	}

	sft.Position = pos
	if pos > sft.Size {
		sft.Size = pos
	}
	return totalWritten, wire.StatusOK, nil
}

// LockRegion is one (offset, length) pair of a LOCKFIL/UNLOCKFIL request
// (spec.md §4.E: "8*count bytes of regions").
type LockRegion struct {
	Offset uint32
	Length uint32
}

// LOCKFIL implements op 0x0A/0x0B. The wire opcode sent is 0x0A+BL, where
// BL selects lock (0) or unlock (1) — both share this one request shape
// (spec.md §4.E).
func (d *Dispatcher) LOCKFIL(ctx context.Context, sft *SFT, fileID uint16, regions []LockRegion, unlock bool) (uint16, error) {
	payload := make([]byte, 4+8*len(regions))
	binary.LittleEndian.PutUint16(payload, uint16(len(regions)))
	binary.LittleEndian.PutUint16(payload[2:], fileID)
	for i, r := range regions {
		off := 4 + i*8
		binary.LittleEndian.PutUint32(payload[off:], r.Offset)
		binary.LittleEndian.PutUint32(payload[off+4:], r.Length)
	}

	op := byte(OpLOCKFIL)
	if unlock {
		op++
	}

	rep, err := d.exchange(ctx, op, sft.LocalDrive(), payload, wire.StatusFileNotFound)
	return rep.Status, err
}

// UNLOCKFIL implements op 0x0B as its own wire operation (distinct from
// LOCKFIL's unlock variant): it always fails locally, per spec.md §4.E
// ("always fail with status 2 (DOS 4+ should not use this)").
func (d *Dispatcher) UNLOCKFIL() uint16 {
	return wire.StatusFileNotFound
}

// SKFMEND implements op 0x21: seek from end of file. The new absolute
// position is returned as a 32-bit value split across DX:AX in the
// original calling convention; here it is simply the uint32 (spec.md
// §4.E).
func (d *Dispatcher) SKFMEND(ctx context.Context, sft *SFT, fileID uint16, offset int32) (uint32, uint16, error) {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload, uint16(uint32(offset)))
	binary.LittleEndian.PutUint16(payload[2:], uint16(uint32(offset)>>16))
	binary.LittleEndian.PutUint16(payload[4:], fileID)

	rep, err := d.exchange(ctx, OpSKFMEND, sft.LocalDrive(), payload, wire.StatusFileNotFound)
	if err != nil || rep.Status != wire.StatusOK {
		return 0, rep.Status, err
	}
	if len(rep.Payload) < 4 {
		return 0, wire.StatusInvalidArg, nil
	}
	newPos := binary.LittleEndian.Uint32(rep.Payload)
	sft.Position = newPos
	return newPos, wire.StatusOK, nil
}

func errorsIsTimeout(err error) bool {
	return errors.Is(err, transaction.ErrTimeout)
}
