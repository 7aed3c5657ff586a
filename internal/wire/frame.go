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

// Package wire implements component A of the redirector: serialization and
// parsing of the fixed-layout request/reply frames described in spec.md
// §4.A and §6, and the 16-bit rotating checksum that protects them.
package wire

import (
	"encoding/binary"
	"fmt"
)

// EtherType is the link-layer protocol identifier for etherdfs frames, in
// network (big-endian) byte order: sent on the wire as bytes 0xED, 0xF5
// (spec.md §6).
const EtherType = 0xEDF5

// ProtocolVersion is the value carried in the low 7 bits of byte 56.
const ProtocolVersion = 3

// Frame byte offsets, per spec.md §4.A / §6.
const (
	OffDstMAC     = 0
	OffSrcMAC     = 6
	OffEtherType  = 12
	OffPadding    = 14
	OffTotalLen   = 52
	OffChecksum   = 54
	OffVersion    = 56
	OffSequence   = 57
	OffDriveOrHi  = 58 // request: drive index; reply: status low byte
	OffOpOrStatHi = 59 // request: op code; reply: status high byte
	OffPayload    = 60

	// HeaderLen is the minimum total frame length, header plus zero payload.
	HeaderLen = OffPayload

	// checksumVersionBit marks, in byte 56, that the checksum field is
	// populated and must be verified.
	checksumVersionBit = 0x80
)

// MinFrameBytes is the minimum length of a well-formed frame on the wire.
const MinFrameBytes = HeaderLen

// Broadcast returns the all-ones link-layer address used as the
// destination MAC while the peer is still being learned (spec.md §3 "Peer
// address").
func Broadcast() [6]byte {
	return [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
}

// Header is the link-layer + protocol prefix shared by every request and
// reply frame. It is populated once at startup (spec.md §3 "Transmission
// buffer") and mutated per-transaction by the transaction engine.
type Header struct {
	DstMAC           [6]byte
	SrcMAC           [6]byte
	ChecksumEnabled  bool
	Sequence         byte
	TotalLen         uint16
	Checksum         uint16
}

// EncodeRequestHeader writes the fixed 60-byte request prefix (drive +
// opcode in place of a reply's status word) into buf, which must be at
// least HeaderLen+len(payload) bytes. It returns the total frame length
// that was written at OffTotalLen.
func EncodeRequestHeader(buf []byte, h Header, drive, op byte, payloadLen int) (int, error) {
	total := HeaderLen + payloadLen
	if total > 0xFFFF {
		return 0, fmt.Errorf("wire: payload too large: %d bytes", payloadLen)
	}
	if len(buf) < total {
		return 0, fmt.Errorf("wire: buffer too small: need %d, have %d", total, len(buf))
	}

	clear(buf[:HeaderLen])
	copy(buf[OffDstMAC:OffDstMAC+6], h.DstMAC[:])
	copy(buf[OffSrcMAC:OffSrcMAC+6], h.SrcMAC[:])
	binary.BigEndian.PutUint16(buf[OffEtherType:], EtherType)
	binary.LittleEndian.PutUint16(buf[OffTotalLen:], uint16(total))

	version := byte(ProtocolVersion)
	if h.ChecksumEnabled {
		version |= checksumVersionBit
	}
	buf[OffVersion] = version
	buf[OffSequence] = h.Sequence
	buf[OffDriveOrHi] = drive
	buf[OffOpOrStatHi] = op

	return total, nil
}

// ChecksumEnabled reports whether bit 7 of byte 56 is set.
func ChecksumEnabled(buf []byte) bool {
	return len(buf) > OffVersion && buf[OffVersion]&checksumVersionBit != 0
}

// Version returns the protocol version in the low 7 bits of byte 56.
func Version(buf []byte) byte {
	if len(buf) <= OffVersion {
		return 0
	}
	return buf[OffVersion] &^ checksumVersionBit
}

// TotalLen reads the little-endian length field at OffTotalLen.
func TotalLen(buf []byte) uint16 {
	if len(buf) < OffTotalLen+2 {
		return 0
	}
	return binary.LittleEndian.Uint16(buf[OffTotalLen:])
}

// PutChecksum writes the checksum field; WriteChecksum computes and writes
// it in one step.
func PutChecksum(buf []byte, sum uint16) {
	binary.LittleEndian.PutUint16(buf[OffChecksum:], sum)
}

// ChecksumField reads the checksum field as stored on the wire.
func ChecksumField(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf[OffChecksum:])
}

// Sequence reads the sequence byte.
func Sequence(buf []byte) byte { return buf[OffSequence] }

// Drive reads the request drive-index byte (offset 58 in a request frame).
func Drive(buf []byte) byte { return buf[OffDriveOrHi] }

// Op reads the request opcode byte (offset 59 in a request frame).
func Op(buf []byte) byte { return buf[OffOpOrStatHi] }

// Status reads the little-endian 16-bit reply status word at offset 58..59.
func Status(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf[OffDriveOrHi:])
}

// PutStatus writes the reply status word.
func PutStatus(buf []byte, status uint16) {
	binary.LittleEndian.PutUint16(buf[OffDriveOrHi:], status)
}

// Payload returns the operation-specific payload slice, bytes 60..len(buf).
func Payload(buf []byte) []byte {
	if len(buf) <= OffPayload {
		return nil
	}
	return buf[OffPayload:]
}

// DstMAC and SrcMAC return the destination/source link-layer addresses.
func DstMAC(buf []byte) [6]byte {
	var m [6]byte
	copy(m[:], buf[OffDstMAC:OffDstMAC+6])
	return m
}

func SrcMAC(buf []byte) [6]byte {
	var m [6]byte
	copy(m[:], buf[OffSrcMAC:OffSrcMAC+6])
	return m
}

// EtherTypeField reads the big-endian ethertype field.
func EtherTypeField(buf []byte) uint16 {
	return binary.BigEndian.Uint16(buf[OffEtherType:])
}

// EncodeReplyHeader writes a reply frame's fixed prefix, status word in
// place of drive+op. Used by tests that simulate a peer.
func EncodeReplyHeader(buf []byte, h Header, status uint16, payloadLen int) (int, error) {
	total := HeaderLen + payloadLen
	if len(buf) < total {
		return 0, fmt.Errorf("wire: buffer too small: need %d, have %d", total, len(buf))
	}

	clear(buf[:HeaderLen])
	copy(buf[OffDstMAC:OffDstMAC+6], h.DstMAC[:])
	copy(buf[OffSrcMAC:OffSrcMAC+6], h.SrcMAC[:])
	binary.BigEndian.PutUint16(buf[OffEtherType:], EtherType)
	binary.LittleEndian.PutUint16(buf[OffTotalLen:], uint16(total))

	version := byte(ProtocolVersion)
	if h.ChecksumEnabled {
		version |= checksumVersionBit
	}
	buf[OffVersion] = version
	buf[OffSequence] = h.Sequence
	PutStatus(buf, status)

	return total, nil
}
