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

// Package dispatch implements component E: the 28 recognized operation
// codes of spec.md §4.E, each translating a caller-supplied control block
// into a wire exchange and applying the reply back onto that control
// block.
package dispatch

// Operation codes recognized by the dispatcher (spec.md §4.E). Every other
// code in 0x00..0x2E falls through to the host's previous handler
// unchanged and has no entry here.
const (
	OpInstallCheck = 0x00
	OpRMDIR        = 0x01
	OpMKDIR        = 0x03
	OpCHDIR        = 0x05
	OpCLSFIL       = 0x06
	OpCMMTFIL      = 0x07
	OpREADFIL      = 0x08
	OpWRITEFIL     = 0x09
	OpLOCKFIL      = 0x0A
	OpUNLOCKFIL    = 0x0B
	OpDISKSPACE    = 0x0C
	OpSETATTR      = 0x0E
	OpGETATTR      = 0x0F
	OpRENAME       = 0x11
	OpDELETE       = 0x13
	OpOPEN         = 0x16
	OpCREATE       = 0x17
	OpFINDFIRST    = 0x1B
	OpFINDNEXT     = 0x1C
	OpSKFMEND      = 0x21
	OpUnknown2D    = 0x2D
	OpSPOPNFIL     = 0x2E
)

// openModeWriteOnlyBit and openModeReadWriteMask mirror the DOS open-mode
// encoding the legacy host keeps in the SFT: bit 0 set means write-only,
// and the low two bits both clear means read-only (spec.md §4.E READFIL /
// WRITEFIL entries).
const (
	openModeWriteOnlyBit = 0x01
	openModeReadWriteMask = 0x03
)

// deviceInfoFixedBits are the constant high bits of an SFT device-info
// word; the low 6 bits carry the local drive index (spec.md §4.E "SFT
// population").
const deviceInfoFixedBits = 0x8040

// SFT is the caller's System File Table entry for one open remote file.
// The dispatcher reads and mutates it the way the legacy redirector
// mutated the host's in-memory SFT record (spec.md §4.E).
type SFT struct {
	DeviceInfoWord uint16
	OpenModeLow    byte
	OpenModeHigh   byte
	Position       uint32
	Size           uint32
	FileID         uint16
	Name           [11]byte
	Attr           byte
	Time           uint16
	Date           uint16

	// HandleCount tracks how many host file handles share this SFT entry
	// (DOS supports dup'd handles onto one SFT slot). CLSFIL decrements it
	// unconditionally before inspecting the peer's reply (spec.md §4.E).
	HandleCount int
}

// LocalDrive returns the local drive index carried in the low 6 bits of
// the device-info word (spec.md §4.E "Drive resolution... File-handle
// ops... bottom 6 bits of the SFT's device-info-word").
func (s *SFT) LocalDrive() byte {
	return byte(s.DeviceInfoWord & 0x3F)
}

// populate applies an OPEN/CREATE/SPOPNFIL reply onto the SFT, per spec.md
// §4.E "SFT population on OPEN/CREATE/SPOPNFIL": clear position, set the
// device-info word to 0x8040 | drive, write name and attributes, and
// preserve the open-mode-high byte while overwriting only the low byte.
func (s *SFT) populate(localDrive byte, attr byte, name [11]byte, timeField, dateField uint16, fileID uint16, size uint32, openModeLow byte) {
	s.Position = 0
	s.DeviceInfoWord = deviceInfoFixedBits | uint16(localDrive)
	s.Name = name
	s.Attr = attr
	s.Time = timeField
	s.Date = dateField
	s.FileID = fileID
	s.Size = size
	s.OpenModeLow = openModeLow
}

// isWriteOnly reports whether the SFT's open mode forbids reads
// (spec.md §4.E READFIL: "Reject locally if SFT open-mode has bit 0 set").
func (s *SFT) isWriteOnly() bool {
	return s.OpenModeLow&openModeWriteOnlyBit != 0
}

// isReadOnly reports whether the SFT's open mode forbids writes
// (spec.md §4.E WRITEFIL: "Reject locally if open-mode's low 2 bits are
// zero").
func (s *SFT) isReadOnly() bool {
	return s.OpenModeLow&openModeReadWriteMask == 0
}

// DTA is the directory-search control block of spec.md §3
// "Directory-search control block": drive, search attributes, FCB
// template and the two opaque continuation tokens the peer echoes between
// FINDFIRST and FINDNEXT calls.
type DTA struct {
	Drive         byte
	Attr          byte
	FCBName       [11]byte
	ParentCluster uint16
	EntryIndex    uint16
}

// localDrive returns the local drive from the low 5 bits of the DTA's
// drive byte (spec.md §4.E "Drive resolution... FINDNEXT: low 5 bits of
// the DTA's drive byte").
func (d *DTA) localDrive() byte {
	return d.Drive & 0x1F
}

// DirEntry is the 32-byte directory entry a FINDFIRST/FINDNEXT reply
// describes (spec.md §4.E).
type DirEntry struct {
	Attr byte
	Name [11]byte
	Time uint16
	Date uint16
	Size uint32
}

// CDS is the current-directory structure for one mapped drive: its path
// (first character is the drive letter) and the network flag the host
// sets after install and clears on uninstall (spec.md §4.G).
type CDS struct {
	Path  string
	Flags uint16
}

// localDrive returns the local drive letter index from the CDS path's
// first character (spec.md §4.E "Drive resolution... Everything else:
// first character of the CDS path").
func (c *CDS) localDrive() byte {
	if len(c.Path) == 0 {
		return 0xFF
	}
	return driveLetterIndex(c.Path[0])
}

func driveLetterIndex(b byte) byte {
	if b >= 'a' && b <= 'z' {
		b -= 'a' - 'A'
	}
	if b < 'A' || b > 'Z' {
		return 0xFF
	}
	return b - 'A'
}
