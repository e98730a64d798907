/*
Copyright (c) the go-otp authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package protocol implements the ANSI E1.59-2021 Object Transform Protocol
// wire format: the nested OTP root / Transform / Point / Module PDU layers,
// folio/page reassembly and the module registry.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// System, Group and Point numbers as per E1.59 table of address ranges.
const (
	MinSystemNumber = 1
	MaxSystemNumber = 200
	MinGroupNumber  = 1
	MaxGroupNumber  = 60000
	MinPointNumber  = 1
	MaxPointNumber  = 4000000000
)

// MinPriority and MaxPriority bound the Priority range. DefaultPriority is
// used when a point is added without an explicit priority.
const (
	MinPriority     = 0
	MaxPriority     = 200
	DefaultPriority = 100
)

// CID is the 128-bit Component Identifier that identifies a producer or
// consumer instance. It is compared as a big-endian unsigned integer for
// tie-breaking in the consumer merge algorithm.
type CID [16]byte

// String renders the CID in UUID-like dashed hex form.
func (c CID) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", c[0:4], c[4:6], c[6:8], c[8:10], c[10:16])
}

// Less reports whether c is numerically lower than other when both are
// read as a 128-bit big-endian unsigned integer. Used to break priority
// ties during consumer merge: the lower CID wins.
func (c CID) Less(other CID) bool {
	for i := range c {
		if c[i] != other[i] {
			return c[i] < other[i]
		}
	}
	return false
}

// Address identifies a point by (system, group, point). Addresses compare
// lexicographically in that order.
type Address struct {
	System uint8
	Group  uint16
	Point  uint32
}

// Validate checks that each component of the address falls within its
// E1.59-defined range.
func (a Address) Validate() error {
	if a.System < MinSystemNumber || a.System > MaxSystemNumber {
		return fmt.Errorf("%w: system %d outside [%d,%d]", ErrAddressOutOfRange, a.System, MinSystemNumber, MaxSystemNumber)
	}
	if a.Group < MinGroupNumber || a.Group > MaxGroupNumber {
		return fmt.Errorf("%w: group %d outside [%d,%d]", ErrAddressOutOfRange, a.Group, MinGroupNumber, MaxGroupNumber)
	}
	if a.Point < MinPointNumber || a.Point > MaxPointNumber {
		return fmt.Errorf("%w: point %d outside [%d,%d]", ErrAddressOutOfRange, a.Point, MinPointNumber, MaxPointNumber)
	}
	return nil
}

// Less implements the lexicographic (system, group, point) ordering.
func (a Address) Less(b Address) bool {
	if a.System != b.System {
		return a.System < b.System
	}
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Point < b.Point
}

// String formats the address as system/group/point.
func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.System, a.Group, a.Point)
}

// ValidatePriority checks that p is within [MinPriority, MaxPriority].
func ValidatePriority(p uint8) error {
	if p < MinPriority || p > MaxPriority {
		return fmt.Errorf("%w: priority %d outside [%d,%d]", ErrAddressOutOfRange, p, MinPriority, MaxPriority)
	}
	return nil
}

// ModuleIdentifier identifies a module type by manufacturer ID and module
// number. Manufacturer ID 0 is reserved for the standard modules defined
// in E1.59 table 4.5.
type ModuleIdentifier struct {
	ManufacturerID uint16
	ModuleNumber   uint16
}

func (m ModuleIdentifier) String() string {
	return fmt.Sprintf("%04x:%04x", m.ManufacturerID, m.ModuleNumber)
}

// Standard module numbers (manufacturer ID 0).
const (
	ModuleNumberPosition               uint16 = 1
	ModuleNumberPositionVelocityAccel  uint16 = 2
	ModuleNumberRotation               uint16 = 3
	ModuleNumberRotationVelocityAccel  uint16 = 4
	ModuleNumberScale                  uint16 = 5
	ModuleNumberParent                 uint16 = 6
	StandardManufacturerID             uint16 = 0
)

// StandardModule builds a ModuleIdentifier under the standard (ESTA)
// manufacturer ID.
func StandardModule(number uint16) ModuleIdentifier {
	return ModuleIdentifier{ManufacturerID: StandardManufacturerID, ModuleNumber: number}
}

// folioLess performs a circular (modulo-2^32) comparison of two folio
// sequence numbers, as required by E1.59 for sequences that wrap. Returns
// true if a precedes b within half the sequence space.
func folioLess(a, b uint32) bool {
	return int32(a-b) < 0
}

// u16 and u32 are small helpers kept here (rather than duplicated across
// every layer file) for reading big-endian fields out of a byte slice
// already known to be long enough; callers are responsible for bounds
// checking before calling them.
func u16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func u32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func u64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
