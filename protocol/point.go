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

package protocol

import (
	"encoding/binary"
	"fmt"
)

// VectorPoint is the Point layer's own vector, nested inside a Transform
// layer.
const VectorPoint uint32 = 0x00000001

const pointFixedSize = 4 /*vector*/ + 2 /*length*/ + 1 /*priority*/ + 2 /*group*/ + 4 /*point*/ + 8 /*timestamp*/

// PointLayer addresses a single tracked point and carries its Module
// layers.
type PointLayer struct {
	Priority  uint8
	Group     uint16
	Point     uint32
	Timestamp uint64
	Modules   [][]byte // marshaled ModuleLayer bodies
}

// MarshalBinary serializes the Point layer.
func (p *PointLayer) MarshalBinaryTo(b []byte) (int, error) {
	if err := ValidatePriority(p.Priority); err != nil {
		return 0, err
	}
	bodyLen := 0
	for _, m := range p.Modules {
		bodyLen += len(m)
	}
	total := pointFixedSize + bodyLen
	if len(b) < total {
		return 0, fmt.Errorf("%w: buffer too small for point layer", ErrMalformedPacket)
	}
	binary.BigEndian.PutUint32(b[0:], VectorPoint)
	pos := 6
	b[pos] = p.Priority
	pos++
	binary.BigEndian.PutUint16(b[pos:], p.Group)
	pos += 2
	binary.BigEndian.PutUint32(b[pos:], p.Point)
	pos += 4
	binary.BigEndian.PutUint64(b[pos:], p.Timestamp)
	pos += 8
	for _, m := range p.Modules {
		pos += copy(b[pos:], m)
	}
	patchLength(b, 4, total-6)
	return total, nil
}

// MarshalBinary allocates a buffer and serializes the Point layer into it.
func (p *PointLayer) MarshalBinary() ([]byte, error) {
	bodyLen := 0
	for _, m := range p.Modules {
		bodyLen += len(m)
	}
	b := make([]byte, pointFixedSize+bodyLen)
	n, err := p.MarshalBinaryTo(b)
	if err != nil {
		return nil, err
	}
	return b[:n], nil
}

// UnmarshalBinary parses a Point layer out of b, splitting nested Module
// layers by their own declared lengths.
func (p *PointLayer) UnmarshalBinary(b []byte) error {
	if len(b) < pointFixedSize {
		return fmt.Errorf("%w: point layer too short", ErrMalformedPacket)
	}
	vector := u32(b)
	if vector != VectorPoint {
		return fmt.Errorf("%w: unexpected point vector 0x%08x", ErrMalformedPacket, vector)
	}
	declaredLen := int(u16(b[4:]))
	if err := checkLength(declaredLen, len(b)-6); err != nil {
		return err
	}
	pos := 6
	p.Priority = b[pos]
	if err := ValidatePriority(p.Priority); err != nil {
		return err
	}
	pos++
	p.Group = u16(b[pos:])
	if p.Group < MinGroupNumber || p.Group > MaxGroupNumber {
		return fmt.Errorf("%w: group %d outside range", ErrAddressOutOfRange, p.Group)
	}
	pos += 2
	p.Point = u32(b[pos:])
	if p.Point < MinPointNumber || p.Point > MaxPointNumber {
		return fmt.Errorf("%w: point %d outside range", ErrAddressOutOfRange, p.Point)
	}
	pos += 4
	p.Timestamp = u64(b[pos:])
	pos += 8

	end := 6 + declaredLen
	if end > len(b) {
		return fmt.Errorf("%w: point layer length overruns buffer", ErrMalformedPacket)
	}
	p.Modules = p.Modules[:0]
	for pos < end {
		if pos+6 > end {
			return fmt.Errorf("%w: truncated module layer header", ErrMalformedPacket)
		}
		// the Module layer's length field counts the whole layer
		// (6-byte header included), unlike Transform/Point layers.
		moduleTotal := int(u16(b[pos+4:]))
		if moduleTotal < 6 {
			return fmt.Errorf("%w: module layer length %d smaller than header", ErrMalformedPacket, moduleTotal)
		}
		if pos+moduleTotal > end {
			return fmt.Errorf("%w: module layer length overruns point layer", ErrMalformedPacket)
		}
		p.Modules = append(p.Modules, b[pos:pos+moduleTotal])
		pos += moduleTotal
	}
	return nil
}

// Address returns the (system, group, point) address this point belongs
// to, given the system number of the enclosing Transform layer.
func (p *PointLayer) Address(system uint8) Address {
	return Address{System: system, Group: p.Group, Point: p.Point}
}
