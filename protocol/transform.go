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

// VectorTransform is the sub-vector value of the Transform layer nested
// inside the OTP root layer when RootLayer.Vector is VectorTransformMessage.
const VectorTransform uint32 = 0x00000001

// OptionFullPointSet is bit 7 of the Transform layer options byte. When
// set, the receiver must treat the contained point list as exhaustive for
// the system at this timestamp.
const OptionFullPointSet uint8 = 1 << 7

const transformFixedSize = 4 /*vector*/ + 2 /*length*/ + 1 /*system*/ + 8 /*timestamp*/ + 1 /*options*/

// TransformLayer carries per-system point data.
type TransformLayer struct {
	System    uint8
	Timestamp uint64 // microseconds since the producer epoch
	FullSet   bool
	Points    [][]byte // marshaled PointLayer bodies
}

// MarshalBinary serializes the Transform layer.
func (t *TransformLayer) MarshalBinary() ([]byte, error) {
	if err := (Address{System: t.System, Group: MinGroupNumber, Point: MinPointNumber}).Validate(); err != nil {
		return nil, err
	}
	bodyLen := 0
	for _, p := range t.Points {
		bodyLen += len(p)
	}
	total := transformFixedSize + bodyLen
	b := make([]byte, total)
	binary.BigEndian.PutUint32(b[0:], VectorTransform)
	pos := 4 + 2 // length patched below
	b[pos] = t.System
	pos++
	binary.BigEndian.PutUint64(b[pos:], t.Timestamp)
	pos += 8
	opts := uint8(0)
	if t.FullSet {
		opts = OptionFullPointSet
	}
	b[pos] = opts
	pos++
	for _, p := range t.Points {
		pos += copy(b[pos:], p)
	}
	patchLength(b, 4, total-4-2)
	return b, nil
}

// UnmarshalBinary parses a Transform layer out of b, splitting nested
// Point layers by their own declared lengths.
func (t *TransformLayer) UnmarshalBinary(b []byte) error {
	if len(b) < transformFixedSize {
		return fmt.Errorf("%w: transform layer too short", ErrMalformedPacket)
	}
	vector := u32(b)
	if vector != VectorTransform {
		return fmt.Errorf("%w: unexpected transform vector 0x%08x", ErrMalformedPacket, vector)
	}
	declaredLen := int(u16(b[4:]))
	if err := checkLength(declaredLen, len(b)-6); err != nil {
		return err
	}
	pos := 6
	t.System = b[pos]
	if err := (Address{System: t.System, Group: MinGroupNumber, Point: MinPointNumber}).Validate(); err != nil {
		return err
	}
	pos++
	t.Timestamp = u64(b[pos:])
	pos += 8
	opts := b[pos]
	t.FullSet = opts&OptionFullPointSet != 0
	pos++

	end := 6 + declaredLen
	if end > len(b) {
		return fmt.Errorf("%w: transform layer length overruns buffer", ErrMalformedPacket)
	}
	t.Points = t.Points[:0]
	for pos < end {
		if pos+6 > end {
			return fmt.Errorf("%w: truncated point layer header", ErrMalformedPacket)
		}
		pointLen := int(u16(b[pos+4:]))
		pointTotal := 6 + pointLen
		if pos+pointTotal > end {
			return fmt.Errorf("%w: point layer length overruns transform layer", ErrMalformedPacket)
		}
		t.Points = append(t.Points, b[pos:pos+pointTotal])
		pos += pointTotal
	}
	return nil
}
