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

const moduleHeaderSize = 6 // manufacturer ID (2) + module number (2) + length (2)

// ModuleLayer is the innermost PDU layer: a typed payload attached to a
// point. Unlike Transform/Point layers, its Length field counts the
// layer's total size, header included.
type ModuleLayer struct {
	Identifier ModuleIdentifier
	Payload    []byte
}

// MarshalBinaryTo writes the module layer into b and returns the number
// of bytes written.
func (m *ModuleLayer) MarshalBinaryTo(b []byte) (int, error) {
	total := moduleHeaderSize + len(m.Payload)
	if len(b) < total {
		return 0, fmt.Errorf("%w: buffer too small for module layer", ErrMalformedPacket)
	}
	binary.BigEndian.PutUint16(b[0:], m.Identifier.ManufacturerID)
	binary.BigEndian.PutUint16(b[2:], m.Identifier.ModuleNumber)
	binary.BigEndian.PutUint16(b[4:], uint16(total))
	copy(b[moduleHeaderSize:], m.Payload)
	return total, nil
}

// MarshalBinary allocates a buffer and serializes the module layer.
func (m *ModuleLayer) MarshalBinary() ([]byte, error) {
	b := make([]byte, moduleHeaderSize+len(m.Payload))
	n, err := m.MarshalBinaryTo(b)
	if err != nil {
		return nil, err
	}
	return b[:n], nil
}

// UnmarshalBinary parses a module layer out of b. b must contain exactly
// one module layer's worth of bytes (callers slice it out using the
// length field, as PointLayer.UnmarshalBinary does).
func (m *ModuleLayer) UnmarshalBinary(b []byte) error {
	if len(b) < moduleHeaderSize {
		return fmt.Errorf("%w: module layer too short", ErrMalformedPacket)
	}
	m.Identifier.ManufacturerID = u16(b[0:])
	m.Identifier.ModuleNumber = u16(b[2:])
	length := int(u16(b[4:]))
	if length != len(b) {
		return fmt.Errorf("%w: module layer declares length %d but got %d bytes", ErrMalformedPacket, length, len(b))
	}
	m.Payload = b[moduleHeaderSize:]
	return nil
}
