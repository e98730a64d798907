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

// Advertisement sub-vectors, nested inside a RootLayer whose Vector is
// VectorAdvertisementMessage.
const (
	VectorModuleAdvertisement uint32 = 0x00000002
	VectorNameAdvertisement   uint32 = 0x00000003
	VectorSystemAdvertisement uint32 = 0x00000004
)

const advertisementHeaderSize = 4 /*vector*/ + 2 /*length*/

// ModuleAdvertisementLayer lists the module identifiers a producer
// supports, or (from a consumer) the identifiers it wants decoded.
type ModuleAdvertisementLayer struct {
	Modules []ModuleIdentifier
}

// MarshalBinary serializes the layer.
func (m *ModuleAdvertisementLayer) MarshalBinary() ([]byte, error) {
	total := advertisementHeaderSize + 4*len(m.Modules)
	b := make([]byte, total)
	binary.BigEndian.PutUint32(b[0:], VectorModuleAdvertisement)
	pos := advertisementHeaderSize
	for _, id := range m.Modules {
		binary.BigEndian.PutUint16(b[pos:], id.ManufacturerID)
		binary.BigEndian.PutUint16(b[pos+2:], id.ModuleNumber)
		pos += 4
	}
	patchLength(b, 4, total-6)
	return b, nil
}

// UnmarshalBinary parses the layer out of b.
func (m *ModuleAdvertisementLayer) UnmarshalBinary(b []byte) error {
	if len(b) < advertisementHeaderSize {
		return fmt.Errorf("%w: module advertisement too short", ErrMalformedPacket)
	}
	if u32(b) != VectorModuleAdvertisement {
		return fmt.Errorf("%w: unexpected module advertisement vector", ErrMalformedPacket)
	}
	declaredLen := int(u16(b[4:]))
	if err := checkLength(declaredLen, len(b)-6); err != nil {
		return err
	}
	if declaredLen%4 != 0 {
		return fmt.Errorf("%w: module advertisement body not a multiple of 4 bytes", ErrMalformedPacket)
	}
	m.Modules = m.Modules[:0]
	pos := 6
	for i := 0; i < declaredLen/4; i++ {
		m.Modules = append(m.Modules, ModuleIdentifier{
			ManufacturerID: u16(b[pos:]),
			ModuleNumber:   u16(b[pos+2:]),
		})
		pos += 4
	}
	return nil
}

// SystemAdvertisementLayer lists the system numbers a producer publishes.
type SystemAdvertisementLayer struct {
	Systems []uint8
}

// MarshalBinary serializes the layer.
func (s *SystemAdvertisementLayer) MarshalBinary() ([]byte, error) {
	total := advertisementHeaderSize + len(s.Systems)
	b := make([]byte, total)
	binary.BigEndian.PutUint32(b[0:], VectorSystemAdvertisement)
	copy(b[advertisementHeaderSize:], s.Systems)
	patchLength(b, 4, total-6)
	return b, nil
}

// UnmarshalBinary parses the layer out of b.
func (s *SystemAdvertisementLayer) UnmarshalBinary(b []byte) error {
	if len(b) < advertisementHeaderSize {
		return fmt.Errorf("%w: system advertisement too short", ErrMalformedPacket)
	}
	if u32(b) != VectorSystemAdvertisement {
		return fmt.Errorf("%w: unexpected system advertisement vector", ErrMalformedPacket)
	}
	declaredLen := int(u16(b[4:]))
	if err := checkLength(declaredLen, len(b)-6); err != nil {
		return err
	}
	s.Systems = append([]uint8(nil), b[6:6+declaredLen]...)
	for _, sys := range s.Systems {
		if sys < MinSystemNumber || sys > MaxSystemNumber {
			return fmt.Errorf("%w: advertised system %d out of range", ErrAddressOutOfRange, sys)
		}
	}
	return nil
}

const nameEntrySize = 1 /*system*/ + 2 /*group*/ + 4 /*point*/ + NameSize

// NameEntry pairs an address with the point name a producer exposes for
// it.
type NameEntry struct {
	Address Address
	Name    string
}

// NameAdvertisementLayer lists (address, name) pairs. When the full list
// exceeds a single datagram's payload budget it is split across folio
// pages by the caller; this layer only encodes/decodes one page's worth
// of entries.
type NameAdvertisementLayer struct {
	Names []NameEntry
}

// MarshalBinary serializes the layer.
func (n *NameAdvertisementLayer) MarshalBinary() ([]byte, error) {
	total := advertisementHeaderSize + nameEntrySize*len(n.Names)
	b := make([]byte, total)
	binary.BigEndian.PutUint32(b[0:], VectorNameAdvertisement)
	pos := advertisementHeaderSize
	for _, e := range n.Names {
		b[pos] = e.Address.System
		binary.BigEndian.PutUint16(b[pos+1:], e.Address.Group)
		binary.BigEndian.PutUint32(b[pos+3:], e.Address.Point)
		putName(b[pos+7:pos+nameEntrySize], e.Name)
		pos += nameEntrySize
	}
	patchLength(b, 4, total-6)
	return b, nil
}

// UnmarshalBinary parses the layer out of b.
func (n *NameAdvertisementLayer) UnmarshalBinary(b []byte) error {
	if len(b) < advertisementHeaderSize {
		return fmt.Errorf("%w: name advertisement too short", ErrMalformedPacket)
	}
	if u32(b) != VectorNameAdvertisement {
		return fmt.Errorf("%w: unexpected name advertisement vector", ErrMalformedPacket)
	}
	declaredLen := int(u16(b[4:]))
	if err := checkLength(declaredLen, len(b)-6); err != nil {
		return err
	}
	if declaredLen%nameEntrySize != 0 {
		return fmt.Errorf("%w: name advertisement body not a multiple of entry size", ErrMalformedPacket)
	}
	n.Names = n.Names[:0]
	pos := 6
	count := declaredLen / nameEntrySize
	for i := 0; i < count; i++ {
		addr := Address{
			System: b[pos],
			Group:  u16(b[pos+1:]),
			Point:  u32(b[pos+3:]),
		}
		name := getName(b[pos+7 : pos+nameEntrySize])
		n.Names = append(n.Names, NameEntry{Address: addr, Name: name})
		pos += nameEntrySize
	}
	return nil
}
