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
	"bytes"
	"encoding/binary"
	"fmt"
)

// packetIdentifier is the fixed 12-byte literal that opens every OTP
// datagram. No other value is accepted.
var packetIdentifier = [12]byte{'O', 'T', 'P', '-', 'E', '1', '.', '5', '9', 0, 0, 0}

// Vector identifies the kind of message carried by the OTP root layer.
type Vector uint32

// Root-layer vectors defined by E1.59.
const (
	VectorTransformMessage     Vector = 0x00000001
	VectorAdvertisementMessage Vector = 0x00000002
)

const (
	identifierSize = 12
	rootFixedSize  = identifierSize + 1 /*flags*/ + 2 /*length*/ + 4 /*vector*/ + 16 /*cid*/ +
		4 /*folio*/ + 2 /*page*/ + 2 /*lastPage*/ + 1 /*options*/ + 4 /*reserved*/ + NameSize
	// minRootSize is the smallest a valid root layer can be: the fixed
	// header plus a one-byte footer-length field declaring zero trailer
	// bytes.
	minRootSize = rootFixedSize + 1

	lengthFieldOffset = identifierSize + 1
)

// RootLayer is the outermost OTP PDU: every datagram on the wire starts
// with one of these, wrapping either a TransformLayer or one of the
// Module/Name/System advertisement layers in its Body.
type RootLayer struct {
	CID           CID
	Vector        Vector
	Folio         uint32
	Page          uint16
	LastPage      uint16
	ComponentName string
	// Body holds the marshaled bytes of the nested Transform or
	// Advertisement layer; Vector says which.
	Body []byte
}

// MarshalBinary serializes the root layer, including its nested Body, and
// patches in the final length field. Returns ErrMalformedPacket if the
// result would exceed MaxDatagramSize.
func (r *RootLayer) MarshalBinary() ([]byte, error) {
	total := rootFixedSize + 1 + len(r.Body) // +1 for zero-length footer
	if total > MaxDatagramSize {
		return nil, fmt.Errorf("%w: encoded root layer is %d bytes, exceeds %d", ErrMalformedPacket, total, MaxDatagramSize)
	}
	b := make([]byte, total)
	copy(b[0:identifierSize], packetIdentifier[:])
	b[identifierSize] = 0 // flags, reserved
	pos := identifierSize + 1 + 2
	binary.BigEndian.PutUint32(b[pos:], uint32(r.Vector))
	pos += 4
	copy(b[pos:], r.CID[:])
	pos += 16
	binary.BigEndian.PutUint32(b[pos:], r.Folio)
	pos += 4
	binary.BigEndian.PutUint16(b[pos:], r.Page)
	pos += 2
	binary.BigEndian.PutUint16(b[pos:], r.LastPage)
	pos += 2
	b[pos] = 0 // options, reserved zero
	pos++
	pos += 4 // reserved
	putName(b[pos:pos+NameSize], r.ComponentName)
	pos += NameSize
	b[pos] = 0 // footer length: this revision defines zero trailer
	pos++
	copy(b[pos:], r.Body)
	pos += len(r.Body)

	// length field excludes the flags/length field itself
	patchLength(b, lengthFieldOffset, total-lengthFieldOffset-2)
	return b, nil
}

// UnmarshalBinary parses an OTP root layer out of b. The nested Body is
// left unparsed: callers dispatch to TransformLayer or an advertisement
// layer based on Vector.
func (r *RootLayer) UnmarshalBinary(b []byte) error {
	if len(b) < minRootSize || len(b) > MaxDatagramSize {
		return fmt.Errorf("%w: datagram length %d outside [%d,%d]", ErrMalformedPacket, len(b), minRootSize, MaxDatagramSize)
	}
	if !bytes.Equal(b[0:identifierSize], packetIdentifier[:]) {
		return fmt.Errorf("%w: packet identifier mismatch", ErrMalformedPacket)
	}
	pos := identifierSize + 1 // skip flags
	declaredLen := int(u16(b[pos:]))
	pos += 2
	remainderStart := pos // everything from here counts toward declaredLen

	vector := Vector(u32(b[pos:]))
	if vector != VectorTransformMessage && vector != VectorAdvertisementMessage {
		return fmt.Errorf("%w: unrecognized vector 0x%08x", ErrMalformedPacket, uint32(vector))
	}
	r.Vector = vector
	pos += 4
	copy(r.CID[:], b[pos:pos+16])
	pos += 16
	r.Folio = u32(b[pos:])
	pos += 4
	r.Page = u16(b[pos:])
	pos += 2
	r.LastPage = u16(b[pos:])
	pos += 2
	pos++    // options, ignored (reserved zero)
	pos += 4 // reserved
	r.ComponentName = getName(b[pos : pos+NameSize])
	pos += NameSize

	if pos >= len(b) {
		return fmt.Errorf("%w: truncated before footer length", ErrMalformedPacket)
	}
	footerLen := int(b[pos])
	pos++
	if pos+footerLen > len(b) {
		return fmt.Errorf("%w: footer length %d overruns buffer", ErrMalformedPacket, footerLen)
	}
	pos += footerLen // skip trailer bytes (tolerated even though current revision defines none)

	bodyStart := pos
	bodyEnd := remainderStart + declaredLen
	if bodyEnd < bodyStart || bodyEnd > len(b) {
		return fmt.Errorf("%w: declared length %d inconsistent with footer-adjusted header", ErrMalformedPacket, declaredLen)
	}

	r.Body = b[bodyStart:bodyEnd]
	return nil
}
