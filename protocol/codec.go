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
	"unicode/utf8"
)

// NameSize is the fixed wire size, in bytes, of a component or point name
// field.
const NameSize = 32

// MaxDatagramSize is the largest OTP datagram this implementation will
// produce or accept, chosen to leave headroom for IPv4/UDP headers under
// the standard 1500-byte MTU.
const MaxDatagramSize = 1472

// putName writes name into b (which must be NameSize bytes) as UTF-8,
// zero-padded, truncating at the NameSize ceiling without splitting a
// multi-byte rune.
func putName(b []byte, name string) {
	for i := range b {
		b[i] = 0
	}
	if len(name) <= NameSize {
		copy(b, name)
		return
	}
	// truncate on a rune boundary
	n := NameSize
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	copy(b, name[:n])
}

// getName decodes a NameSize-byte fixed name field, stopping at the first
// zero byte and replacing invalid UTF-8 sequences with the Unicode
// replacement character.
func getName(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	raw := b[:n]
	if utf8.Valid(raw) {
		return string(raw)
	}
	out := make([]rune, 0, n)
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		out = append(out, r)
		raw = raw[size:]
	}
	return string(out)
}

// patchLength overwrites the 16-bit PDU length field recorded at offset
// with bodyLen once a layer's body size is known. The OTP convention
// excludes the flags/length byte itself from the count, matching
// checkPacketLength-style validation in sibling protocol packages.
func patchLength(b []byte, offset int, bodyLen int) {
	binary.BigEndian.PutUint16(b[offset:], uint16(bodyLen))
}

// checkLength cross-checks a PDU's declared length field against the
// number of bytes actually available, returning ErrMalformedPacket on any
// mismatch per E1.59's length/footer validation rule.
func checkLength(declared, available int) error {
	if declared != available {
		return fmt.Errorf("%w: declared length %d does not match %d available bytes", ErrMalformedPacket, declared, available)
	}
	return nil
}
