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

import "errors"

// Sentinel errors for the wire-level failure modes of ANSI E1.59. All of
// these are local: a caller decoding a datagram off the wire gets one of
// these back and drops the packet, it never propagates further.
var (
	// ErrMalformedPacket covers any wire-level violation: short buffer, a
	// length field that overflows the enclosing buffer or underflows below
	// the minimum header, an unrecognized packet identifier or vector.
	ErrMalformedPacket = errors.New("otp: malformed packet")

	// ErrAddressOutOfRange means a system/group/point number falls outside
	// its valid range.
	ErrAddressOutOfRange = errors.New("otp: address out of range")
)
