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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootLayerRoundTrip(t *testing.T) {
	cid := CID{0x01}
	r := &RootLayer{
		CID:           cid,
		Vector:        VectorTransformMessage,
		Folio:         42,
		Page:          0,
		LastPage:      0,
		ComponentName: "test-producer",
		Body:          []byte{0xde, 0xad, 0xbe, 0xef},
	}
	encoded, err := r.MarshalBinary()
	require.NoError(t, err)
	require.LessOrEqual(t, len(encoded), MaxDatagramSize)

	var decoded RootLayer
	require.NoError(t, decoded.UnmarshalBinary(encoded))
	require.Equal(t, r.CID, decoded.CID)
	require.Equal(t, r.Vector, decoded.Vector)
	require.Equal(t, r.Folio, decoded.Folio)
	require.Equal(t, r.ComponentName, decoded.ComponentName)
	require.True(t, bytes.Equal(r.Body, decoded.Body))
}

func TestRootLayerRejectsBadIdentifier(t *testing.T) {
	buf := make([]byte, 1472)
	var r RootLayer
	err := r.UnmarshalBinary(buf)
	require.ErrorIs(t, err, ErrMalformedPacket)
}

func TestRootLayerRejectsUnknownVector(t *testing.T) {
	r := &RootLayer{Vector: 0xFFFFFFFF, ComponentName: "x"}
	encoded, err := r.MarshalBinary()
	require.NoError(t, err)
	// MarshalBinary doesn't validate the vector, so this yields a wire
	// packet carrying an invalid vector value.
	var decoded RootLayer
	err = decoded.UnmarshalBinary(encoded)
	require.ErrorIs(t, err, ErrMalformedPacket)
}

func TestRootLayerLengthFooterMismatch(t *testing.T) {
	r := &RootLayer{CID: CID{1}, Vector: VectorTransformMessage, ComponentName: "x"}
	encoded, err := r.MarshalBinary()
	require.NoError(t, err)

	// corrupt: set declared length to 0 and footer length to 10
	binary.BigEndian.PutUint16(encoded[lengthFieldOffset:], 0)
	encoded[rootFixedSize] = 10
	var decoded RootLayer
	err = decoded.UnmarshalBinary(encoded)
	require.ErrorIs(t, err, ErrMalformedPacket)
}

func TestRootLayerRejectsOversizeDatagram(t *testing.T) {
	var decoded RootLayer
	oversized := make([]byte, MaxDatagramSize+1)
	copy(oversized, packetIdentifier[:])
	err := decoded.UnmarshalBinary(oversized)
	require.ErrorIs(t, err, ErrMalformedPacket)
}
