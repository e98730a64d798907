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
	"testing"

	"github.com/stretchr/testify/require"
)

func standardModuleSet(t *testing.T) [][]byte {
	t.Helper()
	registry := NewStandardRegistry()
	values := []Value{
		Position{Scaling: PositionScalingMillimeters, X: 100, Y: -200, Z: 300},
		PositionVelocityAccel{VX: 1, VY: 2, VZ: 3, AX: 4, AY: 5, AZ: 6},
		Rotation{X: 9000000, Y: 0, Z: 36000000 % (360 * degreesPerUnit)},
		RotationVelocityAccel{VX: 1, VY: 1, VZ: 1, AX: 1, AY: 1, AZ: 1},
		Scale{X: ScaleUnity, Y: ScaleUnity, Z: ScaleUnity},
		Parent{System: 5, Group: 10, Point: 100, Relative: true},
	}
	var out [][]byte
	for _, v := range values {
		payload, err := registry.Encode(v)
		require.NoError(t, err)
		ml := &ModuleLayer{Identifier: v.Identifier(), Payload: payload}
		b, err := ml.MarshalBinary()
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestPointLayerRoundTripWithFullModuleSet(t *testing.T) {
	pl := &PointLayer{Priority: DefaultPriority, Group: 7, Point: 42, Timestamp: 1000, Modules: standardModuleSet(t)}
	encoded, err := pl.MarshalBinary()
	require.NoError(t, err)

	var decoded PointLayer
	require.NoError(t, decoded.UnmarshalBinary(encoded))
	require.Equal(t, pl.Priority, decoded.Priority)
	require.Equal(t, pl.Group, decoded.Group)
	require.Equal(t, pl.Point, decoded.Point)
	require.Len(t, decoded.Modules, len(pl.Modules))

	// re-encoding the decoded modules is byte-identical
	reencoded, err := decoded.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded)
}

func TestPointLayerRejectsInvalidPriority(t *testing.T) {
	pl := &PointLayer{Priority: 201, Group: 1, Point: 1}
	_, err := pl.MarshalBinary()
	require.ErrorIs(t, err, ErrAddressOutOfRange)
}

func TestTransformLayerRoundTrip(t *testing.T) {
	pl := &PointLayer{Priority: DefaultPriority, Group: 1, Point: 1, Timestamp: 5}
	pb, err := pl.MarshalBinary()
	require.NoError(t, err)

	tl := &TransformLayer{System: 3, Timestamp: 123456, FullSet: true, Points: [][]byte{pb}}
	encoded, err := tl.MarshalBinary()
	require.NoError(t, err)

	var decoded TransformLayer
	require.NoError(t, decoded.UnmarshalBinary(encoded))
	require.Equal(t, tl.System, decoded.System)
	require.Equal(t, tl.Timestamp, decoded.Timestamp)
	require.True(t, decoded.FullSet)
	require.Len(t, decoded.Points, 1)
}

func TestTransformLayerRejectsBadSystem(t *testing.T) {
	tl := &TransformLayer{System: 0}
	_, err := tl.MarshalBinary()
	require.ErrorIs(t, err, ErrAddressOutOfRange)
}

func TestModuleLayerRejectsLengthMismatch(t *testing.T) {
	ml := &ModuleLayer{Identifier: StandardModule(ModuleNumberScale), Payload: make([]byte, 12)}
	encoded, err := ml.MarshalBinary()
	require.NoError(t, err)

	var decoded ModuleLayer
	require.NoError(t, decoded.UnmarshalBinary(encoded))

	// truncate and expect rejection
	err = decoded.UnmarshalBinary(encoded[:len(encoded)-1])
	require.ErrorIs(t, err, ErrMalformedPacket)
}

func TestAdvertisementLayersRoundTrip(t *testing.T) {
	mod := &ModuleAdvertisementLayer{Modules: []ModuleIdentifier{
		StandardModule(ModuleNumberPosition),
		StandardModule(ModuleNumberRotation),
	}}
	encoded, err := mod.MarshalBinary()
	require.NoError(t, err)
	var decodedMod ModuleAdvertisementLayer
	require.NoError(t, decodedMod.UnmarshalBinary(encoded))
	require.Equal(t, mod.Modules, decodedMod.Modules)

	sys := &SystemAdvertisementLayer{Systems: []uint8{1, 2, 200}}
	encoded, err = sys.MarshalBinary()
	require.NoError(t, err)
	var decodedSys SystemAdvertisementLayer
	require.NoError(t, decodedSys.UnmarshalBinary(encoded))
	require.Equal(t, sys.Systems, decodedSys.Systems)

	names := &NameAdvertisementLayer{Names: []NameEntry{
		{Address: Address{System: 1, Group: 1, Point: 1}, Name: "stage-left"},
	}}
	encoded, err = names.MarshalBinary()
	require.NoError(t, err)
	var decodedNames NameAdvertisementLayer
	require.NoError(t, decodedNames.UnmarshalBinary(encoded))
	require.Equal(t, names.Names, decodedNames.Names)
}

func TestFolioReassemblerSinglePage(t *testing.T) {
	f := NewFolioReassembler()
	key := FolioKey{CID: CID{1}, Kind: 1}
	complete := f.Accept(key, 1, 0, 0, []byte("hello"))
	require.Equal(t, [][]byte{[]byte("hello")}, complete)
}

func TestFolioReassemblerMultiPage(t *testing.T) {
	f := NewFolioReassembler()
	key := FolioKey{CID: CID{1}, Kind: 1}
	require.Nil(t, f.Accept(key, 5, 0, 2, []byte("a")))
	require.Nil(t, f.Accept(key, 5, 1, 2, []byte("b")))
	complete := f.Accept(key, 5, 2, 2, []byte("c"))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, complete)
}

func TestFolioReassemblerAbortsOnMissedPage(t *testing.T) {
	f := NewFolioReassembler()
	key := FolioKey{CID: CID{1}, Kind: 1}
	require.Nil(t, f.Accept(key, 9, 0, 2, []byte("a")))
	// page 1 is lost; page 2 arrives directly
	require.Nil(t, f.Accept(key, 9, 2, 2, []byte("c")))
	require.EqualValues(t, 1, f.Aborted())
}
