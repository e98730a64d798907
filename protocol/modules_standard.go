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

// PositionScaling selects the unit of the Position module's x/y/z fields.
type PositionScaling uint8

// Position scaling units.
const (
	PositionScalingMicrometers PositionScaling = 0
	PositionScalingMillimeters PositionScaling = 1
)

// Position is standard module 1: absolute position.
type Position struct {
	Scaling PositionScaling
	X, Y, Z int32
}

func (Position) moduleValue() {}

// Identifier implements Value.
func (Position) Identifier() ModuleIdentifier { return StandardModule(ModuleNumberPosition) }

func decodePosition(b []byte) (Value, error) {
	if len(b) != 13 {
		return nil, fmt.Errorf("%w: position module wants 13 bytes, got %d", ErrMalformedPacket, len(b))
	}
	return Position{
		Scaling: PositionScaling(b[0]),
		X:       int32(u32(b[1:])),
		Y:       int32(u32(b[5:])),
		Z:       int32(u32(b[9:])),
	}, nil
}

func encodePosition(v Value) ([]byte, error) {
	p, ok := v.(Position)
	if !ok {
		return nil, fmt.Errorf("otp: not a Position value")
	}
	b := make([]byte, 13)
	b[0] = byte(p.Scaling)
	binary.BigEndian.PutUint32(b[1:], uint32(p.X))
	binary.BigEndian.PutUint32(b[5:], uint32(p.Y))
	binary.BigEndian.PutUint32(b[9:], uint32(p.Z))
	return b, nil
}

// PositionVelocityAccel is standard module 2: linear velocity and
// acceleration.
type PositionVelocityAccel struct {
	VX, VY, VZ int32
	AX, AY, AZ int32
}

func (PositionVelocityAccel) moduleValue() {}

// Identifier implements Value.
func (PositionVelocityAccel) Identifier() ModuleIdentifier {
	return StandardModule(ModuleNumberPositionVelocityAccel)
}

func decodePositionVelocityAccel(b []byte) (Value, error) {
	if len(b) != 24 {
		return nil, fmt.Errorf("%w: position velocity/accel module wants 24 bytes, got %d", ErrMalformedPacket, len(b))
	}
	return PositionVelocityAccel{
		VX: int32(u32(b[0:])),
		VY: int32(u32(b[4:])),
		VZ: int32(u32(b[8:])),
		AX: int32(u32(b[12:])),
		AY: int32(u32(b[16:])),
		AZ: int32(u32(b[20:])),
	}, nil
}

func encodePositionVelocityAccel(v Value) ([]byte, error) {
	p, ok := v.(PositionVelocityAccel)
	if !ok {
		return nil, fmt.Errorf("otp: not a PositionVelocityAccel value")
	}
	b := make([]byte, 24)
	binary.BigEndian.PutUint32(b[0:], uint32(p.VX))
	binary.BigEndian.PutUint32(b[4:], uint32(p.VY))
	binary.BigEndian.PutUint32(b[8:], uint32(p.VZ))
	binary.BigEndian.PutUint32(b[12:], uint32(p.AX))
	binary.BigEndian.PutUint32(b[16:], uint32(p.AY))
	binary.BigEndian.PutUint32(b[20:], uint32(p.AZ))
	return b, nil
}

// degreesPerUnit is the Rotation module's unit: 10^-5 degrees.
const degreesPerUnit = 100000

// Rotation is standard module 3: absolute rotation, in units of 10^-5
// degrees, wrapping modulo 360 degrees.
type Rotation struct {
	X, Y, Z uint32
}

func (Rotation) moduleValue() {}

// Identifier implements Value.
func (Rotation) Identifier() ModuleIdentifier { return StandardModule(ModuleNumberRotation) }

// WrapDegrees normalizes a raw rotation unit value to [0, 360*10^5).
func WrapDegrees(raw uint32) uint32 {
	const full = 360 * degreesPerUnit
	return raw % full
}

func decodeRotation(b []byte) (Value, error) {
	if len(b) != 12 {
		return nil, fmt.Errorf("%w: rotation module wants 12 bytes, got %d", ErrMalformedPacket, len(b))
	}
	return Rotation{
		X: WrapDegrees(u32(b[0:])),
		Y: WrapDegrees(u32(b[4:])),
		Z: WrapDegrees(u32(b[8:])),
	}, nil
}

func encodeRotation(v Value) ([]byte, error) {
	r, ok := v.(Rotation)
	if !ok {
		return nil, fmt.Errorf("otp: not a Rotation value")
	}
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:], WrapDegrees(r.X))
	binary.BigEndian.PutUint32(b[4:], WrapDegrees(r.Y))
	binary.BigEndian.PutUint32(b[8:], WrapDegrees(r.Z))
	return b, nil
}

// RotationVelocityAccel is standard module 4: rotational velocity and
// acceleration.
type RotationVelocityAccel struct {
	VX, VY, VZ int32
	AX, AY, AZ int32
}

func (RotationVelocityAccel) moduleValue() {}

// Identifier implements Value.
func (RotationVelocityAccel) Identifier() ModuleIdentifier {
	return StandardModule(ModuleNumberRotationVelocityAccel)
}

func decodeRotationVelocityAccel(b []byte) (Value, error) {
	if len(b) != 24 {
		return nil, fmt.Errorf("%w: rotation velocity/accel module wants 24 bytes, got %d", ErrMalformedPacket, len(b))
	}
	return RotationVelocityAccel{
		VX: int32(u32(b[0:])),
		VY: int32(u32(b[4:])),
		VZ: int32(u32(b[8:])),
		AX: int32(u32(b[12:])),
		AY: int32(u32(b[16:])),
		AZ: int32(u32(b[20:])),
	}, nil
}

func encodeRotationVelocityAccel(v Value) ([]byte, error) {
	r, ok := v.(RotationVelocityAccel)
	if !ok {
		return nil, fmt.Errorf("otp: not a RotationVelocityAccel value")
	}
	b := make([]byte, 24)
	binary.BigEndian.PutUint32(b[0:], uint32(r.VX))
	binary.BigEndian.PutUint32(b[4:], uint32(r.VY))
	binary.BigEndian.PutUint32(b[8:], uint32(r.VZ))
	binary.BigEndian.PutUint32(b[12:], uint32(r.AX))
	binary.BigEndian.PutUint32(b[16:], uint32(r.AY))
	binary.BigEndian.PutUint32(b[20:], uint32(r.AZ))
	return b, nil
}

// ScaleUnity is the Scale module value representing 1.0x (no scaling).
const ScaleUnity = 1000000

// Scale is standard module 5: non-uniform scale, 1,000,000 = unity.
type Scale struct {
	X, Y, Z int32
}

func (Scale) moduleValue() {}

// Identifier implements Value.
func (Scale) Identifier() ModuleIdentifier { return StandardModule(ModuleNumberScale) }

func decodeScale(b []byte) (Value, error) {
	if len(b) != 12 {
		return nil, fmt.Errorf("%w: scale module wants 12 bytes, got %d", ErrMalformedPacket, len(b))
	}
	return Scale{
		X: int32(u32(b[0:])),
		Y: int32(u32(b[4:])),
		Z: int32(u32(b[8:])),
	}, nil
}

func encodeScale(v Value) ([]byte, error) {
	s, ok := v.(Scale)
	if !ok {
		return nil, fmt.Errorf("otp: not a Scale value")
	}
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:], uint32(s.X))
	binary.BigEndian.PutUint32(b[4:], uint32(s.Y))
	binary.BigEndian.PutUint32(b[8:], uint32(s.Z))
	return b, nil
}

// Parent is standard module 6: the point this one is positioned relative
// to.
type Parent struct {
	System   uint8
	Group    uint16
	Point    uint32
	Relative bool
}

func (Parent) moduleValue() {}

// Identifier implements Value.
func (Parent) Identifier() ModuleIdentifier { return StandardModule(ModuleNumberParent) }

func decodeParent(b []byte) (Value, error) {
	if len(b) != 8 {
		return nil, fmt.Errorf("%w: parent module wants 8 bytes, got %d", ErrMalformedPacket, len(b))
	}
	return Parent{
		System:   b[0],
		Group:    u16(b[1:]),
		Point:    u32(b[3:]),
		Relative: b[7] != 0,
	}, nil
}

func encodeParent(v Value) ([]byte, error) {
	p, ok := v.(Parent)
	if !ok {
		return nil, fmt.Errorf("otp: not a Parent value")
	}
	b := make([]byte, 8)
	b[0] = p.System
	binary.BigEndian.PutUint16(b[1:], p.Group)
	binary.BigEndian.PutUint32(b[3:], p.Point)
	if p.Relative {
		b[7] = 1
	}
	return b, nil
}
