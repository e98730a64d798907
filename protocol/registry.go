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

import "fmt"

// Value is implemented by every decoded module payload: the standard
// module types in modules_standard.go, plus Opaque for anything the
// registry doesn't recognize. The marker method keeps this a closed set
// from outside the package, per the "polymorphic modules" design note:
// unknown wire modules decode to Opaque rather than to a new Value
// implementation defined by a caller.
type Value interface {
	moduleValue()
	// Identifier returns the module identifier this value encodes as.
	Identifier() ModuleIdentifier
}

// Decoder turns a module's raw payload bytes into a typed Value.
type Decoder func(payload []byte) (Value, error)

// Encoder turns a typed Value back into raw payload bytes.
type Encoder func(v Value) ([]byte, error)

type registryEntry struct {
	decode Decoder
	encode Encoder
}

// Registry maps module identifiers to their decode/encode pair. It is
// built once at startup and is read-only afterward: the wire-decode path
// only ever calls Decode, never mutates the map, so a Registry can be
// shared safely across a Producer and a Consumer instance without
// synchronization.
type Registry struct {
	entries map[ModuleIdentifier]registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ModuleIdentifier]registryEntry)}
}

// Register adds a decoder/encoder pair for id. Re-registering an id
// overwrites the previous entry; callers are expected to do all
// registration before handing the Registry to a Producer or Consumer.
func (r *Registry) Register(id ModuleIdentifier, decode Decoder, encode Encoder) {
	r.entries[id] = registryEntry{decode: decode, encode: encode}
}

// Decode dispatches a ModuleLayer's payload to its registered decoder. An
// unregistered identifier decodes to Opaque rather than failing, so
// unknown modules are retained with their raw bytes instead of being
// dropped. No separate "unknown module observed" event is raised: an
// Opaque value travels in the same module map as the decoded ones.
func (r *Registry) Decode(id ModuleIdentifier, payload []byte) (Value, error) {
	if entry, ok := r.entries[id]; ok {
		return entry.decode(payload)
	}
	raw := make([]byte, len(payload))
	copy(raw, payload)
	return Opaque{ID: id, Payload: raw}, nil
}

// Encode serializes v back to wire payload bytes, using the registered
// encoder for its identifier, or passing Opaque payloads through
// unchanged.
func (r *Registry) Encode(v Value) ([]byte, error) {
	if op, ok := v.(Opaque); ok {
		return op.Payload, nil
	}
	entry, ok := r.entries[v.Identifier()]
	if !ok {
		return nil, fmt.Errorf("otp: no encoder registered for module %s", v.Identifier())
	}
	return entry.encode(v)
}

// Known reports whether id has a registered decoder.
func (r *Registry) Known(id ModuleIdentifier) bool {
	_, ok := r.entries[id]
	return ok
}

// Opaque is the module Value used for payloads with no registered
// decoder: the decoder dispatch preserves the bytes verbatim instead of
// discarding them.
type Opaque struct {
	ID      ModuleIdentifier
	Payload []byte
}

func (Opaque) moduleValue() {}

// Identifier implements Value.
func (o Opaque) Identifier() ModuleIdentifier { return o.ID }

// NewStandardRegistry returns a Registry pre-populated with the six
// standard (manufacturer ID 0) modules defined by E1.59: Position,
// PositionVelocityAccel, Rotation, RotationVelocityAccel, Scale and
// Parent.
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	r.Register(StandardModule(ModuleNumberPosition), decodePosition, encodePosition)
	r.Register(StandardModule(ModuleNumberPositionVelocityAccel), decodePositionVelocityAccel, encodePositionVelocityAccel)
	r.Register(StandardModule(ModuleNumberRotation), decodeRotation, encodeRotation)
	r.Register(StandardModule(ModuleNumberRotationVelocityAccel), decodeRotationVelocityAccel, encodeRotationVelocityAccel)
	r.Register(StandardModule(ModuleNumberScale), decodeScale, encodeScale)
	r.Register(StandardModule(ModuleNumberParent), decodeParent, encodeParent)
	return r
}
