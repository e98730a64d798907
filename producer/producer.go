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

package producer

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-otp/otp/protocol"
	log "github.com/sirupsen/logrus"
)

// State is the Producer's lifecycle state.
type State uint8

// Producer states.
const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// pointKey is the (address, priority) pair a point is uniquely keyed by.
type pointKey struct {
	addr     protocol.Address
	priority uint8
}

// point is a Producer's internal record for one tracked point.
type point struct {
	name      string
	priority  uint8
	lastMod   time.Time
	modules   map[protocol.ModuleIdentifier]protocol.Value
	dirty     map[protocol.ModuleIdentifier]bool
	anyDirty  bool
}

// Producer holds a component's point/module state and drives its
// transmit scheduler. The zero value is not usable; construct with New.
//
// Producer is single-writer: exactly one goroutine (the Scheduler's
// timer loop) is expected to call its mutating methods at a time. Mutating calls made from the
// application (AddPoint, RemovePoint, ...) take an internal mutex so they
// may safely interleave with transmit ticks.
type Producer struct {
	mu       sync.Mutex
	config   *Config
	registry *protocol.Registry
	state    State

	points map[pointKey]*point
	// addressModules tracks modules added "to an address" with no priority,
	// so a point added later at a new priority for that address inherits
	// them, per the data model's "add_module ... tracked so that later
	// same-address points inherit it".
	addressModules map[protocol.Address]map[protocol.ModuleIdentifier]protocol.Value

	folio map[uint8]uint32 // per-system transform folio counter
	advertisementFolio uint32
}

// New constructs a Producer in the Idle state.
func New(config *Config, registry *protocol.Registry) *Producer {
	config.Normalize()
	return &Producer{
		config:         config,
		registry:       registry,
		state:          StateIdle,
		points:         make(map[pointKey]*point),
		addressModules: make(map[protocol.Address]map[protocol.ModuleIdentifier]protocol.Value),
		folio:          make(map[uint8]uint32),
	}
}

// State returns the Producer's current lifecycle state.
func (p *Producer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// AddPoint registers a new point at addr and priority (or the
// configured default priority if priority is nil). Returns
// ErrDuplicatePoint if (addr, priority) already exists, or
// protocol.ErrAddressOutOfRange if addr or priority is invalid.
func (p *Producer) AddPoint(addr protocol.Address, name string, priority *uint8) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	prio := p.config.DefaultPriority
	if priority != nil {
		prio = *priority
	}
	if err := protocol.ValidatePriority(prio); err != nil {
		return err
	}
	if len(name) > protocol.NameSize {
		return fmt.Errorf("%w: %q is %d bytes", ErrInvalidName, name, len(name))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := pointKey{addr: addr, priority: prio}
	if _, exists := p.points[key]; exists {
		return fmt.Errorf("%w: %s at priority %d", ErrDuplicatePoint, addr, prio)
	}

	pt := &point{
		name:     name,
		priority: prio,
		lastMod:  time.Now(),
		modules:  make(map[protocol.ModuleIdentifier]protocol.Value),
		dirty:    make(map[protocol.ModuleIdentifier]bool),
	}
	// inherit modules previously added to this address with no priority
	for id, v := range p.addressModules[addr] {
		pt.modules[id] = v
		pt.dirty[id] = true
	}
	pt.anyDirty = len(pt.dirty) > 0
	p.points[key] = pt
	log.Debugf("otp producer: added point %s at priority %d", addr, prio)
	return nil
}

// RemovePoint removes the point at (addr, priority) if priority is
// non-nil, or every point at addr (all priorities) if priority is nil.
// Returns ErrNoSuchPoint if nothing matched.
func (p *Producer) RemovePoint(addr protocol.Address, priority *uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := false
	if priority != nil {
		key := pointKey{addr: addr, priority: *priority}
		if _, ok := p.points[key]; ok {
			delete(p.points, key)
			removed = true
		}
	} else {
		for key := range p.points {
			if key.addr == addr {
				delete(p.points, key)
				removed = true
			}
		}
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrNoSuchPoint, addr)
	}
	return nil
}

// NumberOfPoints returns the number of (address, priority) points
// currently held.
func (p *Producer) NumberOfPoints() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.points)
}

// AddModule attaches v to every point at addr, if priority is nil, and
// also records it against addr so points added to that address later
// inherit it. If priority is non-nil, the module is attached only to the
// point at that specific (addr, priority), and nothing is inherited by
// future points. Returns ErrNoSuchPoint if no point matches; with a nil
// priority the module is still recorded against addr in that case.
func (p *Producer) AddModule(addr protocol.Address, v protocol.Value, priority *uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := v.Identifier()
	if priority != nil {
		key := pointKey{addr: addr, priority: *priority}
		pt, ok := p.points[key]
		if !ok {
			return fmt.Errorf("%w: %s at priority %d", ErrNoSuchPoint, addr, *priority)
		}
		p.setModule(pt, id, v)
		return nil
	}

	matched := false
	for key, pt := range p.points {
		if key.addr != addr {
			continue
		}
		p.setModule(pt, id, v)
		matched = true
	}
	if am, ok := p.addressModules[addr]; ok {
		am[id] = v
	} else {
		p.addressModules[addr] = map[protocol.ModuleIdentifier]protocol.Value{id: v}
	}
	if !matched {
		return fmt.Errorf("%w: %s", ErrNoSuchPoint, addr)
	}
	return nil
}

func (p *Producer) setModule(pt *point, id protocol.ModuleIdentifier, v protocol.Value) {
	pt.modules[id] = v
	pt.dirty[id] = true
	pt.anyDirty = true
	pt.lastMod = time.Now()
}

// RemoveModule detaches id from the point at (addr, priority). Returns
// ErrNoSuchPoint if the point doesn't exist, or ErrNoSuchModule if the
// point exists but doesn't carry id.
func (p *Producer) RemoveModule(addr protocol.Address, priority uint8, id protocol.ModuleIdentifier) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := pointKey{addr: addr, priority: priority}
	pt, ok := p.points[key]
	if !ok {
		return fmt.Errorf("%w: %s at priority %d", ErrNoSuchPoint, addr, priority)
	}
	if _, ok := pt.modules[id]; !ok {
		return fmt.Errorf("%w: %s has no module %s", ErrNoSuchModule, addr, id)
	}
	delete(pt.modules, id)
	delete(pt.dirty, id)
	return nil
}

// nextFolio returns and increments the folio counter for a system's
// transform-message stream, wrapping modulo 2^32.
func (p *Producer) nextFolio(system uint8) uint32 {
	f := p.folio[system]
	p.folio[system]++
	return f
}

func (p *Producer) nextAdvertisementFolio() uint32 {
	f := p.advertisementFolio
	p.advertisementFolio++
	return f
}
