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
	"sort"
	"time"

	"github.com/go-otp/otp/protocol"
	"github.com/go-otp/otp/stats"
	"github.com/go-otp/otp/transport"
	log "github.com/sirupsen/logrus"
)

// datagramBudget is how many bytes of marshaled PointLayer data a single
// Transform Message page may carry, leaving headroom for the root and
// transform layer headers.
const datagramBudget = protocol.MaxDatagramSize - rootAndTransformOverhead

// rootAndTransformOverhead approximates the fixed-size portion of a root
// layer (header + zero-length footer) plus a transform layer header; the
// real MarshalBinary call is still what decides whether a page fits, this
// just bounds how eagerly the scheduler packs points into one.
const rootAndTransformOverhead = 80 + 1 + 16

// Scheduler drives a Producer's periodic transmission of Transform and
// Advertisement Messages over a transport.Socket from a ticker-driven
// loop.
type Scheduler struct {
	producer *Producer
	registry *protocol.Registry
	socketV4 transport.Socket
	socketV6 transport.Socket
	stats    stats.Stats

	lastFullSet map[uint8]time.Time
	lastAdvert  time.Time

	done chan struct{}
}

// NewScheduler builds a Scheduler. Either socket may be nil if the
// producer's IPMode excludes that family.
func NewScheduler(p *Producer, registry *protocol.Registry, socketV4, socketV6 transport.Socket, st stats.Stats) *Scheduler {
	return &Scheduler{
		producer:    p,
		registry:    registry,
		socketV4:    socketV4,
		socketV6:    socketV6,
		stats:       st,
		lastFullSet: make(map[uint8]time.Time),
	}
}

// Run starts the transmit loop on ticker, blocking until Stop is called.
// The producer transitions Idle -> Running for the duration.
func (s *Scheduler) Run(ticker transport.Timer) error {
	s.producer.mu.Lock()
	if s.producer.state != StateIdle {
		s.producer.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.producer.state = StateRunning
	s.producer.mu.Unlock()

	s.done = make(chan struct{})
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C():
			s.tick(now)
		case <-s.done:
			s.producer.mu.Lock()
			s.producer.state = StateIdle
			s.producer.mu.Unlock()
			return nil
		}
	}
}

// Stop signals Run to return, transitioning Running -> Stopping -> Idle.
func (s *Scheduler) Stop() {
	s.producer.mu.Lock()
	if s.producer.state == StateRunning {
		s.producer.state = StateStopping
	}
	s.producer.mu.Unlock()
	close(s.done)
}

// tick runs one scheduling pass: per-system Transform Messages for dirty
// or due-for-keepalive points, and the ~10s advertisement cadence.
func (s *Scheduler) tick(now time.Time) {
	s.producer.mu.Lock()
	keysBySystem := make(map[uint8][]pointKey)
	for key := range s.producer.points {
		keysBySystem[key.addr.System] = append(keysBySystem[key.addr.System], key)
	}
	s.producer.mu.Unlock()

	for system, keys := range keysBySystem {
		sort.Slice(keys, func(i, j int) bool { return keys[i].addr.Less(keys[j].addr) })
		full := now.Sub(s.lastFullSet[system]) >= FullPointSetIntervalMS*time.Millisecond
		if s.sendTransform(system, keys, now, full) && full {
			s.lastFullSet[system] = now
		}
	}

	if now.Sub(s.lastAdvert) >= AdvertisementIntervalMS*time.Millisecond {
		s.sendAdvertisements(now)
		s.lastAdvert = now
	}
}

// sendTransform builds and sends one or more Transform Message pages
// covering keys. full forces every point to be included and marks the
// batch as a full point set regardless of per-module dirty flags.
func (s *Scheduler) sendTransform(system uint8, keys []pointKey, now time.Time, full bool) bool {
	s.producer.mu.Lock()
	var points [][]byte
	anySent := false
	for _, key := range keys {
		pt, ok := s.producer.points[key]
		if !ok {
			continue
		}
		if !full && !pt.anyDirty {
			continue
		}
		pl := &protocol.PointLayer{
			Priority:  pt.priority,
			Group:     key.addr.Group,
			Point:     key.addr.Point,
			Timestamp: uint64(now.UnixMicro()),
		}
		for id, v := range pt.modules {
			payload, err := s.registry.Encode(v)
			if err != nil {
				log.Warnf("otp producer: encoding module %s for %s: %v", id, key.addr, err)
				continue
			}
			ml := &protocol.ModuleLayer{Identifier: id, Payload: payload}
			mb, err := ml.MarshalBinary()
			if err != nil {
				log.Warnf("otp producer: marshaling module %s for %s: %v", id, key.addr, err)
				continue
			}
			pl.Modules = append(pl.Modules, mb)
		}
		pb, err := pl.MarshalBinary()
		if err != nil {
			log.Warnf("otp producer: marshaling point %s: %v", key.addr, err)
			continue
		}
		points = append(points, pb)
		pt.anyDirty = false
		for id := range pt.dirty {
			delete(pt.dirty, id)
		}
		anySent = true
	}
	s.producer.mu.Unlock()

	if len(points) == 0 {
		return false
	}

	pages := packPages(points, datagramBudget)
	lastPage := uint16(len(pages) - 1)
	folio := s.nextFolio(system)
	for page, pagePoints := range pages {
		tl := &protocol.TransformLayer{
			System:    system,
			Timestamp: uint64(now.UnixMicro()),
			FullSet:   full,
			Points:    pagePoints,
		}
		body, err := tl.MarshalBinary()
		if err != nil {
			log.Errorf("otp producer: marshaling transform layer for system %d: %v", system, err)
			continue
		}
		root := &protocol.RootLayer{
			CID:           s.producer.config.CID,
			Vector:        protocol.VectorTransformMessage,
			Folio:         folio,
			Page:          uint16(page),
			LastPage:      lastPage,
			ComponentName: s.producer.config.ComponentName,
			Body:          body,
		}
		s.send(root, system)
	}
	return anySent
}

func (s *Scheduler) nextFolio(system uint8) uint32 {
	s.producer.mu.Lock()
	defer s.producer.mu.Unlock()
	return s.producer.nextFolio(system)
}

// packPages greedily groups already-marshaled PointLayer blobs into
// pages whose total size stays within budget, splitting at point
// boundaries, never a point's own bytes.
func packPages(points [][]byte, budget int) [][][]byte {
	var pages [][][]byte
	var current [][]byte
	size := 0
	for _, p := range points {
		if size+len(p) > budget && len(current) > 0 {
			pages = append(pages, current)
			current = nil
			size = 0
		}
		current = append(current, p)
		size += len(p)
	}
	if len(current) > 0 {
		pages = append(pages, current)
	}
	if len(pages) == 0 {
		pages = [][][]byte{{}}
	}
	return pages
}

// sendAdvertisements transmits the System, Module and Name Advertisement
// Messages describing this producer's current state.
func (s *Scheduler) sendAdvertisements(now time.Time) {
	s.producer.mu.Lock()
	systemSet := map[uint8]bool{}
	moduleSet := map[protocol.ModuleIdentifier]bool{}
	var names []protocol.NameEntry
	for key, pt := range s.producer.points {
		systemSet[key.addr.System] = true
		for id := range pt.modules {
			moduleSet[id] = true
		}
		names = append(names, protocol.NameEntry{Address: key.addr, Name: pt.name})
	}
	s.producer.mu.Unlock()

	systems := make([]uint8, 0, len(systemSet))
	for sys := range systemSet {
		systems = append(systems, sys)
	}
	sort.Slice(systems, func(i, j int) bool { return systems[i] < systems[j] })
	sysLayer := &protocol.SystemAdvertisementLayer{Systems: systems}
	s.sendAdvertisementLayer(sysLayer, now)

	modules := make([]protocol.ModuleIdentifier, 0, len(moduleSet))
	for id := range moduleSet {
		modules = append(modules, id)
	}
	modLayer := &protocol.ModuleAdvertisementLayer{Modules: modules}
	s.sendAdvertisementLayer(modLayer, now)

	s.sendNameAdvertisements(names, now)
}

// maxNamesPerPage bounds how many NameEntry records one Name
// Advertisement page carries, so a large point count still fits under
// MaxDatagramSize; entries beyond one page's worth continue on
// subsequent pages of the same folio.
const maxNamesPerPage = (protocol.MaxDatagramSize - rootAndTransformOverhead) / 39 // nameEntrySize

func (s *Scheduler) sendNameAdvertisements(names []protocol.NameEntry, now time.Time) {
	var pages [][]protocol.NameEntry
	for len(names) > maxNamesPerPage {
		pages = append(pages, names[:maxNamesPerPage])
		names = names[maxNamesPerPage:]
	}
	pages = append(pages, names)

	s.producer.mu.Lock()
	folio := s.producer.nextAdvertisementFolio()
	s.producer.mu.Unlock()

	lastPage := uint16(len(pages) - 1)
	for page, entries := range pages {
		layer := &protocol.NameAdvertisementLayer{Names: entries}
		body, err := layer.MarshalBinary()
		if err != nil {
			log.Errorf("otp producer: marshaling name advertisement page %d: %v", page, err)
			return
		}
		root := &protocol.RootLayer{
			CID:           s.producer.config.CID,
			Vector:        protocol.VectorAdvertisementMessage,
			Folio:         folio,
			Page:          uint16(page),
			LastPage:      lastPage,
			ComponentName: s.producer.config.ComponentName,
			Body:          body,
		}
		s.send(root, 0)
	}
}

type marshaler interface {
	MarshalBinary() ([]byte, error)
}

func (s *Scheduler) sendAdvertisementLayer(layer marshaler, now time.Time) {
	body, err := layer.MarshalBinary()
	if err != nil {
		log.Errorf("otp producer: marshaling advertisement layer: %v", err)
		return
	}
	s.producer.mu.Lock()
	folio := s.producer.nextAdvertisementFolio()
	s.producer.mu.Unlock()
	root := &protocol.RootLayer{
		CID:           s.producer.config.CID,
		Vector:        protocol.VectorAdvertisementMessage,
		Folio:         folio,
		Page:          0,
		LastPage:      0,
		ComponentName: s.producer.config.ComponentName,
		Body:          body,
	}
	s.send(root, 0)
}

// send marshals root and writes it to every joined socket, choosing the
// multicast group by vector and system.
func (s *Scheduler) send(root *protocol.RootLayer, system uint8) {
	b, err := root.MarshalBinary()
	if err != nil {
		log.Errorf("otp producer: marshaling root layer: %v", err)
		return
	}
	if s.socketV4 != nil {
		if err := s.writeTo(s.socketV4, b, root.Vector, system, false); err != nil {
			log.Warnf("otp producer: sending on IPv4: %v", err)
		}
	}
	if s.socketV6 != nil {
		if err := s.writeTo(s.socketV6, b, root.Vector, system, true); err != nil {
			log.Warnf("otp producer: sending on IPv6: %v", err)
		}
	}
}

func (s *Scheduler) writeTo(sock transport.Socket, b []byte, vector protocol.Vector, system uint8, v6 bool) error {
	group, err := transport.GroupFor(vector, system, v6)
	if err != nil {
		return err
	}
	if _, err := sock.WriteTo(b, group); err != nil {
		return fmt.Errorf("otp producer: write failed: %w", err)
	}
	if s.stats != nil {
		s.stats.IncPacketsSent()
	}
	return nil
}
