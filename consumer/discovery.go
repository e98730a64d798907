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

package consumer

import (
	"time"

	"github.com/go-otp/otp/protocol"
)

// reportedPoint is one producer's most recently applied data for one
// (address, priority) point.
type reportedPoint struct {
	timestamp uint64 // Point layer timestamp, for replay protection
	modules   map[protocol.ModuleIdentifier]protocol.Value
}

// discoveredProducer tracks everything a Consumer has learned about one
// producer CID: its liveness and the points it reports, keyed by address
// and then priority (mirroring the producer-side data model, so a
// producer reporting the same address at two priorities is tracked as
// two independent sources for merge purposes).
type discoveredProducer struct {
	cid           protocol.CID
	componentName string
	lastSeen      time.Time
	points        map[protocol.Address]map[uint8]*reportedPoint
}

func newDiscoveredProducer(cid protocol.CID) *discoveredProducer {
	return &discoveredProducer{
		cid:    cid,
		points: make(map[protocol.Address]map[uint8]*reportedPoint),
	}
}

// applyPoint records addr/priority's modules at timestamp ts, unless ts
// is not newer than what's already on file (replay protection). Returns
// true if the record was applied.
func (d *discoveredProducer) applyPoint(addr protocol.Address, priority uint8, ts uint64, modules map[protocol.ModuleIdentifier]protocol.Value) bool {
	byPriority, ok := d.points[addr]
	if !ok {
		byPriority = make(map[uint8]*reportedPoint)
		d.points[addr] = byPriority
	}
	existing, ok := byPriority[priority]
	if ok && ts <= existing.timestamp {
		return false
	}
	byPriority[priority] = &reportedPoint{timestamp: ts, modules: modules}
	return true
}

// discoveryTable is the set of all known producers, keyed by CID.
type discoveryTable struct {
	producers map[protocol.CID]*discoveredProducer
}

func newDiscoveryTable() *discoveryTable {
	return &discoveryTable{producers: make(map[protocol.CID]*discoveredProducer)}
}

func (t *discoveryTable) get(cid protocol.CID) (*discoveredProducer, bool) {
	p, ok := t.producers[cid]
	return p, ok
}

func (t *discoveryTable) getOrCreate(cid protocol.CID) *discoveredProducer {
	p, ok := t.producers[cid]
	if !ok {
		p = newDiscoveredProducer(cid)
		t.producers[cid] = p
	}
	return p
}

func (t *discoveryTable) touch(cid protocol.CID, componentName string, now time.Time) *discoveredProducer {
	p := t.getOrCreate(cid)
	p.lastSeen = now
	if componentName != "" {
		p.componentName = componentName
	}
	return p
}

// stale reports producers whose lastSeen predates the cutoff.
func (t *discoveryTable) stale(cutoff time.Time) []*discoveredProducer {
	var out []*discoveredProducer
	for _, p := range t.producers {
		if p.lastSeen.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

func (t *discoveryTable) remove(cid protocol.CID) {
	delete(t.producers, cid)
}
