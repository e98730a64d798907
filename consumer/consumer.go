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
	"encoding/binary"
	"sync"
	"time"

	"github.com/go-otp/otp/protocol"
	"github.com/go-otp/otp/stats"
	log "github.com/sirupsen/logrus"
)

// Consumer receives OTP datagrams, reassembles folio/page sequences,
// maintains the discovered-producer table and the per-address Merged
// Address Table, and notifies a Delegate of changes. It does no I/O
// itself: callers feed it datagrams read off a transport.Socket.
type Consumer struct {
	mu sync.Mutex

	config   *Config
	registry *protocol.Registry
	delegate Delegate
	stats    stats.Stats

	table  *discoveryTable
	merger *merger

	transforms     *protocol.FolioReassembler
	advertisements *protocol.FolioReassembler
}

// New builds a Consumer. delegate may be a *NotificationQueue or any
// other Delegate implementation; it must not be nil.
func New(config *Config, registry *protocol.Registry, delegate Delegate, st stats.Stats) *Consumer {
	config.Normalize()
	table := newDiscoveryTable()
	return &Consumer{
		config:         config,
		registry:       registry,
		delegate:       delegate,
		stats:          st,
		table:          table,
		merger:         newMerger(table),
		transforms:     protocol.NewFolioReassembler(),
		advertisements: protocol.NewFolioReassembler(),
	}
}

// ApplyDatagram parses and applies one received OTP datagram. Malformed
// datagrams are dropped (counted in stats, if set) rather than returned
// as an error: per the wire contract, a bad packet never tears anything
// down.
func (c *Consumer) ApplyDatagram(b []byte, now time.Time) {
	var root protocol.RootLayer
	if err := root.UnmarshalBinary(b); err != nil {
		log.Debugf("otp consumer: dropping malformed datagram: %v", err)
		c.incDropped()
		return
	}
	if root.CID == c.config.CID {
		return // ignore our own transmissions, if looped back
	}

	c.mu.Lock()
	_, alreadyKnown := c.table.get(root.CID)
	c.table.touch(root.CID, root.ComponentName, now)
	c.mu.Unlock()
	if !alreadyKnown {
		c.delegate.OnProducerDiscovered(root.CID, root.ComponentName)
	}

	if c.stats != nil {
		c.stats.IncPacketsReceived()
	}

	switch root.Vector {
	case protocol.VectorTransformMessage:
		c.applyTransform(root, now)
	case protocol.VectorAdvertisementMessage:
		c.applyAdvertisement(root, now)
	}
}

func (c *Consumer) incDropped() {
	if c.stats != nil {
		c.stats.IncPacketsDropped()
	}
}

// applyTransform reassembles a Transform Message's folio and, once
// complete, applies every page's points to the discovery table and
// recomputes the merge for each touched address.
func (c *Consumer) applyTransform(root protocol.RootLayer, now time.Time) {
	var peek protocol.TransformLayer
	if err := peek.UnmarshalBinary(root.Body); err != nil {
		log.Debugf("otp consumer: dropping malformed transform layer: %v", err)
		c.incDropped()
		return
	}

	c.mu.Lock()
	key := protocol.FolioKey{CID: root.CID, Kind: peek.System}
	complete := c.transforms.Accept(key, root.Folio, root.Page, root.LastPage, root.Body)
	c.mu.Unlock()
	if complete == nil {
		return
	}

	touched := map[protocol.Address]bool{}
	c.mu.Lock()
	producer := c.table.getOrCreate(root.CID)
	for _, pageBody := range complete {
		var tl protocol.TransformLayer
		if err := tl.UnmarshalBinary(pageBody); err != nil {
			continue
		}
		for _, pb := range tl.Points {
			var pl protocol.PointLayer
			if err := pl.UnmarshalBinary(pb); err != nil {
				continue
			}
			addr := pl.Address(tl.System)
			modules := make(map[protocol.ModuleIdentifier]protocol.Value, len(pl.Modules))
			for _, mb := range pl.Modules {
				var ml protocol.ModuleLayer
				if err := ml.UnmarshalBinary(mb); err != nil {
					continue
				}
				v, err := c.registry.Decode(ml.Identifier, ml.Payload)
				if err != nil {
					continue
				}
				modules[ml.Identifier] = v
			}
			if producer.applyPoint(addr, pl.Priority, pl.Timestamp, modules) {
				touched[addr] = true
			} else if c.stats != nil {
				c.stats.IncReplayRejected()
			}
		}
	}
	c.mu.Unlock()

	c.recomputeAndNotify(touched, now)
}

// applyAdvertisement reassembles an Advertisement Message's folio. The
// sub-vector identifying Module/Name/System advertisement lives in the
// first four bytes of the body itself, so that's used as the folio key
// kind rather than anything from the root layer.
func (c *Consumer) applyAdvertisement(root protocol.RootLayer, now time.Time) {
	if len(root.Body) < 4 {
		c.incDropped()
		return
	}
	kind := uint8(binary.BigEndian.Uint32(root.Body))

	c.mu.Lock()
	key := protocol.FolioKey{CID: root.CID, Kind: kind}
	complete := c.advertisements.Accept(key, root.Folio, root.Page, root.LastPage, root.Body)
	c.mu.Unlock()
	if complete == nil {
		return
	}

	switch uint32(kind) {
	case protocol.VectorNameAdvertisement:
		// Names are informational only; this implementation does not
		// surface a separate naming table, so there is nothing further
		// to apply beyond having drained the reassembler.
	case protocol.VectorModuleAdvertisement, protocol.VectorSystemAdvertisement:
		// Capability advertisements: nothing to merge, just liveness
		// (already recorded via table.touch in ApplyDatagram).
	}
	_ = now
}

// recomputeAndNotify reruns the merge for each address in touched and
// tells the Delegate about any resulting change.
func (c *Consumer) recomputeAndNotify(touched map[protocol.Address]bool, now time.Time) {
	if len(touched) == 0 {
		return
	}
	cutoff := now.Add(-c.config.DataLossTimeout)
	for addr := range touched {
		c.mu.Lock()
		outcome, entry := c.merger.recompute(addr, cutoff)
		c.mu.Unlock()
		switch outcome {
		case mergeWinnerChanged:
			if c.stats != nil {
				c.stats.IncWinnerChanged()
			}
			c.delegate.OnWinnerChanged(addr, entry.source.cid, entry.source.priority, entry.modules)
		case mergeAddressLost:
			c.delegate.OnAddressLost(addr)
		}
	}
}

// Sweep evicts producers that have exceeded the data-loss timeout as of
// now, recomputes the merge for every address they may have uniquely
// sourced, and notifies the Delegate. Callers should invoke this
// periodically (e.g. once a second) from their own timer.
func (c *Consumer) Sweep(now time.Time) {
	cutoff := now.Add(-c.config.DataLossTimeout)

	c.mu.Lock()
	stale := c.table.stale(cutoff)
	affected := map[protocol.Address]bool{}
	for _, p := range stale {
		for addr := range p.points {
			affected[addr] = true
		}
	}
	c.mu.Unlock()

	c.recomputeAndNotify(affected, now)

	c.mu.Lock()
	for _, p := range stale {
		c.table.remove(p.cid)
	}
	c.mu.Unlock()

	for _, p := range stale {
		if c.stats != nil {
			c.stats.IncStalenessEvictions()
		}
		c.delegate.OnProducerLost(p.cid)
	}
}

// Winner returns the current merge winner for addr, if any.
func (c *Consumer) Winner(addr protocol.Address) (protocol.CID, uint8, map[protocol.ModuleIdentifier]protocol.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.merger.Winner(addr)
}

// Addresses returns every address currently in the Merged Address Table.
func (c *Consumer) Addresses() []protocol.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.merger.Addresses()
}
