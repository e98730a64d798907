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

// source identifies which (producer, priority) a merged entry's winning
// data came from.
type source struct {
	cid      protocol.CID
	priority uint8
}

// mergedEntry is the Merged Address Table's row for one address: the
// winning source and the module values it reported.
type mergedEntry struct {
	source  source
	modules map[protocol.ModuleIdentifier]protocol.Value
}

// merger builds the Merged Address Table from a discoveryTable: for each
// address, the winner is the highest-priority non-stale producer,
// ties broken by the numerically lower CID.
type merger struct {
	table   *discoveryTable
	entries map[protocol.Address]*mergedEntry
}

func newMerger(table *discoveryTable) *merger {
	return &merger{table: table, entries: make(map[protocol.Address]*mergedEntry)}
}

// recompute re-derives the winner for addr given the producers known as
// of now (any producer last seen before cutoff is treated as absent).
// It reports the outcome so the caller can notify a Delegate.
type mergeOutcome int

const (
	mergeUnchanged mergeOutcome = iota
	mergeWinnerChanged
	mergeAddressLost
)

func (m *merger) recompute(addr protocol.Address, cutoff time.Time) (mergeOutcome, *mergedEntry) {
	var best *mergedEntry
	for _, p := range m.table.producers {
		if p.lastSeen.Before(cutoff) {
			continue
		}
		byPriority, ok := p.points[addr]
		if !ok {
			continue
		}
		for priority, rp := range byPriority {
			cand := &mergedEntry{source: source{cid: p.cid, priority: priority}, modules: rp.modules}
			if better(cand, best) {
				best = cand
			}
		}
	}

	existing, had := m.entries[addr]
	switch {
	case best == nil:
		if !had {
			return mergeUnchanged, nil
		}
		delete(m.entries, addr)
		return mergeAddressLost, existing
	case !had || existing.source != best.source:
		m.entries[addr] = best
		return mergeWinnerChanged, best
	default:
		m.entries[addr] = best
		return mergeUnchanged, best
	}
}

// better reports whether cand beats current (nil current always loses):
// highest priority wins; ties broken by the numerically lower CID.
func better(cand, current *mergedEntry) bool {
	if current == nil {
		return true
	}
	if cand.source.priority != current.source.priority {
		return cand.source.priority > current.source.priority
	}
	return cand.source.cid.Less(current.source.cid)
}

// Winner returns the current winning source and modules for addr, if
// any.
func (m *merger) Winner(addr protocol.Address) (protocol.CID, uint8, map[protocol.ModuleIdentifier]protocol.Value, bool) {
	e, ok := m.entries[addr]
	if !ok {
		return protocol.CID{}, 0, nil, false
	}
	return e.source.cid, e.source.priority, e.modules, true
}

// Addresses returns every address currently present in the merged
// table.
func (m *merger) Addresses() []protocol.Address {
	out := make([]protocol.Address, 0, len(m.entries))
	for a := range m.entries {
		out = append(out, a)
	}
	return out
}
