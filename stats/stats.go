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

// Package stats implements counters for the producer and consumer
// engines, and a Prometheus exporter for them.
package stats

import "sync/atomic"

// Stats is the metric collection interface shared by Producer and
// Consumer. A Counters value implements it; tests may substitute a
// no-op fake.
type Stats interface {
	IncPacketsSent()
	IncPacketsReceived()
	IncPacketsDropped()
	IncFolioAborted()
	IncWinnerChanged()
	IncStalenessEvictions()
	IncReplayRejected()

	Snapshot() Snapshot
	Reset()
}

// Snapshot is a point-in-time copy of all counters, suitable for
// reporting.
type Snapshot struct {
	PacketsSent         int64
	PacketsReceived     int64
	PacketsDropped      int64
	FolioAborted        int64
	WinnerChanged       int64
	StalenessEvictions  int64
	ReplayRejected      int64
}

// Counters is the default Stats implementation: a handful of
// atomically-updated int64 fields, following this package's usual
// lock-free counter shape.
type Counters struct {
	packetsSent        int64
	packetsReceived    int64
	packetsDropped     int64
	folioAborted       int64
	winnerChanged      int64
	stalenessEvictions int64
	replayRejected     int64
}

// NewCounters returns a zeroed Counters.
func NewCounters() *Counters {
	return &Counters{}
}

// IncPacketsSent implements Stats.
func (c *Counters) IncPacketsSent() { atomic.AddInt64(&c.packetsSent, 1) }

// IncPacketsReceived implements Stats.
func (c *Counters) IncPacketsReceived() { atomic.AddInt64(&c.packetsReceived, 1) }

// IncPacketsDropped implements Stats.
func (c *Counters) IncPacketsDropped() { atomic.AddInt64(&c.packetsDropped, 1) }

// IncFolioAborted implements Stats.
func (c *Counters) IncFolioAborted() { atomic.AddInt64(&c.folioAborted, 1) }

// IncWinnerChanged implements Stats.
func (c *Counters) IncWinnerChanged() { atomic.AddInt64(&c.winnerChanged, 1) }

// IncStalenessEvictions implements Stats.
func (c *Counters) IncStalenessEvictions() { atomic.AddInt64(&c.stalenessEvictions, 1) }

// IncReplayRejected implements Stats.
func (c *Counters) IncReplayRejected() { atomic.AddInt64(&c.replayRejected, 1) }

// Snapshot implements Stats.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		PacketsSent:        atomic.LoadInt64(&c.packetsSent),
		PacketsReceived:    atomic.LoadInt64(&c.packetsReceived),
		PacketsDropped:     atomic.LoadInt64(&c.packetsDropped),
		FolioAborted:       atomic.LoadInt64(&c.folioAborted),
		WinnerChanged:      atomic.LoadInt64(&c.winnerChanged),
		StalenessEvictions: atomic.LoadInt64(&c.stalenessEvictions),
		ReplayRejected:     atomic.LoadInt64(&c.replayRejected),
	}
}

// Reset implements Stats.
func (c *Counters) Reset() {
	atomic.StoreInt64(&c.packetsSent, 0)
	atomic.StoreInt64(&c.packetsReceived, 0)
	atomic.StoreInt64(&c.packetsDropped, 0)
	atomic.StoreInt64(&c.folioAborted, 0)
	atomic.StoreInt64(&c.winnerChanged, 0)
	atomic.StoreInt64(&c.stalenessEvictions, 0)
	atomic.StoreInt64(&c.replayRejected, 0)
}
