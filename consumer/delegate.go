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
	"sync"

	"github.com/go-otp/otp/protocol"
)

// Delegate receives merge and discovery events from a Consumer. Calls
// happen synchronously on whatever goroutine is feeding the Consumer
// datagrams or running its staleness sweep; a Delegate that needs to do
// slow work should hand off rather than block the caller.
type Delegate interface {
	// OnWinnerChanged fires when addr's merged winner changes, including
	// the first time addr is observed at all.
	OnWinnerChanged(addr protocol.Address, cid protocol.CID, priority uint8, modules map[protocol.ModuleIdentifier]protocol.Value)
	// OnAddressLost fires when no non-stale producer reports addr anymore.
	OnAddressLost(addr protocol.Address)
	// OnProducerDiscovered fires the first time cid is observed.
	OnProducerDiscovered(cid protocol.CID, componentName string)
	// OnProducerLost fires when cid exceeds the data-loss timeout.
	OnProducerLost(cid protocol.CID)
}

// Notification is one coalesced event pulled from a NotificationQueue.
type Notification struct {
	Kind          NotificationKind
	Address       protocol.Address
	CID           protocol.CID
	Priority      uint8
	Modules       map[protocol.ModuleIdentifier]protocol.Value
	ComponentName string
}

// NotificationKind discriminates the fields populated on a Notification.
type NotificationKind int

// Notification kinds.
const (
	WinnerChanged NotificationKind = iota
	AddressLost
	ProducerDiscovered
	ProducerLost
)

// NotificationQueue is a Delegate that coalesces events per-address (for
// WinnerChanged/AddressLost) or per-CID (for producer events), so a
// consumer that polls rather than registers callbacks only ever sees the
// latest state per key since its last Pull, not every intermediate
// update.
type NotificationQueue struct {
	mu       sync.Mutex
	byAddr   map[protocol.Address]Notification
	order    []protocol.Address
	byCID    map[protocol.CID]Notification
	cidOrder []protocol.CID
}

// NewNotificationQueue returns an empty queue.
func NewNotificationQueue() *NotificationQueue {
	return &NotificationQueue{
		byAddr: make(map[protocol.Address]Notification),
		byCID:  make(map[protocol.CID]Notification),
	}
}

// OnWinnerChanged implements Delegate.
func (q *NotificationQueue) OnWinnerChanged(addr protocol.Address, cid protocol.CID, priority uint8, modules map[protocol.ModuleIdentifier]protocol.Value) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.byAddr[addr]; !exists {
		q.order = append(q.order, addr)
	}
	q.byAddr[addr] = Notification{Kind: WinnerChanged, Address: addr, CID: cid, Priority: priority, Modules: modules}
}

// OnAddressLost implements Delegate.
func (q *NotificationQueue) OnAddressLost(addr protocol.Address) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.byAddr[addr]; !exists {
		q.order = append(q.order, addr)
	}
	q.byAddr[addr] = Notification{Kind: AddressLost, Address: addr}
}

// OnProducerDiscovered implements Delegate.
func (q *NotificationQueue) OnProducerDiscovered(cid protocol.CID, componentName string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.byCID[cid]; !exists {
		q.cidOrder = append(q.cidOrder, cid)
	}
	q.byCID[cid] = Notification{Kind: ProducerDiscovered, CID: cid, ComponentName: componentName}
}

// OnProducerLost implements Delegate.
func (q *NotificationQueue) OnProducerLost(cid protocol.CID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.byCID[cid]; !exists {
		q.cidOrder = append(q.cidOrder, cid)
	}
	q.byCID[cid] = Notification{Kind: ProducerLost, CID: cid}
}

// Pull drains every coalesced notification accumulated since the last
// Pull, in first-touched order.
func (q *NotificationQueue) Pull() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, 0, len(q.order)+len(q.cidOrder))
	for _, addr := range q.order {
		out = append(out, q.byAddr[addr])
	}
	for _, cid := range q.cidOrder {
		out = append(out, q.byCID[cid])
	}
	q.byAddr = make(map[protocol.Address]Notification)
	q.order = nil
	q.byCID = make(map[protocol.CID]Notification)
	q.cidOrder = nil
	return out
}
