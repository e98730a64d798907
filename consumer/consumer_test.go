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
	"testing"
	"time"

	"github.com/go-otp/otp/protocol"
	"github.com/stretchr/testify/require"
)

func testAddr() protocol.Address {
	return protocol.Address{System: 1, Group: 1, Point: 1}
}

func cidOf(b byte) protocol.CID {
	var c protocol.CID
	c[15] = b
	return c
}

// datagramFor builds a single-page Transform Message datagram reporting
// one point at addr/priority with the given timestamp and position.
func datagramFor(t *testing.T, cid protocol.CID, addr protocol.Address, priority uint8, ts uint64, pos protocol.Position) []byte {
	t.Helper()
	registry := protocol.NewStandardRegistry()
	payload, err := registry.Encode(pos)
	require.NoError(t, err)
	ml := &protocol.ModuleLayer{Identifier: pos.Identifier(), Payload: payload}
	mb, err := ml.MarshalBinary()
	require.NoError(t, err)

	pl := &protocol.PointLayer{Priority: priority, Group: addr.Group, Point: addr.Point, Timestamp: ts, Modules: [][]byte{mb}}
	pb, err := pl.MarshalBinary()
	require.NoError(t, err)

	tl := &protocol.TransformLayer{System: addr.System, Timestamp: ts, FullSet: true, Points: [][]byte{pb}}
	body, err := tl.MarshalBinary()
	require.NoError(t, err)

	root := &protocol.RootLayer{CID: cid, Vector: protocol.VectorTransformMessage, Folio: 1, Page: 0, LastPage: 0, ComponentName: "producer", Body: body}
	b, err := root.MarshalBinary()
	require.NoError(t, err)
	return b
}

func newTestConsumer() (*Consumer, *NotificationQueue) {
	q := NewNotificationQueue()
	cfg := NewConfig("consumer")
	c := New(cfg, protocol.NewStandardRegistry(), q, nil)
	return c, q
}

func TestMergeByPriorityHigherWins(t *testing.T) {
	c, q := newTestConsumer()
	addr := testAddr()
	now := time.Unix(1000, 0)

	c.ApplyDatagram(datagramFor(t, cidOf(1), addr, 100, 1, protocol.Position{X: 1}), now)
	c.ApplyDatagram(datagramFor(t, cidOf(2), addr, 120, 1, protocol.Position{X: 2}), now)

	cid, priority, _, ok := c.Winner(addr)
	require.True(t, ok)
	require.Equal(t, uint8(120), priority)
	require.Equal(t, cidOf(2), cid)

	notes := q.Pull()
	var sawDiscovered, sawWinner int
	for _, n := range notes {
		switch n.Kind {
		case ProducerDiscovered:
			sawDiscovered++
		case WinnerChanged:
			sawWinner++
		}
	}
	require.Equal(t, 2, sawDiscovered)
	require.GreaterOrEqual(t, sawWinner, 1)
}

func TestMergeTieBrokenByLowerCID(t *testing.T) {
	c, _ := newTestConsumer()
	addr := testAddr()
	now := time.Unix(1000, 0)

	c.ApplyDatagram(datagramFor(t, cidOf(5), addr, 100, 1, protocol.Position{}), now)
	c.ApplyDatagram(datagramFor(t, cidOf(2), addr, 100, 1, protocol.Position{}), now)

	cid, priority, _, ok := c.Winner(addr)
	require.True(t, ok)
	require.Equal(t, uint8(100), priority)
	require.Equal(t, cidOf(2), cid, "lower CID should win a priority tie")
}

func TestStalenessPromotesLowerPriorityProducer(t *testing.T) {
	c, q := newTestConsumer()
	addr := testAddr()
	t0 := time.Unix(1000, 0)

	c.ApplyDatagram(datagramFor(t, cidOf(1), addr, 100, 1, protocol.Position{}), t0)
	c.ApplyDatagram(datagramFor(t, cidOf(2), addr, 120, 1, protocol.Position{}), t0)
	q.Pull()

	cid, _, _, ok := c.Winner(addr)
	require.True(t, ok)
	require.Equal(t, cidOf(2), cid)

	// cidOf(1) keeps reporting; cidOf(2) goes silent. Sweep at t0+8.0s,
	// past the 7.5s timeout for cidOf(2) only.
	c.ApplyDatagram(datagramFor(t, cidOf(1), addr, 100, 2, protocol.Position{}), t0.Add(7*time.Second))
	t1 := t0.Add(8 * time.Second)
	c.Sweep(t1)

	cid, priority, _, ok := c.Winner(addr)
	require.True(t, ok)
	require.Equal(t, cidOf(1), cid)
	require.Equal(t, uint8(100), priority)

	var sawLost, sawWinnerChanged bool
	for _, n := range q.Pull() {
		if n.Kind == ProducerLost && n.CID == cidOf(2) {
			sawLost = true
		}
		if n.Kind == WinnerChanged && n.Address == addr && n.CID == cidOf(1) {
			sawWinnerChanged = true
		}
	}
	require.True(t, sawLost, "expected a producer-lost notification for the silent producer")
	require.True(t, sawWinnerChanged, "expected the merge winner to fall back to the remaining producer")
}

func TestSweepBeforeTimeoutLeavesWinnerInPlace(t *testing.T) {
	c, q := newTestConsumer()
	addr := testAddr()
	t0 := time.Unix(1000, 0)

	c.ApplyDatagram(datagramFor(t, cidOf(1), addr, 100, 1, protocol.Position{}), t0)
	c.ApplyDatagram(datagramFor(t, cidOf(2), addr, 120, 1, protocol.Position{}), t0)
	q.Pull()

	c.Sweep(t0.Add(2 * time.Second))

	cid, _, _, ok := c.Winner(addr)
	require.True(t, ok)
	require.Equal(t, cidOf(2), cid)
	require.Empty(t, q.Pull())
}

func TestReplayProtectionRejectsNonIncreasingTimestamp(t *testing.T) {
	c, _ := newTestConsumer()
	addr := testAddr()
	now := time.Unix(1000, 0)

	c.ApplyDatagram(datagramFor(t, cidOf(1), addr, 100, 10, protocol.Position{X: 1}), now)
	c.ApplyDatagram(datagramFor(t, cidOf(1), addr, 100, 5, protocol.Position{X: 99}), now)

	_, _, modules, ok := c.Winner(addr)
	require.True(t, ok)
	pos, ok := modules[protocol.StandardModule(protocol.ModuleNumberPosition)].(protocol.Position)
	require.True(t, ok)
	require.Equal(t, int32(1), pos.X, "a replayed (non-increasing timestamp) update must be ignored")
}

func TestRepeatedIdenticalDatagramProducesNoFurtherNotifications(t *testing.T) {
	c, q := newTestConsumer()
	addr := testAddr()
	now := time.Unix(1000, 0)

	d := datagramFor(t, cidOf(1), addr, 100, 10, protocol.Position{X: 1})
	c.ApplyDatagram(d, now)
	q.Pull()

	c.ApplyDatagram(d, now)
	notes := q.Pull()
	for _, n := range notes {
		require.NotEqual(t, WinnerChanged, n.Kind, "re-applying an unchanged datagram must not re-fire winner-changed")
	}
}

func TestOwnTransmissionsAreIgnored(t *testing.T) {
	cfg := NewConfig("consumer")
	q := NewNotificationQueue()
	c := New(cfg, protocol.NewStandardRegistry(), q, nil)

	d := datagramFor(t, cfg.CID, testAddr(), 100, 1, protocol.Position{})
	c.ApplyDatagram(d, time.Unix(1000, 0))

	require.Empty(t, c.Addresses())
	require.Empty(t, q.Pull())
}
