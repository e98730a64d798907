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
	"net"
	"testing"
	"time"

	"github.com/go-otp/otp/protocol"
	"github.com/go-otp/otp/transport"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testAddr() protocol.Address {
	return protocol.Address{System: 1, Group: 1, Point: 1}
}

func TestAddPointRejectsDuplicate(t *testing.T) {
	p := New(NewConfig("test"), protocol.NewStandardRegistry())
	require.NoError(t, p.AddPoint(testAddr(), "stage-left", nil))
	err := p.AddPoint(testAddr(), "stage-left", nil)
	require.ErrorIs(t, err, ErrDuplicatePoint)
}

func TestAddPointRejectsBadAddress(t *testing.T) {
	p := New(NewConfig("test"), protocol.NewStandardRegistry())
	err := p.AddPoint(protocol.Address{System: 0, Group: 1, Point: 1}, "x", nil)
	require.ErrorIs(t, err, protocol.ErrAddressOutOfRange)
}

func TestRemovePointNoSuchPoint(t *testing.T) {
	p := New(NewConfig("test"), protocol.NewStandardRegistry())
	err := p.RemovePoint(testAddr(), nil)
	require.ErrorIs(t, err, ErrNoSuchPoint)
}

func TestAddModuleToAllPrioritiesThenInheritedByNewPoint(t *testing.T) {
	p := New(NewConfig("test"), protocol.NewStandardRegistry())
	require.NoError(t, p.AddPoint(testAddr(), "a", nil))
	pos := protocol.Position{X: 1, Y: 2, Z: 3}
	require.NoError(t, p.AddModule(testAddr(), pos, nil))

	other := uint8(50)
	require.NoError(t, p.AddPoint(testAddr(), "a-low-prio", &other))

	p.mu.Lock()
	_, ok := p.points[pointKey{addr: testAddr(), priority: other}].modules[pos.Identifier()]
	p.mu.Unlock()
	require.True(t, ok, "module added with nil priority should be inherited by a point added later")
}

func TestAddModuleSpecificPriorityNoSuchPoint(t *testing.T) {
	p := New(NewConfig("test"), protocol.NewStandardRegistry())
	prio := uint8(10)
	err := p.AddModule(testAddr(), protocol.Position{}, &prio)
	require.ErrorIs(t, err, ErrNoSuchPoint)
}

func TestRemoveModuleNoSuchModule(t *testing.T) {
	p := New(NewConfig("test"), protocol.NewStandardRegistry())
	require.NoError(t, p.AddPoint(testAddr(), "a", nil))
	err := p.RemoveModule(testAddr(), protocol.DefaultPriority, protocol.StandardModule(protocol.ModuleNumberScale))
	require.ErrorIs(t, err, ErrNoSuchModule)
}

func TestSchedulerTickSendsDirtyPointAsTransform(t *testing.T) {
	p := New(NewConfig("test"), protocol.NewStandardRegistry())
	require.NoError(t, p.AddPoint(testAddr(), "a", nil))
	require.NoError(t, p.AddModule(testAddr(), protocol.Position{X: 1, Y: 2, Z: 3}, nil))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var sent [][]byte
	sock := transport.NewMockSocket(ctrl)
	sock.EXPECT().WriteTo(gomock.Any(), gomock.Any()).DoAndReturn(func(b []byte, _ net.IP) (int, error) {
		cp := make([]byte, len(b))
		copy(cp, b)
		sent = append(sent, cp)
		return len(b), nil
	})

	sched := NewScheduler(p, p.registry, sock, nil, nil)
	now := time.Now()
	// advertisements are not due yet, so the only datagram is the transform
	sched.lastAdvert = now
	sched.tick(now)

	require.Len(t, sent, 1)

	var root protocol.RootLayer
	require.NoError(t, root.UnmarshalBinary(sent[0]))
	require.Equal(t, protocol.VectorTransformMessage, root.Vector)

	var tl protocol.TransformLayer
	require.NoError(t, tl.UnmarshalBinary(root.Body))
	require.Equal(t, testAddr().System, tl.System)
	require.Len(t, tl.Points, 1)
}

func TestPackPagesSplitsAtPointBoundary(t *testing.T) {
	points := [][]byte{make([]byte, 100), make([]byte, 100), make([]byte, 100)}
	pages := packPages(points, 150)
	require.Len(t, pages, 3)
}
