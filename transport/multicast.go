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

// Package transport provides the multicast UDP sockets the producer and
// consumer engines send and receive OTP datagrams on.
package transport

import (
	"fmt"
	"net"

	"github.com/go-otp/otp/protocol"
)

// Port is the UDP port all OTP traffic is exchanged on.
const Port = 5568

// TransformGroupIPv4 returns the IPv4 multicast group a Transform Message
// for the given system number is sent to: 239.159.1.<system>.
func TransformGroupIPv4(system uint8) net.IP {
	return net.IPv4(239, 159, 1, system)
}

// TransformGroupIPv6 returns the IPv6 multicast group a Transform Message
// for the given system number is sent to: ff18::9f:00:01:<system>.
func TransformGroupIPv6(system uint8) net.IP {
	return buildIPv6(0x0001, system)
}

// AdvertisementGroupIPv4 is the fixed IPv4 multicast group all
// Advertisement Messages (Module, Name and System) are sent to:
// 239.159.2.1.
func AdvertisementGroupIPv4() net.IP {
	return net.IPv4(239, 159, 2, 1)
}

// AdvertisementGroupIPv6 is the fixed IPv6 multicast group all
// Advertisement Messages are sent to: ff18::9f:00:02:01.
func AdvertisementGroupIPv6() net.IP {
	return buildIPv6(0x0002, 0x01)
}

func buildIPv6(group uint16, low uint8) net.IP {
	ip := make(net.IP, net.IPv6len)
	ip[0], ip[1] = 0xff, 0x18
	ip[9] = 0x9f
	ip[12] = byte(group >> 8)
	ip[13] = byte(group)
	ip[14] = 0x00
	ip[15] = low
	return ip
}

// GroupFor resolves the correct multicast group for a datagram given
// whether it carries Transform or Advertisement data, the system number
// (ignored for advertisements) and whether the caller wants the IPv6
// group.
func GroupFor(vector protocol.Vector, system uint8, v6 bool) (net.IP, error) {
	switch vector {
	case protocol.VectorTransformMessage:
		if v6 {
			return TransformGroupIPv6(system), nil
		}
		return TransformGroupIPv4(system), nil
	case protocol.VectorAdvertisementMessage:
		if v6 {
			return AdvertisementGroupIPv6(), nil
		}
		return AdvertisementGroupIPv4(), nil
	default:
		return nil, fmt.Errorf("otp transport: unrecognized vector 0x%08x", uint32(vector))
	}
}
