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

package transport

import (
	"fmt"
	"net"

	"github.com/go-otp/otp/timestamp"
	"github.com/jsimonetti/rtnetlink/rtnl"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// Socket is the minimal interface the producer scheduler and the
// consumer reception loop need from a multicast UDP connection. A real
// *UDPSocket implements it; tests substitute MockSocket.
type Socket interface {
	// WriteTo sends b to the multicast group group:Port.
	WriteTo(b []byte, group net.IP) (int, error)
	// ReadFrom blocks for the next datagram, returning its payload and
	// the sender's address.
	ReadFrom(b []byte) (int, net.Addr, error)
	// JoinGroup joins the multicast group on the socket's bound
	// interface so ReadFrom starts observing its traffic.
	JoinGroup(group net.IP) error
	// LeaveGroup leaves a previously joined group.
	LeaveGroup(group net.IP) error
	Close() error
}

// UDPSocket is a Socket backed by a real *net.UDPConn listening on Port,
// with a specific interface as its multicast interface and its outbound
// multicast TTL/hop-limit set at construction.
type UDPSocket struct {
	conn  *net.UDPConn
	iface *net.Interface
	fd    int
	v6    bool
	p4    *ipv4.PacketConn
	p6    *ipv6.PacketConn
}

// NewUDPSocket opens a UDP socket on the wildcard address at Port for
// either the IPv4 or IPv6 family (selected by v6), makes ifaceName the
// interface outbound multicast is sent on and groups are joined on, and
// sets the outbound multicast TTL/hop-limit to ttl.
func NewUDPSocket(ifaceName string, v6 bool, ttl int) (*UDPSocket, error) {
	iface, err := resolveInterface(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("otp transport: resolving interface %q: %w", ifaceName, err)
	}

	network := "udp4"
	bindIP := net.IPv4zero
	if v6 {
		network = "udp6"
		bindIP = net.IPv6unspecified
	}

	conn, err := net.ListenUDP(network, &net.UDPAddr{IP: bindIP, Port: Port})
	if err != nil {
		return nil, fmt.Errorf("otp transport: listening on %s:%d: %w", network, Port, err)
	}

	fd, err := timestamp.ConnFd(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("otp transport: reading socket fd: %w", err)
	}

	if err := setMulticastTTL(fd, v6, ttl); err != nil {
		conn.Close()
		return nil, err
	}

	s := &UDPSocket{conn: conn, iface: iface, fd: fd, v6: v6}
	if v6 {
		s.p6 = ipv6.NewPacketConn(conn)
		err = s.p6.SetMulticastInterface(iface)
	} else {
		s.p4 = ipv4.NewPacketConn(conn)
		err = s.p4.SetMulticastInterface(iface)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("otp transport: setting multicast interface %q: %w", ifaceName, err)
	}
	return s, nil
}

// WriteTo implements Socket, sending on the raw fd rather than through
// *net.UDPConn, mirroring ptp/sptp/client's UDPConn.WriteTo.
func (s *UDPSocket) WriteTo(b []byte, group net.IP) (int, error) {
	sa := timestamp.IPToSockaddr(group, Port)
	if sa == nil {
		return 0, fmt.Errorf("otp transport: %s is not a valid multicast destination", group)
	}
	if err := unix.Sendto(s.fd, b, 0, sa); err != nil {
		return 0, fmt.Errorf("otp transport: sendto %s: %w", group, err)
	}
	return len(b), nil
}

// ReadFrom implements Socket, reading on the raw fd and reconstructing
// the sender's address from the recvfrom sockaddr, mirroring
// ptp/sptp/client's UDPConn.ReadPacketBuf.
func (s *UDPSocket) ReadFrom(b []byte) (int, net.Addr, error) {
	n, from, err := unix.Recvfrom(s.fd, b, 0)
	if err != nil {
		return 0, nil, fmt.Errorf("otp transport: recvfrom: %w", err)
	}
	ip := timestamp.SockaddrToAddr(from)
	addr := &net.UDPAddr{IP: net.IP(ip.AsSlice()), Port: timestamp.SockaddrToPort(from)}
	log.Debugf("otp transport: read %d bytes from %s", n, timestamp.SockaddrToIP(from))
	return n, addr, nil
}

// JoinGroup implements Socket by issuing an IP_ADD_MEMBERSHIP (or the
// IPv6 equivalent) on the bound interface.
func (s *UDPSocket) JoinGroup(group net.IP) error {
	if s.v6 {
		return s.p6.JoinGroup(s.iface, &net.UDPAddr{IP: group})
	}
	return s.p4.JoinGroup(s.iface, &net.UDPAddr{IP: group})
}

// LeaveGroup implements Socket.
func (s *UDPSocket) LeaveGroup(group net.IP) error {
	if s.v6 {
		return s.p6.LeaveGroup(s.iface, &net.UDPAddr{IP: group})
	}
	return s.p4.LeaveGroup(s.iface, &net.UDPAddr{IP: group})
}

// Close implements Socket.
func (s *UDPSocket) Close() error {
	return s.conn.Close()
}

// resolveInterface looks up ifaceName over a short-lived netlink
// connection rather than stdlib's net.InterfaceByName, so a single
// rtnetlink transport backs both this bind-time lookup and any VIP
// bookkeeping a deployment layers on top via the same library.
func resolveInterface(ifaceName string) (*net.Interface, error) {
	conn, err := rtnl.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("opening netlink connection: %w", err)
	}
	defer conn.Close()

	iface, err := conn.LinkByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("looking up link %q: %w", ifaceName, err)
	}
	return iface, nil
}

// setMulticastTTL sets IP_MULTICAST_TTL (v4) or IPV6_MULTICAST_HOPS (v6)
// on fd, mirroring the shape of this corpus's per-socket sockopt helpers
// that take a raw fd and an address-family hint.
func setMulticastTTL(fd int, v6 bool, ttl int) error {
	if v6 {
		return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_HOPS, ttl)
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, ttl)
}
