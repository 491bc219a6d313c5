package fncfg

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// NormalizeAddresses parses every listen address, fills in defaultPort where
// it is missing and drops duplicates. The order of first appearance is kept.
func NormalizeAddresses(addrs []string, defaultPort string) ([]net.Addr,
	error) {

	var (
		result = make([]net.Addr, 0, len(addrs))
		seen   = make(map[string]struct{}, len(addrs))
	)
	for _, addr := range addrs {
		parsed, err := ParseAddressString(addr, defaultPort)
		if err != nil {
			return nil, fmt.Errorf("parse address %s failed: %w",
				addr, err)
		}

		key := parsed.Network() + "://" + parsed.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, parsed)
	}

	return result, nil
}

// splitNetwork splits an optional network prefix, given either as
// network://address or network:address, from addr.
func splitNetwork(addr string) (string, string) {
	if network, rest, ok := strings.Cut(addr, "://"); ok {
		return network, rest
	}

	if network, rest, ok := strings.Cut(addr, ":"); ok {
		return network, rest
	}

	return "", addr
}

// ParseAddressString resolves an RPC listen address. Besides the network
// prefixed forms, host:port, a bare host and a bare port are accepted. Only
// TCP and unix stream sockets can serve JSON-RPC.
func ParseAddressString(strAddress string, defaultPort string) (net.Addr,
	error) {

	network, addr := splitNetwork(strAddress)
	switch network {
	case "unix", "unixpacket":
		return net.ResolveUnixAddr(network, addr)

	case "tcp", "tcp4", "tcp6":
		return net.ResolveTCPAddr(network, withPort(addr, defaultPort))

	case "ip", "ip4", "ip6", "udp", "udp4", "udp6", "unixgram":
		return nil, fmt.Errorf("only TCP or unix socket "+
			"addresses are supported: %s", addr)

	// Anything else is a host, a port, or a host:port pair without a
	// network prefix.
	default:
		return net.ResolveTCPAddr(
			"tcp", withPort(strAddress, defaultPort),
		)
	}
}

// withPort returns address with defaultPort appended when it has none. A
// bare port number listens on localhost.
func withPort(address string, defaultPort string) string {
	host, port, err := net.SplitHostPort(address)
	switch {
	case err == nil && host == "" && port == "":
		return ":" + defaultPort

	case err == nil:
		return address
	}

	if _, err := strconv.Atoi(address); err == nil {
		return net.JoinHostPort("localhost", address)
	}

	// JoinHostPort would bracket an IPv6 host a second time.
	if strings.HasPrefix(address, "[") {
		return address + ":" + defaultPort
	}

	return net.JoinHostPort(address, defaultPort)
}

// ListenOnAddress opens a listener for addr. TCP addresses listen on the IP
// family of their host.
func ListenOnAddress(addr net.Addr) (net.Listener, error) {
	network := addr.Network()
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		network = "tcp6"
		if tcpAddr.IP.To4() != nil {
			network = "tcp4"
		}
	}

	return net.Listen(network, addr.String())
}
