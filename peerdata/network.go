package peerdata

import (
	"net"
	"net/netip"
	"strings"
)

// NetworkKind is the transport network over which a peer connection was
// made, mirroring the network field of bitcoind's getpeerinfo.
type NetworkKind uint8

const (
	// NetworkUnknown is the zero value; records carrying it fail
	// validation.
	NetworkUnknown NetworkKind = iota

	NetworkIPv4
	NetworkIPv6
	NetworkOnion
	NetworkI2P
	NetworkCJDNS
)

// String returns the getpeerinfo spelling of the network kind.
func (n NetworkKind) String() string {
	switch n {
	case NetworkIPv4:
		return "ipv4"
	case NetworkIPv6:
		return "ipv6"
	case NetworkOnion:
		return "onion"
	case NetworkI2P:
		return "i2p"
	case NetworkCJDNS:
		return "cjdns"
	}

	return "unknown"
}

// ParseNetworkKind maps a getpeerinfo network string onto its kind.
func ParseNetworkKind(s string) NetworkKind {
	switch s {
	case "ipv4":
		return NetworkIPv4
	case "ipv6":
		return NetworkIPv6
	case "onion":
		return NetworkOnion
	case "i2p":
		return NetworkI2P
	case "cjdns":
		return NetworkCJDNS
	}

	return NetworkUnknown
}

// Overlay reports whether the network hides the peer's real address, in
// which case geolocation and operator lookups are impossible.
func (n NetworkKind) Overlay() bool {
	return n == NetworkOnion || n == NetworkI2P || n == NetworkCJDNS
}

// NetworkKindFromAddr derives the network kind from a peer address for
// feeds that predate the getpeerinfo network field. CJDNS allocates from
// fc00::/8, which shows up as a bare fc/fd prefix in bitcoind addresses.
func NetworkKindFromAddr(addr string) NetworkKind {
	switch {
	case addr == "":
		return NetworkUnknown
	case strings.Contains(addr, ".onion"):
		return NetworkOnion
	case strings.Contains(addr, ".i2p"):
		return NetworkI2P
	case strings.HasPrefix(addr, "fc") || strings.HasPrefix(addr, "fd"):
		return NetworkCJDNS
	case strings.Count(addr, ":") > 1:
		return NetworkIPv6
	}

	return NetworkIPv4
}

// HostFromAddr strips the port from a peer address, handling the
// bracketed IPv6 form used by bitcoind. Addresses without a port are
// returned unchanged.
func HostFromAddr(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}

	return addr
}

// IsPrivateHost reports whether a host can never be geolocated because it
// lives in private, loopback or link-local address space.
func IsPrivateHost(host string) bool {
	if host == "localhost" {
		return true
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}

	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}

// Direction records which side initiated a peer connection.
type Direction uint8

const (
	DirectionOutbound Direction = iota
	DirectionInbound
)

// String returns the long form of the direction.
func (d Direction) String() string {
	if d == DirectionInbound {
		return "inbound"
	}

	return "outbound"
}

// Abbrev returns the compact column form of the direction.
func (d Direction) Abbrev() string {
	if d == DirectionInbound {
		return "IN"
	}

	return "OUT"
}

// ConnType is bitcoind's connection subtype as reported by getpeerinfo.
type ConnType uint8

const (
	ConnTypeUnknown ConnType = iota
	ConnTypeOutboundFullRelay
	ConnTypeBlockRelayOnly
	ConnTypeInbound
	ConnTypeManual
	ConnTypeAddrFetch
	ConnTypeFeeler
)

// String returns the getpeerinfo spelling of the connection subtype.
func (c ConnType) String() string {
	switch c {
	case ConnTypeOutboundFullRelay:
		return "outbound-full-relay"
	case ConnTypeBlockRelayOnly:
		return "block-relay-only"
	case ConnTypeInbound:
		return "inbound"
	case ConnTypeManual:
		return "manual"
	case ConnTypeAddrFetch:
		return "addr-fetch"
	case ConnTypeFeeler:
		return "feeler"
	}

	return "unknown"
}

// Abbrev returns the three letter display form of the connection subtype,
// "-" when unknown.
func (c ConnType) Abbrev() string {
	switch c {
	case ConnTypeOutboundFullRelay:
		return "OFR"
	case ConnTypeBlockRelayOnly:
		return "BLO"
	case ConnTypeInbound:
		return "INB"
	case ConnTypeManual:
		return "MAN"
	case ConnTypeAddrFetch:
		return "FET"
	case ConnTypeFeeler:
		return "FEL"
	}

	return "-"
}

// ParseConnType maps a getpeerinfo connection_type string onto its
// subtype, ConnTypeUnknown when the string is not recognized.
func ParseConnType(s string) ConnType {
	switch s {
	case "outbound-full-relay":
		return ConnTypeOutboundFullRelay
	case "block-relay-only":
		return ConnTypeBlockRelayOnly
	case "inbound":
		return ConnTypeInbound
	case "manual":
		return ConnTypeManual
	case "addr-fetch":
		return ConnTypeAddrFetch
	case "feeler":
		return ConnTypeFeeler
	}

	return ConnTypeUnknown
}
