// Package peerdata defines the peer-connection records consumed by the
// diversity engine. Records are produced upstream, once per poll, by an
// external fetcher which combines bitcoind's getpeerinfo output with
// already-resolved geolocation and operator data. The engine never mutates
// a record; each poll replaces the full set.
package peerdata

import (
	"errors"
	"time"

	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrMissingPeerID is returned when a record carries no peer
	// identifier. Records failing validation are dropped from
	// aggregation rather than aborting the poll.
	ErrMissingPeerID = errors.New("peer record missing identifier")

	// ErrUnknownNetwork is returned when a record's network kind could
	// not be determined from its address.
	ErrUnknownNetwork = errors.New("peer record missing network kind")
)

// GeoStatus describes the lifecycle of a peer's geolocation lookup. The
// zero value is GeoPending so that freshly observed public peers read as
// in-flight until the upstream resolver fills them in.
type GeoStatus uint8

const (
	// GeoPending indicates the upstream resolver has not yet produced a
	// result for this peer.
	GeoPending GeoStatus = iota

	// GeoResolved indicates the geolocation fields are populated.
	GeoResolved

	// GeoPrivate indicates the peer's address can never be geolocated
	// (RFC1918, loopback, or an overlay network such as onion or i2p).
	GeoPrivate

	// GeoUnavailable indicates the lookup completed without a usable
	// result.
	GeoUnavailable
)

// String returns a human readable geolocation status.
func (s GeoStatus) String() string {
	switch s {
	case GeoPending:
		return "pending"
	case GeoResolved:
		return "resolved"
	case GeoPrivate:
		return "private"
	case GeoUnavailable:
		return "unavailable"
	}

	return "unknown"
}

// GeoInfo holds the resolved geolocation of a peer. All fields other than
// Status are zero unless Status is GeoResolved.
type GeoInfo struct {
	Status      GeoStatus
	Country     string
	CountryCode string
	Region      string
	City        string
	Lat         float64
	Lon         float64
}

// ASInfo holds the operator (Autonomous System) fields of a peer as
// reported by the upstream resolver. Raw carries the loosely formatted
// "AS<number> <organization>" string verbatim; parsing it into a typed
// provider identity is the classifier's job, not this package's.
type ASInfo struct {
	// Raw is the unparsed operator string, e.g. "AS15169 Google LLC".
	// Empty for private-network peers.
	Raw string

	// Name is the operator's short code, e.g. "GOOGLE".
	Name string

	// Hosting is true when the address belongs to a datacenter range.
	Hosting bool

	// Mobile is true when the address belongs to a cellular carrier.
	Mobile bool

	// Proxy is true when the address is a known proxy or VPN exit.
	Proxy bool
}

// PeerRecord is one peer connection as observed at a single poll. The
// record set is immutable and replaced wholesale every refresh.
type PeerRecord struct {
	// ID uniquely identifies the connection for the lifetime of the
	// bitcoind process (the numeric getpeerinfo id, stringified).
	ID string

	// Addr is the peer's address as reported, host:port.
	Addr string

	// Network is the transport network of the connection.
	Network NetworkKind

	// Direction records who initiated the connection.
	Direction Direction

	// ConnType is bitcoind's connection subtype.
	ConnType ConnType

	// UserAgent is the peer's advertised subversion string with the
	// surrounding slashes removed, e.g. "Satoshi:27.0.0".
	UserAgent string

	// ProtocolVersion is the peer's advertised p2p protocol version.
	ProtocolVersion uint32

	// Services is the peer's advertised service bitmask.
	Services wire.ServiceFlag

	// PingTime is the last measured round trip time, zero if no ping
	// has completed.
	PingTime time.Duration

	// BytesSent and BytesRecv are lifetime totals for the connection.
	BytesSent uint64
	BytesRecv uint64

	// ConnTime is when the connection was established, zero when
	// unknown.
	ConnTime time.Time

	// Geo is the peer's resolved geolocation.
	Geo GeoInfo

	// AS is the peer's resolved operator data. A zero AS marks a
	// "no-AS" peer which is excluded from provider aggregation but
	// still counted.
	AS ASInfo
}

// Validate reports whether the record carries the base fields every
// consumer relies on. Records failing validation are dropped from the
// poll; one bad record must never blank the whole view.
func (r *PeerRecord) Validate() error {
	if r.ID == "" {
		return ErrMissingPeerID
	}
	if r.Network == NetworkUnknown {
		return ErrUnknownNetwork
	}

	return nil
}

// Age returns how long the connection has been established at the given
// time, or zero when the connection time is unknown.
func (r *PeerRecord) Age(now time.Time) time.Duration {
	if r.ConnTime.IsZero() {
		return 0
	}

	return now.Sub(r.ConnTime)
}
