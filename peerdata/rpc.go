package peerdata

import (
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/wire"
)

// FromRPC converts one getpeerinfo result row plus its already-resolved
// geolocation and operator data into a PeerRecord. The btcd result type
// carries no connection subtype, so inbound peers are classified
// ConnTypeInbound and outbound peers ConnTypeOutboundFullRelay, matching
// bitcoind's default for automatic outbound connections.
func FromRPC(info btcjson.GetPeerInfoResult, geo GeoInfo,
	as ASInfo) PeerRecord {

	rec := PeerRecord{
		ID:              strconv.FormatInt(int64(info.ID), 10),
		Addr:            info.Addr,
		Network:         NetworkKindFromAddr(info.Addr),
		UserAgent:       strings.ReplaceAll(info.SubVer, "/", ""),
		ProtocolVersion: info.Version,
		Services:        parseServiceFlags(info.Services),
		BytesSent:       info.BytesSent,
		BytesRecv:       info.BytesRecv,
		Geo:             geo,
		AS:              as,
	}

	if info.Inbound {
		rec.Direction = DirectionInbound
		rec.ConnType = ConnTypeInbound
	} else {
		rec.Direction = DirectionOutbound
		rec.ConnType = ConnTypeOutboundFullRelay
	}

	// getpeerinfo reports ping time in seconds as a float.
	if info.PingTime > 0 {
		rec.PingTime = time.Duration(
			info.PingTime * float64(time.Second),
		)
	}

	if info.ConnTime > 0 {
		rec.ConnTime = time.Unix(info.ConnTime, 0)
	}

	// Peers on overlay networks or private address space never receive
	// a geolocation result, mark them up front so the resolver is not
	// consulted.
	if rec.Geo.Status == GeoPending &&
		(rec.Network.Overlay() ||
			IsPrivateHost(HostFromAddr(info.Addr))) {

		rec.Geo.Status = GeoPrivate
	}

	return rec
}

// parseServiceFlags decodes the hex encoded services field of
// getpeerinfo. A malformed value yields an empty flag set rather than an
// error, consistent with dropping only records that fail Validate.
func parseServiceFlags(hexStr string) wire.ServiceFlag {
	if hexStr == "" {
		return 0
	}

	bits, err := strconv.ParseUint(hexStr, 16, 64)
	if err != nil {
		return 0
	}

	return wire.ServiceFlag(bits)
}
