package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/mbtcdash/peerscope/peerdata"
	"github.com/stretchr/testify/require"
)

// snapshotJSON is a two row capture of the upstream /api/peers payload,
// including the presentation-only columns the decoder is expected to
// skip over.
const snapshotJSON = `[
  {
    "id": 12,
    "network": "ipv4",
    "ip": "203.0.113.7",
    "port": "8333",
    "direction": "OUT",
    "subver": "Satoshi:27.0.0",
    "city": "Ashburn",
    "region": "VA",
    "regionName": "Virginia",
    "country": "United States",
    "countryCode": "US",
    "continent": "North America",
    "continentCode": "NA",
    "bytessent": 52100,
    "bytesrecv": 104200,
    "bytessent_fmt": "50.9KB",
    "bytesrecv_fmt": "101.8KB",
    "ping_ms": 123,
    "conntime": 1755000000,
    "conntime_fmt": "2h3m",
    "version": 70016,
    "connection_type": "outbound-full-relay",
    "connection_type_abbrev": "OFR",
    "services": ["NETWORK", "WITNESS", "NETWORK_LIMITED", "P2P_V2"],
    "services_abbrev": "N W N P",
    "lat": 39.0438,
    "lon": -77.4874,
    "isp": "Amazon.com, Inc.",
    "org": "AWS EC2 (us-east-1)",
    "as": "AS14618 Amazon.com, Inc.",
    "asname": "AMAZON-AES",
    "mobile": false,
    "proxy": false,
    "hosting": true,
    "in_addrman": true,
    "location": "Ashburn, US",
    "location_status": "ok",
    "addr": "203.0.113.7:8333"
  },
  {
    "id": 13,
    "network": "onion",
    "ip": "expyuzz4wqqyqhjn.onion",
    "port": "8333",
    "direction": "IN",
    "subver": "/Satoshi:26.1.0/",
    "city": "",
    "country": "Leftover",
    "countryCode": "",
    "bytessent": 10,
    "bytesrecv": 20,
    "ping_ms": 0,
    "conntime": 0,
    "version": 70016,
    "connection_type": "inbound",
    "services": ["NETWORK", "UNKNOWN[2^5]"],
    "lat": 0,
    "lon": 0,
    "as": "",
    "asname": "",
    "mobile": false,
    "proxy": false,
    "hosting": false,
    "location": "PRIVATE",
    "location_status": "private",
    "addr": "expyuzz4wqqyqhjn.onion:8333"
  }
]`

// TestParseSnapshot checks that a captured payload decodes into fully
// populated records, with getpeerinfo, geolocation and operator columns
// all landing in their typed fields.
func TestParseSnapshot(t *testing.T) {
	t.Parallel()

	recs, err := ParseSnapshot(strings.NewReader(snapshotJSON))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	clearnet := recs[0]
	require.Equal(t, "12", clearnet.ID)
	require.Equal(t, "203.0.113.7:8333", clearnet.Addr)
	require.Equal(t, peerdata.NetworkIPv4, clearnet.Network)
	require.Equal(t, peerdata.DirectionOutbound, clearnet.Direction)
	require.Equal(
		t, peerdata.ConnTypeOutboundFullRelay, clearnet.ConnType,
	)
	require.Equal(t, "Satoshi:27.0.0", clearnet.UserAgent)
	require.Equal(t, uint32(70016), clearnet.ProtocolVersion)
	require.Equal(
		t, wire.SFNodeNetwork|wire.SFNodeWitness|
			wire.SFNodeNetworkLimited|wire.ServiceFlag(1<<11),
		clearnet.Services,
	)
	require.Equal(t, uint64(52100), clearnet.BytesSent)
	require.Equal(t, uint64(104200), clearnet.BytesRecv)
	require.Equal(t, 123*time.Millisecond, clearnet.PingTime)
	require.Equal(t, time.Unix(1755000000, 0), clearnet.ConnTime)

	require.Equal(t, peerdata.GeoInfo{
		Status:      peerdata.GeoResolved,
		Country:     "United States",
		CountryCode: "US",
		Region:      "Virginia",
		City:        "Ashburn",
		Lat:         39.0438,
		Lon:         -77.4874,
	}, clearnet.Geo)
	require.Equal(t, peerdata.ASInfo{
		Raw:     "AS14618 Amazon.com, Inc.",
		Name:    "AMAZON-AES",
		Hosting: true,
	}, clearnet.AS)
	require.NoError(t, clearnet.Validate())

	onion := recs[1]
	require.Equal(t, "13", onion.ID)
	require.Equal(t, peerdata.NetworkOnion, onion.Network)
	require.Equal(t, peerdata.DirectionInbound, onion.Direction)
	require.Equal(t, peerdata.ConnTypeInbound, onion.ConnType)

	// The slash delimiters are stripped even when the collector left
	// them in.
	require.Equal(t, "Satoshi:26.1.0", onion.UserAgent)

	// Unnamed service bits come through under bitcoind's UNKNOWN[2^n]
	// spelling.
	require.Equal(
		t, wire.SFNodeNetwork|wire.ServiceFlag(1<<5), onion.Services,
	)

	require.Zero(t, onion.PingTime)
	require.True(t, onion.ConnTime.IsZero())

	// Private rows keep only the status: the stray country column in
	// the payload must not leak through.
	require.Equal(
		t, peerdata.GeoInfo{Status: peerdata.GeoPrivate}, onion.Geo,
	)
	require.Equal(t, peerdata.ASInfo{}, onion.AS)
	require.NoError(t, onion.Validate())
}

// TestParseSnapshotDefaults exercises the fallbacks for sparse rows
// from collectors that only fill the getpeerinfo basics.
func TestParseSnapshotDefaults(t *testing.T) {
	t.Parallel()

	const sparse = `[
	  {"id": 1, "ip": "198.51.100.4", "port": "8333"},
	  {"id": 2, "addr": "10.0.0.5:8333", "connection_type": "inbound"},
	  {"id": 3, "addr": "[2001:db8::1]:8333", "direction": "OUT"}
	]`

	recs, err := ParseSnapshot(strings.NewReader(sparse))
	require.NoError(t, err)
	require.Len(t, recs, 3)

	// Address assembled from ip and port, network derived from it,
	// and an unknown subtype defaults to outbound.
	require.Equal(t, "198.51.100.4:8333", recs[0].Addr)
	require.Equal(t, peerdata.NetworkIPv4, recs[0].Network)
	require.Equal(t, peerdata.DirectionOutbound, recs[0].Direction)
	require.Equal(t, peerdata.ConnTypeUnknown, recs[0].ConnType)
	require.Equal(t, peerdata.GeoPending, recs[0].Geo.Status)

	// Direction inferred from the inbound subtype, and a private
	// address reads as never geolocatable.
	require.Equal(t, peerdata.DirectionInbound, recs[1].Direction)
	require.Equal(t, peerdata.GeoPrivate, recs[1].Geo.Status)

	// Bracketed IPv6 classifies without a network column.
	require.Equal(t, peerdata.NetworkIPv6, recs[2].Network)
	require.Equal(t, peerdata.GeoPending, recs[2].Geo.Status)
}

// TestParseSnapshotMalformed checks that undecodable payloads surface
// as errors instead of empty snapshots.
func TestParseSnapshotMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "not json",
			payload: "{not json",
		},
		{
			name:    "object instead of array",
			payload: `{"id": 1}`,
		},
		{
			name:    "empty input",
			payload: "",
		},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseSnapshot(
				strings.NewReader(test.payload),
			)
			require.ErrorContains(t, err, "malformed peer snapshot")
		})
	}
}

// TestParseServiceNames checks the mapping from bitcoind's service name
// list back to wire flags.
func TestParseServiceNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		names []string
		flags wire.ServiceFlag
	}{
		{
			name:  "empty",
			names: nil,
			flags: 0,
		},
		{
			name:  "named bits",
			names: []string{"NETWORK", "WITNESS", "BLOOM"},
			flags: wire.SFNodeNetwork | wire.SFNodeWitness |
				wire.SFNodeBloom,
		},
		{
			name:  "compact filters",
			names: []string{"COMPACT_FILTERS"},
			flags: wire.SFNodeCF,
		},
		{
			name:  "unknown bit spelling",
			names: []string{"UNKNOWN[2^5]"},
			flags: 1 << 5,
		},
		{
			name:  "highest unknown bit",
			names: []string{"UNKNOWN[2^63]"},
			flags: 1 << 63,
		},
		{
			name:  "out of range bit",
			names: []string{"UNKNOWN[2^64]"},
			flags: 0,
		},
		{
			name:  "unrecognized name",
			names: []string{"FROBNICATE"},
			flags: 0,
		},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(
				t, test.flags,
				parseServiceNames(test.names),
			)
		})
	}
}
