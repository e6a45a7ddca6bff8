// Package feed turns externally collected peer snapshots into the
// record sets the rest of the daemon consumes. The wire format is the
// JSON array served by the upstream dashboard's /api/peers endpoint,
// which mixes getpeerinfo columns with ip-api.com geolocation and
// operator columns under their original key spellings.
package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/mbtcdash/peerscope/peerdata"
)

// peerRow is one element of the snapshot array. Field names follow the
// upstream payload, so the operator columns keep the ip-api.com
// spellings (as, asname, mobile, proxy, hosting) rather than Go-style
// names.
type peerRow struct {
	ID             int64    `json:"id"`
	Addr           string   `json:"addr"`
	IP             string   `json:"ip"`
	Port           string   `json:"port"`
	Network        string   `json:"network"`
	Direction      string   `json:"direction"`
	SubVer         string   `json:"subver"`
	Version        uint32   `json:"version"`
	ConnectionType string   `json:"connection_type"`
	Services       []string `json:"services"`
	BytesSent      uint64   `json:"bytessent"`
	BytesRecv      uint64   `json:"bytesrecv"`
	PingMillis     int64    `json:"ping_ms"`
	ConnTime       int64    `json:"conntime"`

	City           string  `json:"city"`
	RegionName     string  `json:"regionName"`
	Country        string  `json:"country"`
	CountryCode    string  `json:"countryCode"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	LocationStatus string  `json:"location_status"`

	AS      string `json:"as"`
	ASName  string `json:"asname"`
	Mobile  bool   `json:"mobile"`
	Proxy   bool   `json:"proxy"`
	Hosting bool   `json:"hosting"`
}

// ParseSnapshot decodes one complete peer snapshot. Rows are converted
// as-is: records that would not survive validation are still returned,
// since the aggregation layer is the one that counts drops.
func ParseSnapshot(r io.Reader) ([]*peerdata.PeerRecord, error) {
	var rows []peerRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("malformed peer snapshot: %w", err)
	}

	recs := make([]*peerdata.PeerRecord, 0, len(rows))
	for _, row := range rows {
		rec := row.record()
		recs = append(recs, &rec)
	}

	return recs, nil
}

// record converts a decoded row into a PeerRecord, deriving the fields
// the payload leaves implicit.
func (p *peerRow) record() peerdata.PeerRecord {
	addr := p.Addr
	if addr == "" && p.IP != "" {
		addr = net.JoinHostPort(p.IP, p.Port)
	}

	host := p.IP
	if host == "" {
		host = peerdata.HostFromAddr(addr)
	}

	network := peerdata.ParseNetworkKind(p.Network)
	if network == peerdata.NetworkUnknown {
		network = peerdata.NetworkKindFromAddr(addr)
	}

	rec := peerdata.PeerRecord{
		ID:              strconv.FormatInt(p.ID, 10),
		Addr:            addr,
		Network:         network,
		ConnType:        peerdata.ParseConnType(p.ConnectionType),
		UserAgent:       strings.ReplaceAll(p.SubVer, "/", ""),
		ProtocolVersion: p.Version,
		Services:        parseServiceNames(p.Services),
		BytesSent:       p.BytesSent,
		BytesRecv:       p.BytesRecv,
		Geo:             p.geo(network, host),
		AS: peerdata.ASInfo{
			Raw:     p.AS,
			Name:    p.ASName,
			Hosting: p.Hosting,
			Mobile:  p.Mobile,
			Proxy:   p.Proxy,
		},
	}

	switch p.Direction {
	case "IN":
		rec.Direction = peerdata.DirectionInbound
	case "OUT":
		rec.Direction = peerdata.DirectionOutbound
	default:
		// Fall back to the connection subtype when the payload
		// omits the direction column.
		if rec.ConnType == peerdata.ConnTypeInbound {
			rec.Direction = peerdata.DirectionInbound
		} else {
			rec.Direction = peerdata.DirectionOutbound
		}
	}

	if p.PingMillis > 0 {
		rec.PingTime = time.Duration(p.PingMillis) * time.Millisecond
	}
	if p.ConnTime > 0 {
		rec.ConnTime = time.Unix(p.ConnTime, 0)
	}

	return rec
}

// geo maps the row's geolocation columns onto a GeoInfo. Location
// fields are only carried over for resolved rows so that the GeoInfo
// zero-field contract holds regardless of what the collector sent.
func (p *peerRow) geo(network peerdata.NetworkKind,
	host string) peerdata.GeoInfo {

	geo := peerdata.GeoInfo{Status: p.geoStatus(network, host)}
	if geo.Status != peerdata.GeoResolved {
		return geo
	}

	geo.Country = p.Country
	geo.CountryCode = p.CountryCode
	geo.Region = p.RegionName
	geo.City = p.City
	geo.Lat = p.Lat
	geo.Lon = p.Lon

	return geo
}

func (p *peerRow) geoStatus(network peerdata.NetworkKind,
	host string) peerdata.GeoStatus {

	switch p.LocationStatus {
	case "ok":
		return peerdata.GeoResolved
	case "pending":
		return peerdata.GeoPending
	case "private":
		return peerdata.GeoPrivate
	case "unavailable":
		return peerdata.GeoUnavailable
	}

	// Collectors that skip the status column: peers whose address can
	// never be geolocated read as private, everything else as pending.
	if network.Overlay() || peerdata.IsPrivateHost(host) {
		return peerdata.GeoPrivate
	}

	return peerdata.GeoPending
}

// serviceBits maps getpeerinfo servicesnames entries to their wire
// flag.
var serviceBits = map[string]wire.ServiceFlag{
	"NETWORK":         wire.SFNodeNetwork,
	"GETUTXO":         wire.SFNodeGetUTXO,
	"BLOOM":           wire.SFNodeBloom,
	"WITNESS":         wire.SFNodeWitness,
	"XTHIN":           wire.SFNodeXthin,
	"COMPACT_FILTERS": wire.SFNodeCF,
	"NETWORK_LIMITED": wire.SFNodeNetworkLimited,

	// P2P_V2 is bitcoind's name for the BIP-324 encrypted transport
	// bit.
	"P2P_V2": 1 << 11,
}

// parseServiceNames folds a servicesnames list back into a flag set.
// bitcoind spells bits it has no name for as "UNKNOWN[2^n]"; names that
// match neither form are ignored.
func parseServiceNames(names []string) wire.ServiceFlag {
	var flags wire.ServiceFlag
	for _, name := range names {
		if bit, ok := serviceBits[name]; ok {
			flags |= bit
			continue
		}

		var n uint
		if _, err := fmt.Sscanf(name, "UNKNOWN[2^%d]", &n); err == nil &&
			n < 64 {

			flags |= 1 << n
		}
	}

	return flags
}
