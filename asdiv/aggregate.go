// Package asdiv groups peer connections by the autonomous system they
// are reachable through and grades how concentrated the resulting
// distribution is. It produces the ranked segment list behind the
// provider donut, the per-operator statistics behind the detail
// panels, and the diversity score.
package asdiv

import (
	"sort"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/mbtcdash/peerscope/peerdata"
)

const (
	// DefaultMaxSegments is the number of operators displayed
	// individually before the remainder folds into Others.
	DefaultMaxSegments = 8

	// OthersName labels the synthetic bucket absorbing the operators
	// ranked past the displayed set.
	OthersName = "Others"
)

// RiskTier grades a single operator's share of the analyzable peers.
type RiskTier uint8

const (
	// RiskLow covers shares below 15%. Low risk carries no label.
	RiskLow RiskTier = iota

	// RiskModerate covers shares from 15% up to 30%.
	RiskModerate

	// RiskHigh covers shares from 30% up to and including 50%.
	RiskHigh

	// RiskCritical covers shares above 50%, one operator controlling
	// the majority of analyzable peers.
	RiskCritical
)

// String returns a human readable risk tier name.
func (r RiskTier) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskModerate:
		return "moderate"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Label returns the text displayed next to a segment. Low risk
// segments display no label at all.
func (r RiskTier) Label() string {
	if r == RiskLow {
		return ""
	}

	return r.String()
}

// riskTier maps a share percentage to its tier.
func riskTier(share float64) RiskTier {
	switch {
	case share < 15:
		return RiskLow
	case share < 30:
		return RiskModerate
	case share <= 50:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// HostingClass describes the kind of address space an operator's peers
// live in, derived by majority vote over the per-peer hosting flag.
type HostingClass uint8

const (
	// HostingResidential means most members are not flagged as
	// datacenter addresses.
	HostingResidential HostingClass = iota

	// HostingCloud means most members are flagged as datacenter
	// addresses.
	HostingCloud

	// HostingMixed means the vote is tied.
	HostingMixed
)

// String returns a human readable hosting class name.
func (h HostingClass) String() string {
	switch h {
	case HostingResidential:
		return "residential"
	case HostingCloud:
		return "cloud"
	case HostingMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// Aggregate holds one operator's statistics for one poll cycle.
// Aggregates are value objects: they are recomputed wholesale on every
// refresh and never mutated in place across cycles.
type Aggregate struct {
	// Provider identifies the operator. The synthetic Others bucket
	// carries the zero ID and OthersName.
	Provider Provider

	// Others marks the synthetic bucket folding the operators ranked
	// past the displayed set.
	Others bool

	// Color is the segment display color. It stays with the operator
	// for as long as the operator remains displayed.
	Color string

	// PeerCount is the number of member peers.
	PeerCount int

	// Share is the percentage of analyzable peers, 0 to 100.
	Share float64

	// Inbound and Outbound split the members by direction.
	Inbound  int
	Outbound int

	// ConnTypes counts members per connection subtype.
	ConnTypes map[peerdata.ConnType]int

	// AvgPing is the mean round trip over members reporting one.
	AvgPing time.Duration

	// AvgBytesSent and AvgBytesRecv are mean per-member transfer
	// totals.
	AvgBytesSent uint64
	AvgBytesRecv uint64

	// AvgAge is the mean connection duration over members with a
	// known connect time.
	AvgAge time.Duration

	// UserAgents counts members per advertised software version.
	UserAgents map[string]int

	// Countries counts members per resolved country.
	Countries map[string]int

	// ServiceSets counts members per advertised service flag
	// combination.
	ServiceSets map[string]int

	// Hosting classifies the operator's address space.
	Hosting HostingClass

	// Risk grades the operator's share. The Others bucket is a mix
	// of small operators and always keeps the low tier.
	Risk RiskTier

	// Peers lists the member peer ids in ascending order.
	Peers []string
}

// Analysis is the product of one aggregation pass over a poll's peer
// records.
type Analysis struct {
	// Segments is the display list: the top operators in rank order,
	// followed by the synthetic Others bucket when more operators
	// exist than display slots.
	Segments []*Aggregate

	// Operators holds every operator's aggregate in rank order,
	// before any folding. Entries past the display cutoff are the
	// ones folded into Others.
	Operators []*Aggregate

	// Records indexes every valid peer record of the poll by id,
	// private peers included.
	Records map[string]*peerdata.PeerRecord

	// AnalyzableCount is the number of peers carrying operator data.
	AnalyzableCount int

	// NoASCount is the number of valid peers without operator data.
	NoASCount int

	// DroppedCount is the number of records dropped for missing base
	// fields or duplicate ids.
	DroppedCount int

	// byID indexes Operators for entity lookups.
	byID map[OperatorID]*Aggregate
}

// Operator returns the pre-folding aggregate of an operator.
func (a *Analysis) Operator(id OperatorID) (*Aggregate, bool) {
	agg, ok := a.byID[id]
	return agg, ok
}

// HasOperator reports whether the operator appeared in this poll,
// displayed or folded.
func (a *Analysis) HasOperator(id OperatorID) bool {
	_, ok := a.byID[id]
	return ok
}

// HasPeer reports whether the peer id appeared in this poll.
func (a *Analysis) HasPeer(id string) bool {
	_, ok := a.Records[id]
	return ok
}

// Folded returns the operators folded into the Others bucket, in rank
// order. The slice is empty when everything fits the displayed set.
func (a *Analysis) Folded() []*Aggregate {
	n := len(a.Segments)
	if n == 0 || !a.Segments[n-1].Others {
		return nil
	}

	return a.Operators[n-1:]
}

// AggregatorConfig bundles the dependencies and tuning knobs of an
// Aggregator.
type AggregatorConfig struct {
	// Clock provides the poll timestamp for connection age math.
	Clock clock.Clock

	// MaxSegments is the number of operators displayed individually.
	// Values below one select DefaultMaxSegments.
	MaxSegments int

	// Palette supplies the segment colors. The zero value selects
	// DefaultPalette.
	Palette Palette
}

// Aggregator partitions peer records by operator. It carries the color
// assignment across polls so a displayed operator keeps its color even
// while its rank moves, and only hands out a slot when an operator
// enters or leaves the displayed set. An Aggregator is driven from a
// single goroutine.
type Aggregator struct {
	cfg AggregatorConfig

	// colors maps displayed operators to palette slots.
	colors map[OperatorID]int
}

// NewAggregator creates an Aggregator, applying defaults to the zero
// parts of the config.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.MaxSegments < 1 {
		cfg.MaxSegments = DefaultMaxSegments
	}
	if cfg.Palette == (Palette{}) {
		cfg.Palette = DefaultPalette
	}

	return &Aggregator{
		cfg:    cfg,
		colors: make(map[OperatorID]int),
	}
}

// Aggregate partitions one poll's records by operator and computes
// every operator's statistics, the displayed segment list and the
// no-AS tally. Malformed records are dropped one by one, they never
// abort the pass.
func (a *Aggregator) Aggregate(recs []*peerdata.PeerRecord) *Analysis {
	now := a.cfg.Clock.Now()

	analysis := &Analysis{
		Records: make(map[string]*peerdata.PeerRecord, len(recs)),
		byID:    make(map[OperatorID]*Aggregate),
	}

	accums := make(map[OperatorID]*accum)
	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			analysis.DroppedCount++
			log.Debugf("Dropping peer record: %v", err)
			continue
		}
		if _, ok := analysis.Records[rec.ID]; ok {
			analysis.DroppedCount++
			log.Debugf("Dropping duplicate peer record %v", rec.ID)
			continue
		}
		analysis.Records[rec.ID] = rec

		provider, ok := Classify(rec)
		if !ok {
			analysis.NoASCount++
			continue
		}
		analysis.AnalyzableCount++

		acc, ok := accums[provider.ID]
		if !ok {
			acc = newAccum(provider)
			accums[provider.ID] = acc
		}
		acc.add(rec, now)
	}

	// Rank operators by weight, ties broken by operator id so the
	// order is deterministic across polls.
	ops := make([]*Aggregate, 0, len(accums))
	for _, acc := range accums {
		ops = append(ops, acc.aggregate(analysis.AnalyzableCount))
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].PeerCount != ops[j].PeerCount {
			return ops[i].PeerCount > ops[j].PeerCount
		}
		return ops[i].Provider.ID < ops[j].Provider.ID
	})

	analysis.Operators = ops
	for _, agg := range ops {
		analysis.byID[agg.Provider.ID] = agg
	}

	a.assignColors(ops)

	if len(ops) <= a.cfg.MaxSegments {
		analysis.Segments = ops

		log.Debugf("Aggregated %d peers into %d operators "+
			"(%d no-AS, %d dropped)", analysis.AnalyzableCount,
			len(ops), analysis.NoASCount, analysis.DroppedCount)

		return analysis
	}

	// Fold the tail into the Others bucket: its members and
	// distributions are the union of the folded operators.
	othersAcc := newAccum(Provider{Name: OthersName})
	for _, agg := range ops[a.cfg.MaxSegments:] {
		othersAcc.merge(accums[agg.Provider.ID])
	}
	others := othersAcc.aggregate(analysis.AnalyzableCount)
	others.Others = true
	others.Color = a.cfg.Palette.Others()
	others.Risk = RiskLow

	segments := make([]*Aggregate, 0, a.cfg.MaxSegments+1)
	segments = append(segments, ops[:a.cfg.MaxSegments]...)
	segments = append(segments, others)
	analysis.Segments = segments

	log.Debugf("Aggregated %d peers into %d operators, %d folded "+
		"into %v (%d no-AS, %d dropped)", analysis.AnalyzableCount,
		len(ops), len(ops)-a.cfg.MaxSegments, OthersName,
		analysis.NoASCount, analysis.DroppedCount)

	return analysis
}

// assignColors hands palette slots to the displayed operators.
// Operators already holding a slot keep it, operators that dropped out
// release theirs, and new entrants claim the lowest free slot in rank
// order.
func (a *Aggregator) assignColors(ops []*Aggregate) {
	displayed := ops
	if len(displayed) > a.cfg.MaxSegments {
		displayed = displayed[:a.cfg.MaxSegments]
	}

	current := make(map[OperatorID]struct{}, len(displayed))
	for _, agg := range displayed {
		current[agg.Provider.ID] = struct{}{}
	}

	used := make(map[int]struct{}, len(displayed))
	for id, slot := range a.colors {
		if _, ok := current[id]; !ok {
			delete(a.colors, id)
			continue
		}
		used[slot] = struct{}{}
	}

	next := 0
	for _, agg := range displayed {
		id := agg.Provider.ID
		slot, ok := a.colors[id]
		if !ok {
			for {
				if _, taken := used[next]; !taken {
					break
				}
				next++
			}
			slot = next
			used[slot] = struct{}{}
			a.colors[id] = slot

			log.Tracef("Operator %v entered the displayed set, "+
				"slot %d", agg.Provider, slot)
		}
		agg.Color = a.cfg.Palette.Rank(slot)
	}
}

// accum collects one partition's members before the averages and
// shares can be computed.
type accum struct {
	provider    Provider
	peers       []string
	inbound     int
	outbound    int
	connTypes   map[peerdata.ConnType]int
	userAgents  map[string]int
	countries   map[string]int
	serviceSets map[string]int
	hosting     int
	pingSum     time.Duration
	pingCount   int
	ageSum      time.Duration
	ageCount    int
	sentSum     uint64
	recvSum     uint64
}

func newAccum(p Provider) *accum {
	return &accum{
		provider:    p,
		connTypes:   make(map[peerdata.ConnType]int),
		userAgents:  make(map[string]int),
		countries:   make(map[string]int),
		serviceSets: make(map[string]int),
	}
}

// add folds one member record into the accumulator.
func (ac *accum) add(rec *peerdata.PeerRecord, now time.Time) {
	ac.peers = append(ac.peers, rec.ID)

	if rec.Direction == peerdata.DirectionInbound {
		ac.inbound++
	} else {
		ac.outbound++
	}

	ac.connTypes[rec.ConnType]++
	ac.serviceSets[rec.Services.String()]++

	if rec.UserAgent != "" {
		ac.userAgents[rec.UserAgent]++
	}
	if rec.Geo.Country != "" {
		ac.countries[rec.Geo.Country]++
	}
	if rec.AS.Hosting {
		ac.hosting++
	}
	if rec.PingTime > 0 {
		ac.pingSum += rec.PingTime
		ac.pingCount++
	}
	if age := rec.Age(now); age > 0 {
		ac.ageSum += age
		ac.ageCount++
	}

	ac.sentSum += rec.BytesSent
	ac.recvSum += rec.BytesRecv
}

// merge folds another accumulator's members into this one.
func (ac *accum) merge(other *accum) {
	ac.peers = append(ac.peers, other.peers...)
	ac.inbound += other.inbound
	ac.outbound += other.outbound

	for k, v := range other.connTypes {
		ac.connTypes[k] += v
	}
	for k, v := range other.userAgents {
		ac.userAgents[k] += v
	}
	for k, v := range other.countries {
		ac.countries[k] += v
	}
	for k, v := range other.serviceSets {
		ac.serviceSets[k] += v
	}

	ac.hosting += other.hosting
	ac.pingSum += other.pingSum
	ac.pingCount += other.pingCount
	ac.ageSum += other.ageSum
	ac.ageCount += other.ageCount
	ac.sentSum += other.sentSum
	ac.recvSum += other.recvSum
}

// aggregate finalizes the accumulator into the operator's value object
// for this cycle.
func (ac *accum) aggregate(analyzable int) *Aggregate {
	n := len(ac.peers)

	agg := &Aggregate{
		Provider:    ac.provider,
		PeerCount:   n,
		Inbound:     ac.inbound,
		Outbound:    ac.outbound,
		ConnTypes:   ac.connTypes,
		UserAgents:  ac.userAgents,
		Countries:   ac.countries,
		ServiceSets: ac.serviceSets,
		Peers:       ac.peers,
	}
	sort.Strings(agg.Peers)

	if analyzable > 0 {
		agg.Share = float64(n) / float64(analyzable) * 100
	}
	agg.Risk = riskTier(agg.Share)

	switch {
	case ac.hosting*2 > n:
		agg.Hosting = HostingCloud
	case ac.hosting*2 < n:
		agg.Hosting = HostingResidential
	default:
		agg.Hosting = HostingMixed
	}

	if ac.pingCount > 0 {
		agg.AvgPing = ac.pingSum / time.Duration(ac.pingCount)
	}
	if ac.ageCount > 0 {
		agg.AvgAge = ac.ageSum / time.Duration(ac.ageCount)
	}
	if n > 0 {
		agg.AvgBytesSent = ac.sentSum / uint64(n)
		agg.AvgBytesRecv = ac.recvSum / uint64(n)
	}

	return agg
}
