package asdiv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mbtcdash/peerscope/peerdata"
)

// OperatorID is an autonomous system number, the key the diversity
// analysis groups peers under.
type OperatorID uint32

// Provider identifies the network operator a peer connects through.
type Provider struct {
	// ID is the operator's autonomous system number.
	ID OperatorID

	// Name is the operator's full name, e.g. "Google LLC".
	Name string

	// ShortCode is the operator's registry handle, e.g. "GOOGLE".
	// May be empty when the upstream resolver did not supply one.
	ShortCode string
}

// String returns the provider in "AS15169 (Google LLC)" form.
func (p Provider) String() string {
	return fmt.Sprintf("AS%d (%s)", p.ID, p.Name)
}

// Classify extracts the provider identity from a peer record. The raw
// operator field is a loosely formatted string such as
// "AS15169 Google LLC": a leading ASN token followed by the operator
// name. Records without a conforming operator field, private network
// peers among them, return ok=false and take no part in aggregation.
// AS0 is reserved and treated as non-conforming.
func Classify(rec *peerdata.PeerRecord) (Provider, bool) {
	raw := strings.TrimSpace(rec.AS.Raw)
	if raw == "" {
		return Provider{}, false
	}

	token, rest, _ := strings.Cut(raw, " ")
	if !strings.HasPrefix(token, "AS") {
		return Provider{}, false
	}

	num, err := strconv.ParseUint(token[2:], 10, 32)
	if err != nil || num == 0 {
		return Provider{}, false
	}

	// Prefer the name trailing the ASN token, then the short code,
	// then the bare token so the provider is never nameless.
	name := strings.TrimSpace(rest)
	if name == "" {
		name = strings.TrimSpace(rec.AS.Name)
	}
	if name == "" {
		name = token
	}

	return Provider{
		ID:        OperatorID(num),
		Name:      name,
		ShortCode: strings.TrimSpace(rec.AS.Name),
	}, true
}
