package feed

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mbtcdash/peerscope/peerdata"
)

const (
	// defaultDialTimeout is the maximum time spent establishing a
	// connection to a snapshot endpoint.
	defaultDialTimeout = 5 * time.Second

	// defaultRequestTimeout bounds a whole snapshot request including
	// reading the body.
	defaultRequestTimeout = 10 * time.Second
)

// Source produces one complete peer snapshot per call. The returned
// records are owned by the caller and never reused by the source.
type Source interface {
	// FetchPeers returns the full set of currently connected peers.
	FetchPeers() ([]*peerdata.PeerRecord, error)
}

// WebSource fetches snapshots from a collaborator that serves the
// /api/peers contract over HTTP.
type WebSource struct {
	url    string
	client *http.Client
}

// NewWebSource creates a source that queries the given URL. The default
// http.Client carries no timeouts at all, so a stalled collaborator
// would block every later refresh; the source's client caps dialing,
// the TLS handshake and the overall request instead.
func NewWebSource(url string) *WebSource {
	netTransport := &http.Transport{
		Dial: (&net.Dialer{
			Timeout: defaultDialTimeout,
		}).Dial,
		TLSHandshakeTimeout: defaultDialTimeout,
	}

	return &WebSource{
		url: url,
		client: &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: netTransport,
		},
	}
}

// FetchPeers queries the endpoint and decodes the snapshot it returns.
//
// NOTE: Part of the Source interface.
func (w *WebSource) FetchPeers() ([]*peerdata.PeerRecord, error) {
	resp, err := w.client.Get(w.url)
	if err != nil {
		return nil, fmt.Errorf("unable to query %v: %w", w.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer snapshot query to %v "+
			"returned %v", w.url, resp.Status)
	}

	recs, err := ParseSnapshot(resp.Body)
	if err != nil {
		return nil, err
	}

	log.Debugf("Fetched %v peers from %v", len(recs), w.url)

	return recs, nil
}

// A compile-time assertion to ensure that WebSource implements the
// Source interface.
var _ Source = (*WebSource)(nil)

// FileSource reads snapshots from a JSON file on disk. The file is
// re-read on every call, so a collector may atomically replace it
// between polls.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the given snapshot file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// FetchPeers reads and decodes the current contents of the snapshot
// file.
//
// NOTE: Part of the Source interface.
func (f *FileSource) FetchPeers() ([]*peerdata.PeerRecord, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	recs, err := ParseSnapshot(file)
	if err != nil {
		return nil, fmt.Errorf("snapshot file %v: %w", f.path, err)
	}

	log.Debugf("Loaded %v peers from %v", len(recs), f.path)

	return recs, nil
}

// A compile-time assertion to ensure that FileSource implements the
// Source interface.
var _ Source = (*FileSource)(nil)
