package viewstate

import (
	"errors"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/mbtcdash/peerscope/anim"
	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/mbtcdash/peerscope/nav"
	"github.com/mbtcdash/peerscope/peerdata"
)

// errShuttingDown is returned when a query or event arrives while the
// store winds down.
var errShuttingDown = errors.New("view store shutting down")

// subscriberQueueSize is the per subscriber snapshot buffer.
const subscriberQueueSize = 20

// Config provides the view store's dependencies and tuning knobs.
type Config struct {
	// FetchPeers returns the current peer connection set. It is
	// called once per refresh tick, on the event loop.
	FetchPeers func() ([]*peerdata.PeerRecord, error)

	// RefreshTicker paces the data polls.
	RefreshTicker ticker.Ticker

	// FrameTicker paces animation advancement. Its ticks carry the
	// frame timestamps transitions are sampled at.
	FrameTicker ticker.Ticker

	// Clock provides poll timestamps and the wall clock the
	// animation watchdog measures against. A nil clock selects the
	// system clock.
	Clock clock.Clock

	// MaxSegments caps the individually displayed operators before
	// the remainder folds into Others. Zero selects the default.
	MaxSegments int

	// ChangeWindow is how long connects and disconnects stay in the
	// recent changes feed. Zero selects DefaultChangeWindow.
	ChangeWindow time.Duration

	// AnimationDuration is the nominal expansion transition length.
	// Zero selects the animation default.
	AnimationDuration time.Duration

	// Palette overrides the segment colors. The zero value selects
	// the default palette.
	Palette asdiv.Palette
}

// viewRequest queries one snapshot from the event loop.
type viewRequest struct {
	responseChan chan *ViewModel
}

// Store owns the dashboard's state and runs its event loop. All
// mutations, polled data, user events and animation frames, happen on
// that one loop; the store's methods only ever exchange messages with
// it.
type Store struct {
	cfg *Config

	// aggregator, controller, stack and changes are the stateful
	// engine parts. Only the event loop touches them after Start.
	aggregator *asdiv.Aggregator
	controller *anim.Controller
	stack      *nav.Stack
	changes    *changeLog

	// analysis is the current poll's product, never nil: before the
	// first poll it is the empty analysis.
	analysis *asdiv.Analysis
	score    fn.Option[asdiv.Score]
	totals   NetworkTotals
	pinned   fn.Option[asdiv.OperatorID]
	scroll   int
	seq      uint64
	seeded   bool

	events       chan Event
	viewRequests chan *viewRequest

	subCounter  uint64 // To be used atomically.
	subRequests chan *subRequest
	subscribers map[uint64]*Subscription

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewStore creates a Store around its dependencies, applying defaults
// to the zero parts of the config.
func NewStore(cfg *Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	s := &Store{
		cfg: cfg,
		aggregator: asdiv.NewAggregator(asdiv.AggregatorConfig{
			Clock:       cfg.Clock,
			MaxSegments: cfg.MaxSegments,
			Palette:     cfg.Palette,
		}),
		controller: anim.NewController(anim.ControllerConfig{
			Clock:    cfg.Clock,
			Duration: cfg.AnimationDuration,
		}),
		stack:        nav.NewStack(),
		changes:      newChangeLog(cfg.ChangeWindow),
		score:        fn.None[asdiv.Score](),
		pinned:       fn.None[asdiv.OperatorID](),
		events:       make(chan Event),
		viewRequests: make(chan *viewRequest),
		subRequests:  make(chan *subRequest),
		subscribers:  make(map[uint64]*Subscription),
		quit:         make(chan struct{}),
	}

	// Start from the empty analysis so the view is renderable
	// before the first poll lands.
	s.analysis = s.aggregator.Aggregate(nil)

	return s
}

// Start seeds the view with an initial poll and launches the event
// loop. A failed initial fetch is not fatal: the view starts empty and
// the refresh ticker retries.
func (s *Store) Start() error {
	log.Info("View store starting")

	// The loop is not running yet, so touching the state directly
	// is safe here.
	s.refresh()

	s.wg.Add(1)
	go s.eventLoop()

	return nil
}

// Stop terminates the event loop and all subscriptions.
func (s *Store) Stop() error {
	log.Info("View store stopping")

	close(s.quit)
	s.wg.Wait()

	return nil
}

// eventLoop is the store's main loop and the sole owner of its mutable
// state. Polls, user events, animation frames, snapshot queries and
// subscription changes are all serialized here, so none of the state
// needs a lock.
//
// NOTE: MUST be run as a goroutine.
func (s *Store) eventLoop() {
	s.cfg.RefreshTicker.Resume()
	s.cfg.FrameTicker.Resume()

	defer func() {
		s.cfg.RefreshTicker.Stop()
		s.cfg.FrameTicker.Stop()

		for id, sub := range s.subscribers {
			sub.updates.Stop()
			close(sub.quit)
			delete(s.subscribers, id)
		}

		s.wg.Done()
	}()

	for {
		select {
		// Poll a fresh peer set and fold it into the view.
		case <-s.cfg.RefreshTicker.Ticks():
			s.refresh()
			s.publish()

		// Advance a running transition to the frame timestamp.
		// Frames at rest change nothing and publish nothing.
		case now := <-s.cfg.FrameTicker.Ticks():
			if s.controller.Advance(now) {
				s.publish()
			}

		// Apply one user interaction.
		case event := <-s.events:
			s.handleEvent(event)
			s.publish()

		// Serve a snapshot query.
		case req := <-s.viewRequests:
			req.responseChan <- s.buildView()

		// Register or drop a subscription.
		case req := <-s.subRequests:
			s.handleSubRequest(req)

		case <-s.quit:
			return
		}
	}
}

// refresh pulls a fresh peer set and folds it into the view. A failed
// fetch keeps the previous poll on screen; a flaky upstream must never
// blank the dashboard.
func (s *Store) refresh() {
	recs, err := s.cfg.FetchPeers()
	if err != nil {
		log.Errorf("Peer fetch failed, keeping previous poll: %v",
			err)
		return
	}

	s.applyRefresh(recs)
}

// SendEvent hands one user interaction to the event loop, blocking
// until the loop accepts it. After it returns, the event's effect is
// visible to the next snapshot query.
func (s *Store) SendEvent(event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-s.quit:
		return errShuttingDown
	}
}

// Snapshot returns the current view model.
func (s *Store) Snapshot() (*ViewModel, error) {
	request := &viewRequest{
		responseChan: make(chan *ViewModel),
	}

	// Send the request to the main event loop, or return early if
	// the store has already received the signal to shut down.
	select {
	case s.viewRequests <- request:
	case <-s.quit:
		return nil, errShuttingDown
	}

	// Wait for the loop's response, giving up if it shuts down
	// before responding.
	select {
	case resp := <-request.responseChan:
		return resp, nil
	case <-s.quit:
		return nil, errShuttingDown
	}
}

// buildView assembles one immutable snapshot of the rendered state. It
// runs on the event loop.
func (s *Store) buildView() *ViewModel {
	now := s.cfg.Clock.Now()
	state := s.controller.State()

	vm := &ViewModel{
		Seq:             s.seq,
		GeneratedAt:     now,
		Segments:        buildSegments(s.analysis.Segments, state),
		Score:           s.score,
		AnalyzableCount: s.analysis.AnalyzableCount,
		NoASCount:       s.analysis.NoASCount,
		DroppedCount:    s.analysis.DroppedCount,
		Totals:          s.totals,
		Recent:          s.changes.snapshot(now),
		Frame:           s.stack.Current(),
		Panel:           fn.None[Panel](),
		Depth:           s.stack.Depth(),
		Phase:           state.Phase,
		Pinned:          s.pinned,
		ScrollOffset:    s.scroll,
	}

	vm.Frame.WhenSome(func(frame nav.Frame) {
		vm.Panel = fn.Some(resolvePanel(s.analysis, frame))
	})

	return vm
}
