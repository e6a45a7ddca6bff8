package viewstate

import (
	"sync/atomic"

	"github.com/lightningnetwork/lnd/queue"
)

// Subscription delivers view snapshots to one observer. Snapshots are
// pushed after every poll, user event and animation frame that changed
// the rendered state, through a buffered queue so a slow observer
// never stalls the event loop.
type Subscription struct {
	// cancel tells the store the observer is done.
	cancel func()

	updates *queue.ConcurrentQueue
	quit    chan struct{}
}

// Updates returns the channel the snapshots arrive on. Every update is
// a *ViewModel.
func (s *Subscription) Updates() <-chan interface{} {
	return s.updates.ChanOut()
}

// Quit is closed when the store stops delivering to this subscription.
func (s *Subscription) Quit() <-chan struct{} {
	return s.quit
}

// Cancel ends the subscription.
func (s *Subscription) Cancel() {
	s.cancel()
}

// subRequest asks the event loop to register or drop a subscription.
type subRequest struct {
	// cancel marks a drop request. When false, sub is registered
	// under id.
	cancel bool

	id  uint64
	sub *Subscription
}

// Subscribe registers an observer for view snapshots. The returned
// subscription delivers every snapshot published from the point the
// event loop picks the registration up.
func (s *Store) Subscribe() (*Subscription, error) {
	id := atomic.AddUint64(&s.subCounter, 1)

	sub := &Subscription{
		updates: queue.NewConcurrentQueue(subscriberQueueSize),
		quit:    make(chan struct{}),
		cancel: func() {
			select {
			case s.subRequests <- &subRequest{
				cancel: true,
				id:     id,
			}:
			case <-s.quit:
			}
		},
	}

	select {
	case s.subRequests <- &subRequest{id: id, sub: sub}:
	case <-s.quit:
		return nil, errShuttingDown
	}

	return sub, nil
}

// handleSubRequest registers or drops one subscription. It runs on the
// event loop, which owns the subscriber set.
func (s *Store) handleSubRequest(req *subRequest) {
	if req.cancel {
		sub, ok := s.subscribers[req.id]
		if ok {
			sub.updates.Stop()
			close(sub.quit)
			delete(s.subscribers, req.id)
		}

		return
	}

	req.sub.updates.Start()
	s.subscribers[req.id] = req.sub
}

// publish pushes a fresh snapshot to every subscriber.
func (s *Store) publish() {
	if len(s.subscribers) == 0 {
		return
	}

	vm := s.buildView()
	for _, sub := range s.subscribers {
		select {
		case sub.updates.ChanIn() <- vm:
		case <-sub.quit:
		case <-s.quit:
			return
		}
	}
}
