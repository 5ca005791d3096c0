package auctions

import (
	"sync"

	"github.com/estatehub/marketplace/internal/app/domain/auction"
)

const defaultSubscriberBuffer = 16

// Hub fans auction events out to subscribers of each auction. Publishing never
// blocks: a subscriber whose buffer is full is dropped and its channel closed.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
}

type subscriber struct {
	ch     chan auction.Event
	closed bool
}

// NewHub creates an empty hub. buffer sizes each subscriber's queue.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{subs: make(map[string]map[*subscriber]struct{}), buffer: buffer}
}

// Subscribe registers for events of auctionID. The returned cancel function
// unsubscribes and closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe(auctionID string) (<-chan auction.Event, func()) {
	sub := &subscriber{ch: make(chan auction.Event, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[auctionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[auctionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	return sub.ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.removeLocked(auctionID, sub)
	}
}

// Publish delivers event to every subscriber of its auction.
func (h *Hub) Publish(event auction.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[event.AuctionID] {
		select {
		case sub.ch <- event:
		default:
			h.removeLocked(event.AuctionID, sub)
		}
	}
}

// Subscribers reports how many subscribers follow auctionID.
func (h *Hub) Subscribers(auctionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[auctionID])
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		for sub := range set {
			h.removeLocked(id, sub)
		}
	}
}

func (h *Hub) removeLocked(auctionID string, sub *subscriber) {
	set := h.subs[auctionID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, auctionID)
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}
