package auctions

import (
	"testing"

	"github.com/estatehub/marketplace/internal/app/domain/auction"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub(2)
	a, cancelA := hub.Subscribe("a-1")
	b, cancelB := hub.Subscribe("a-1")
	other, cancelOther := hub.Subscribe("a-2")
	defer cancelA()
	defer cancelB()
	defer cancelOther()

	hub.Publish(auction.Event{Type: auction.EventBidPlaced, AuctionID: "a-1"})

	for _, ch := range []<-chan auction.Event{a, b} {
		if ev := <-ch; ev.Type != auction.EventBidPlaced {
			t.Fatalf("unexpected event %#v", ev)
		}
	}
	select {
	case ev := <-other:
		t.Fatalf("subscriber of another auction received %#v", ev)
	default:
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(1)
	slow, cancel := hub.Subscribe("a-1")
	defer cancel()

	hub.Publish(auction.Event{AuctionID: "a-1", Type: auction.EventBidPlaced})
	hub.Publish(auction.Event{AuctionID: "a-1", Type: auction.EventBidPlaced})

	if hub.Subscribers("a-1") != 0 {
		t.Fatalf("expected slow subscriber dropped")
	}
	if _, ok := <-slow; !ok {
		t.Fatalf("expected buffered event before close")
	}
	if _, ok := <-slow; ok {
		t.Fatalf("expected channel closed after drop")
	}
	cancel()
}

func TestHubCancelAndClose(t *testing.T) {
	hub := NewHub(0)
	ch, cancel := hub.Subscribe("a-1")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}

	ch2, _ := hub.Subscribe("a-2")
	hub.Close()
	if _, ok := <-ch2; ok {
		t.Fatalf("expected closed channel after hub close")
	}
}
