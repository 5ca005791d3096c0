package auction

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAuctionJSONPaymentWindowInHours(t *testing.T) {
	a := Auction{ID: "a-1", Status: StatusActive, PaymentWindow: 36 * time.Hour}

	raw, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"payment_window_hours":36`) {
		t.Fatalf("expected payment_window_hours in %s", raw)
	}
	if strings.Contains(string(raw), `"payment_window":`) {
		t.Fatalf("raw duration leaked into %s", raw)
	}

	var decoded Auction
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.PaymentWindow != a.PaymentWindow || decoded.ID != "a-1" || decoded.Status != StatusActive {
		t.Fatalf("round trip mismatch: %#v", decoded)
	}
}

func TestEventEmbedsAuctionHours(t *testing.T) {
	a := Auction{ID: "a-2", PaymentWindow: 90 * time.Minute}
	raw, err := json.Marshal(Event{Type: EventSnapshot, AuctionID: a.ID, Auction: a})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"payment_window_hours":1.5`) {
		t.Fatalf("expected hours in event payload %s", raw)
	}
}
