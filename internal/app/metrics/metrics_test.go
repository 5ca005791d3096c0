package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	done := TrackInFlight()
	RecordHTTPRequest("get", "/api/properties/{id}", http.StatusOK, 12*time.Millisecond)
	done()
	RecordSearchCache(true)
	RecordBid("accepted")
	RecordAuctionTransition("auction_ended")
	RecordSweep(0, true)
	RecordScrape("mock", 3, 1, 0, time.Second, true)
	WebsocketConnected(1)
	WebsocketConnected(-1)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`estatehub_http_requests_total{method="GET",path="/api/properties/{id}",status="200"}`,
		`estatehub_properties_search_cache_total{result="hit"}`,
		`estatehub_auctions_bids_total{outcome="accepted"}`,
		`estatehub_scraper_listings_total{result="created",source="mock"} 3`,
		`estatehub_auctions_websocket_subscribers 0`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
