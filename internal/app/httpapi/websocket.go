package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/metrics"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// auctionFeed streams auction events over a websocket. The first message is
// a snapshot of the current state. The feed ends when the auction hub drops
// the subscriber or the client goes away.
func (a *API) auctionFeed(w http.ResponseWriter, r *http.Request) {
	current, err := a.app.Auctions.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		a.log.WithError(err).WithField("auction_id", current.ID).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := a.app.Auctions.Hub().Subscribe(current.ID)
	defer cancel()
	metrics.WebsocketConnected(1)
	defer metrics.WebsocketConnected(-1)

	log := a.log.WithField("auction_id", current.ID).WithField("trace_id", traceID(r))
	log.Debug("auction feed opened")

	// The read loop only handles control frames and notices disconnects.
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(event auction.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(event)
	}
	if err := send(auction.Event{
		Type:      auction.EventSnapshot,
		AuctionID: current.ID,
		Auction:   current,
		At:        time.Now().UTC(),
	}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
					time.Now().Add(wsWriteWait))
				log.Debug("auction feed closed by hub")
				return
			}
			if err := send(event); err != nil {
				log.WithError(err).Debug("auction feed write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-gone:
			log.Debug("auction feed client left")
			return
		case <-r.Context().Done():
			return
		}
	}
}
