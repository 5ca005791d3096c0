package httpapi

import (
	"net/http"
	"time"

	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/services/auctions"
	"github.com/estatehub/marketplace/internal/middleware"
)

type createAuctionRequest struct {
	PropertyID         string    `json:"property_id"`
	Title              string    `json:"title"`
	StartingPrice      float64   `json:"starting_price"`
	MinIncrement       float64   `json:"min_increment"`
	DepositAmount      float64   `json:"deposit_amount"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	PaymentWindowHours float64   `json:"payment_window_hours"`
}

func (a *API) createAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	created, err := a.app.Auctions.Create(r.Context(), middleware.ActorFrom(r.Context()), auctions.CreateInput{
		PropertyID:    req.PropertyID,
		Title:         req.Title,
		StartingPrice: req.StartingPrice,
		MinIncrement:  req.MinIncrement,
		DepositAmount: req.DepositAmount,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		PaymentWindow: time.Duration(req.PaymentWindowHours * float64(time.Hour)),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) listAuctions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := a.app.Auctions.List(r.Context(), auction.Filter{
		Status:     auction.Status(q.Get("status")),
		PropertyID: q.Get("property_id"),
		SellerID:   q.Get("seller_id"),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []auction.Auction{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getAuction(w http.ResponseWriter, r *http.Request) {
	found, err := a.app.Auctions.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (a *API) listBids(w http.ResponseWriter, r *http.Request) {
	bids, err := a.app.Auctions.ListBids(r.Context(), pathVar(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if bids == nil {
		bids = []auction.Bid{}
	}
	writeJSON(w, http.StatusOK, bids)
}

type bidRequest struct {
	Amount float64 `json:"amount"`
}

type bidResponse struct {
	Bid     auction.Bid     `json:"bid"`
	Auction auction.Auction `json:"auction"`
}

func (a *API) placeBid(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	bid, updated, err := a.app.Auctions.PlaceBid(r.Context(), pathVar(r, "id"), middleware.ActorFrom(r.Context()).UserID, req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bidResponse{Bid: bid, Auction: updated})
}

func (a *API) listDeposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := a.app.Auctions.ListDeposits(r.Context(), middleware.ActorFrom(r.Context()), pathVar(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if deposits == nil {
		deposits = []auction.Deposit{}
	}
	writeJSON(w, http.StatusOK, deposits)
}

type depositRequest struct {
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference"`
}

func (a *API) placeDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	deposit, err := a.app.Auctions.PlaceDeposit(r.Context(), pathVar(r, "id"), middleware.ActorFrom(r.Context()).UserID, req.Amount, req.Reference)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, deposit)
}

func (a *API) cancelAuction(w http.ResponseWriter, r *http.Request) {
	cancelled, err := a.app.Auctions.Cancel(r.Context(), middleware.ActorFrom(r.Context()), pathVar(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

type paymentRequest struct {
	Reference string `json:"reference"`
}

func (a *API) completePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	paid, err := a.app.Auctions.CompletePayment(r.Context(), middleware.ActorFrom(r.Context()), pathVar(r, "id"), req.Reference)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paid)
}
