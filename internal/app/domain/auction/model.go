package auction

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of an auction.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Open reports whether the auction still accepts deposits.
func (s Status) Open() bool {
	return s == StatusUpcoming || s == StatusActive
}

// PaymentStatus tracks settlement by the winner after the auction ends.
type PaymentStatus string

const (
	PaymentNone      PaymentStatus = "none"
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentDefaulted PaymentStatus = "defaulted"
)

// Auction is a timed, deposit-gated sale of one property.
type Auction struct {
	ID              string        `json:"id"`
	PropertyID      string        `json:"property_id"`
	SellerID        string        `json:"seller_id"`
	Title           string        `json:"title"`
	StartingPrice   float64       `json:"starting_price"`
	CurrentPrice    float64       `json:"current_price"`
	MinIncrement    float64       `json:"min_increment"`
	DepositAmount   float64       `json:"deposit_amount"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	PaymentWindow   time.Duration `json:"-"`
	Status          Status        `json:"status"`
	WinningBidID    string        `json:"winning_bid_id,omitempty"`
	WinnerID        string        `json:"winner_id,omitempty"`
	PaymentDeadline *time.Time    `json:"payment_deadline,omitempty"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentRef      string        `json:"payment_ref,omitempty"`
	BidCount        int           `json:"bid_count"`
	Version         int64         `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// auctionJSON carries the payment window in hours, the unit clients send it
// in when creating an auction.
type auctionJSON struct {
	plainAuction
	PaymentWindowHours float64 `json:"payment_window_hours"`
}

type plainAuction Auction

func (a Auction) MarshalJSON() ([]byte, error) {
	return json.Marshal(auctionJSON{
		plainAuction:       plainAuction(a),
		PaymentWindowHours: a.PaymentWindow.Hours(),
	})
}

func (a *Auction) UnmarshalJSON(data []byte) error {
	var aux auctionJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = Auction(aux.plainAuction)
	a.PaymentWindow = time.Duration(aux.PaymentWindowHours * float64(time.Hour))
	return nil
}

// AcceptingBids reports whether a bid at now falls inside the bidding window.
func (a Auction) AcceptingBids(now time.Time) bool {
	return a.Status == StatusActive && !now.Before(a.StartTime) && now.Before(a.EndTime)
}

// MinimumNextBid is the smallest amount the next bid may carry.
func (a Auction) MinimumNextBid() float64 {
	if a.BidCount == 0 {
		return a.StartingPrice
	}
	return a.CurrentPrice + a.MinIncrement
}

// DepositStatus tracks the money a bidder put up to participate.
type DepositStatus string

const (
	DepositPaid      DepositStatus = "paid"
	DepositRefunded  DepositStatus = "refunded"
	DepositForfeited DepositStatus = "forfeited"
	DepositApplied   DepositStatus = "applied"
)

// Deposit is a bidder's participation deposit.
type Deposit struct {
	ID        string        `json:"id"`
	AuctionID string        `json:"auction_id"`
	UserID    string        `json:"user_id"`
	Amount    float64       `json:"amount"`
	Reference string        `json:"reference,omitempty"`
	Status    DepositStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Bid is a single offer on an auction.
type Bid struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	Winning   bool      `json:"winning"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows auction listings.
type Filter struct {
	Status     Status
	PropertyID string
	SellerID   string
}

// Matches reports whether a passes the filter.
func (f Filter) Matches(a Auction) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.PropertyID != "" && a.PropertyID != f.PropertyID {
		return false
	}
	if f.SellerID != "" && a.SellerID != f.SellerID {
		return false
	}
	return true
}

// EventType names an auction lifecycle event.
type EventType string

const (
	EventStarted          EventType = "auction_started"
	EventBidPlaced        EventType = "bid_placed"
	EventEnded            EventType = "auction_ended"
	EventCancelled        EventType = "auction_cancelled"
	EventPaymentCompleted EventType = "payment_completed"
	EventPaymentDefaulted EventType = "payment_defaulted"

	// EventSnapshot is sent once to a new feed subscriber with the current
	// auction state.
	EventSnapshot EventType = "snapshot"
)

// Event is published to subscribers whenever an auction changes.
type Event struct {
	Type      EventType `json:"type"`
	AuctionID string    `json:"auction_id"`
	Auction   Auction   `json:"auction"`
	Bid       *Bid      `json:"bid,omitempty"`
	At        time.Time `json:"at"`
}
