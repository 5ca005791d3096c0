package auctions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/metrics"
	"github.com/estatehub/marketplace/internal/app/storage"
	"github.com/estatehub/marketplace/internal/cache"
	"github.com/estatehub/marketplace/pkg/logger"
)

const (
	// SnipeWindow is the final stretch of an auction in which a bid extends it.
	SnipeWindow = 2 * time.Minute
	// SnipeExtension is how far such a bid pushes the end time.
	SnipeExtension = 2 * time.Minute

	depositRefTTL = 24 * time.Hour
)

// Properties is the slice of the property service auctions depend on.
type Properties interface {
	Lookup(ctx context.Context, id string) (property.Property, error)
	SetStatus(ctx context.Context, id string, status property.Status) (property.Property, error)
}

// Options carries auction defaults.
type Options struct {
	MinIncrement   float64
	DepositPercent float64
	PaymentWindow  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinIncrement <= 0 {
		o.MinIncrement = 100
	}
	if o.DepositPercent <= 0 {
		o.DepositPercent = 10
	}
	if o.PaymentWindow <= 0 {
		o.PaymentWindow = 72 * time.Hour
	}
	return o
}

// Service runs the deposit, bid and settlement workflow.
type Service struct {
	store      storage.AuctionStore
	properties Properties
	refs       cache.Cache
	hub        *Hub
	locks      *keyedMutex
	opts       Options
	now        func() time.Time
	log        *logger.Logger
}

// New constructs an auction service. refs reserves deposit references and
// may be nil.
func New(store storage.AuctionStore, properties Properties, refs cache.Cache, hub *Hub, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auctions")
	}
	if hub == nil {
		hub = NewHub(0)
	}
	return &Service{
		store:      store,
		properties: properties,
		refs:       refs,
		hub:        hub,
		locks:      newKeyedMutex(),
		opts:       opts.withDefaults(),
		now:        time.Now,
		log:        log,
	}
}

// Descriptor advertises the service.
func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "auctions",
		Domain:       "auctions",
		Layer:        service.LayerDomain,
		Capabilities: []string{"deposit", "bid", "settle", "events"},
	}
}

// Hub exposes the event hub for streaming subscribers.
func (s *Service) Hub() *Hub {
	return s.hub
}

// CreateInput describes a new auction.
type CreateInput struct {
	PropertyID    string        `json:"property_id"`
	Title         string        `json:"title"`
	StartingPrice float64       `json:"starting_price"`
	MinIncrement  float64       `json:"min_increment"`
	DepositAmount float64       `json:"deposit_amount"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	PaymentWindow time.Duration `json:"-"`
}

// Create opens an auction for a property the actor owns.
func (s *Service) Create(ctx context.Context, actor service.Actor, in CreateInput) (auction.Auction, error) {
	if in.StartingPrice <= 0 {
		return auction.Auction{}, service.Invalid("starting_price must be positive")
	}
	if in.MinIncrement < 0 || in.DepositAmount < 0 || in.PaymentWindow < 0 {
		return auction.Auction{}, service.Invalid("increment, deposit and payment window cannot be negative")
	}
	now := s.now().UTC()
	if in.StartTime.IsZero() {
		in.StartTime = now
	}
	if !in.EndTime.After(in.StartTime) {
		return auction.Auction{}, service.Invalid("end_time must be after start_time")
	}
	if !in.EndTime.After(now) {
		return auction.Auction{}, service.Invalid("end_time must be in the future")
	}

	p, err := s.properties.Lookup(ctx, in.PropertyID)
	if err != nil {
		return auction.Auction{}, err
	}
	if !actor.CanManage(p.OwnerID) {
		return auction.Auction{}, fmt.Errorf("%w: only the owner can auction property %s", service.ErrForbidden, p.ID)
	}
	if p.ListingType != property.ListingAuction {
		return auction.Auction{}, service.Invalid("property %s is listed for %s, not auction", p.ID, p.ListingType)
	}
	if p.Status != property.StatusAvailable {
		return auction.Auction{}, fmt.Errorf("property %s is %s: %w", p.ID, p.Status, auction.ErrInvalidState)
	}

	unlock := s.locks.Lock("property:" + p.ID)
	defer unlock()

	existing, err := s.store.ListAuctions(ctx, auction.Filter{PropertyID: p.ID})
	if err != nil {
		return auction.Auction{}, err
	}
	for _, a := range existing {
		if a.Status.Open() {
			return auction.Auction{}, fmt.Errorf("property %s already has %s auction %s: %w", p.ID, a.Status, a.ID, storage.ErrConflict)
		}
	}

	a := auction.Auction{
		PropertyID:    p.ID,
		SellerID:      p.OwnerID,
		Title:         strings.TrimSpace(in.Title),
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		MinIncrement:  in.MinIncrement,
		DepositAmount: in.DepositAmount,
		StartTime:     in.StartTime.UTC(),
		EndTime:       in.EndTime.UTC(),
		PaymentWindow: in.PaymentWindow,
		Status:        auction.StatusUpcoming,
		PaymentStatus: auction.PaymentNone,
	}
	if a.Title == "" {
		a.Title = p.Title
	}
	if a.MinIncrement == 0 {
		a.MinIncrement = s.opts.MinIncrement
	}
	if a.DepositAmount == 0 {
		a.DepositAmount = roundCents(a.StartingPrice * s.opts.DepositPercent / 100)
	}
	if a.PaymentWindow == 0 {
		a.PaymentWindow = s.opts.PaymentWindow
	}
	if !a.StartTime.After(now) {
		a.Status = auction.StatusActive
	}

	created, err := s.store.CreateAuction(ctx, a)
	if err != nil {
		return auction.Auction{}, err
	}
	s.log.WithField("auction_id", created.ID).
		WithField("property_id", p.ID).
		WithField("status", created.Status).
		Info("auction created")
	if created.Status == auction.StatusActive {
		s.publish(auction.EventStarted, created, nil)
	}
	return created, nil
}

// Get returns an auction.
func (s *Service) Get(ctx context.Context, id string) (auction.Auction, error) {
	return s.store.GetAuction(ctx, id)
}

// List returns auctions matching filter, soonest ending first.
func (s *Service) List(ctx context.Context, filter auction.Filter) ([]auction.Auction, error) {
	return s.store.ListAuctions(ctx, filter)
}

// ListBids returns an auction's bids, newest first.
func (s *Service) ListBids(ctx context.Context, id string) ([]auction.Bid, error) {
	if _, err := s.store.GetAuction(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListBids(ctx, id)
}

// ListDeposits returns an auction's deposits. Only the seller and admins may
// see them.
func (s *Service) ListDeposits(ctx context.Context, actor service.Actor, id string) ([]auction.Deposit, error) {
	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(a.SellerID) {
		return nil, fmt.Errorf("%w: deposits are visible to the seller only", service.ErrForbidden)
	}
	return s.store.ListDeposits(ctx, id)
}

// PlaceDeposit records a bidder's participation deposit. Repeating a deposit
// with the same reference returns the original.
func (s *Service) PlaceDeposit(ctx context.Context, auctionID, userID string, amount float64, reference string) (auction.Deposit, error) {
	reference = strings.TrimSpace(reference)
	if strings.TrimSpace(userID) == "" {
		return auction.Deposit{}, service.Invalid("user_id is required")
	}

	unlock := s.locks.Lock(auctionID)
	defer unlock()

	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return auction.Deposit{}, err
	}

	if existing, err := s.store.GetDepositByUser(ctx, auctionID, userID); err == nil {
		return sameDeposit(existing, reference)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return auction.Deposit{}, err
	}

	if !a.Status.Open() {
		return auction.Deposit{}, fmt.Errorf("auction %s is %s: %w", a.ID, a.Status, auction.ErrAuctionNotActive)
	}
	if a.SellerID == userID {
		return auction.Deposit{}, fmt.Errorf("%w: the seller cannot deposit on their own auction", service.ErrForbidden)
	}
	if amount < a.DepositAmount {
		return auction.Deposit{}, service.Invalid("deposit must be at least %.2f", a.DepositAmount)
	}

	if err := s.reserveReference(ctx, auctionID, userID, reference); err != nil {
		return auction.Deposit{}, err
	}

	created, err := s.store.CreateDeposit(ctx, auction.Deposit{
		AuctionID: auctionID,
		UserID:    userID,
		Amount:    roundCents(amount),
		Reference: reference,
		Status:    auction.DepositPaid,
	})
	if errors.Is(err, storage.ErrConflict) {
		existing, getErr := s.store.GetDepositByUser(ctx, auctionID, userID)
		if getErr != nil {
			return auction.Deposit{}, err
		}
		return sameDeposit(existing, reference)
	}
	if err != nil {
		return auction.Deposit{}, err
	}
	s.log.WithField("auction_id", auctionID).WithField("user_id", userID).Info("deposit placed")
	return created, nil
}

func sameDeposit(existing auction.Deposit, reference string) (auction.Deposit, error) {
	if existing.Reference == reference {
		return existing, nil
	}
	return auction.Deposit{}, fmt.Errorf("user already holds deposit %s on auction %s: %w", existing.ID, existing.AuctionID, storage.ErrConflict)
}

// reserveReference claims a payment reference so a retried deposit on another
// instance collapses onto the first one.
func (s *Service) reserveReference(ctx context.Context, auctionID, userID, reference string) error {
	if reference == "" || s.refs == nil {
		return nil
	}
	key := "auctions:deposit-ref:" + auctionID + ":" + reference
	ok, err := s.refs.SetNX(ctx, key, []byte(userID), depositRefTTL)
	if err != nil {
		s.log.WithError(err).WithField("auction_id", auctionID).Warn("deposit reference reservation failed")
		return nil
	}
	if ok {
		return nil
	}
	owner, err := s.refs.Get(ctx, key)
	if err == nil && string(owner) == userID {
		return nil
	}
	return fmt.Errorf("deposit reference %q already used: %w", reference, storage.ErrConflict)
}

// PlaceBid records a bid that beats the current price. Bids on one auction
// are serialized and every auction write is version checked.
func (s *Service) PlaceBid(ctx context.Context, auctionID, userID string, amount float64) (auction.Bid, auction.Auction, error) {
	bid, a, err := s.placeBid(ctx, auctionID, userID, amount)
	metrics.RecordBid(bidOutcome(err))
	return bid, a, err
}

func (s *Service) placeBid(ctx context.Context, auctionID, userID string, amount float64) (auction.Bid, auction.Auction, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return auction.Bid{}, auction.Auction{}, service.Invalid("amount must be positive")
	}

	unlock := s.locks.Lock(auctionID)
	defer unlock()

	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return auction.Bid{}, auction.Auction{}, err
	}
	now := s.now().UTC()
	if !a.AcceptingBids(now) {
		return auction.Bid{}, auction.Auction{}, fmt.Errorf("auction %s is %s: %w", a.ID, a.Status, auction.ErrAuctionNotActive)
	}
	if a.SellerID == userID {
		return auction.Bid{}, auction.Auction{}, fmt.Errorf("%w: the seller cannot bid on their own auction", service.ErrForbidden)
	}

	deposit, err := s.store.GetDepositByUser(ctx, auctionID, userID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && deposit.Status != auction.DepositPaid) {
		return auction.Bid{}, auction.Auction{}, fmt.Errorf("user %s on auction %s: %w", userID, auctionID, auction.ErrDepositRequired)
	}
	if err != nil {
		return auction.Bid{}, auction.Auction{}, err
	}

	amount = roundCents(amount)
	if minimum := a.MinimumNextBid(); amount < minimum {
		return auction.Bid{}, auction.Auction{}, fmt.Errorf("minimum next bid is %.2f: %w", minimum, auction.ErrBidTooLow)
	}

	bid := auction.Bid{
		ID:        uuid.NewString(),
		AuctionID: a.ID,
		UserID:    userID,
		Amount:    amount,
		Winning:   true,
		CreatedAt: now,
	}

	a.CurrentPrice = amount
	a.WinningBidID = bid.ID
	a.WinnerID = userID
	a.BidCount++
	if a.EndTime.Sub(now) <= SnipeWindow {
		a.EndTime = a.EndTime.Add(SnipeExtension)
	}

	saved, bid, err := s.store.RecordBid(ctx, a, bid)
	if err != nil {
		return auction.Bid{}, auction.Auction{}, err
	}

	s.log.WithField("auction_id", a.ID).
		WithField("bid_id", bid.ID).
		WithField("amount", amount).
		Info("bid placed")
	s.publish(auction.EventBidPlaced, saved, &bid)
	return bid, saved, nil
}

func bidOutcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, auction.ErrBidTooLow):
		return "too_low"
	case errors.Is(err, auction.ErrDepositRequired):
		return "deposit_required"
	case errors.Is(err, auction.ErrAuctionNotActive):
		return "not_active"
	case errors.Is(err, storage.ErrConflict):
		return "conflict"
	default:
		return "rejected"
	}
}

// Cancel withdraws an auction that has no bids and refunds its deposits.
func (s *Service) Cancel(ctx context.Context, actor service.Actor, id string) (auction.Auction, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return auction.Auction{}, err
	}
	if !actor.CanManage(a.SellerID) {
		return auction.Auction{}, fmt.Errorf("%w: only the seller can cancel auction %s", service.ErrForbidden, id)
	}
	if !a.Status.Open() {
		return auction.Auction{}, fmt.Errorf("auction %s is %s: %w", id, a.Status, auction.ErrInvalidState)
	}
	if a.BidCount > 0 {
		return auction.Auction{}, fmt.Errorf("auction %s has %d bids: %w", id, a.BidCount, auction.ErrInvalidState)
	}

	a.Status = auction.StatusCancelled
	saved, err := s.store.UpdateAuction(ctx, a)
	if err != nil {
		return auction.Auction{}, err
	}
	s.settleDeposits(ctx, saved.ID, "", auction.DepositRefunded)
	s.log.WithField("auction_id", id).Info("auction cancelled")
	s.publish(auction.EventCancelled, saved, nil)
	return saved, nil
}

// Close ends an active auction whose end time has passed.
func (s *Service) Close(ctx context.Context, id string, now time.Time) (auction.Auction, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return auction.Auction{}, err
	}
	if a.Status != auction.StatusActive {
		return auction.Auction{}, fmt.Errorf("auction %s is %s: %w", id, a.Status, auction.ErrInvalidState)
	}
	if now.Before(a.EndTime) {
		return auction.Auction{}, fmt.Errorf("auction %s ends at %s: %w", id, a.EndTime.Format(time.RFC3339), auction.ErrInvalidState)
	}

	a.Status = auction.StatusEnded
	if a.WinnerID != "" {
		deadline := a.EndTime.Add(a.PaymentWindow)
		a.PaymentStatus = auction.PaymentPending
		a.PaymentDeadline = &deadline
	} else {
		a.PaymentStatus = auction.PaymentNone
	}
	saved, err := s.store.UpdateAuction(ctx, a)
	if err != nil {
		return auction.Auction{}, err
	}

	s.settleDeposits(ctx, saved.ID, saved.WinnerID, auction.DepositRefunded)
	if saved.WinnerID != "" {
		if _, err := s.properties.SetStatus(ctx, saved.PropertyID, property.StatusPending); err != nil {
			s.log.WithError(err).WithField("property_id", saved.PropertyID).Warn("mark property pending failed")
		}
	}

	s.log.WithField("auction_id", id).
		WithField("winner_id", saved.WinnerID).
		WithField("price", saved.CurrentPrice).
		Info("auction ended")
	s.publish(auction.EventEnded, saved, nil)
	return saved, nil
}

// CompletePayment settles the winning bid.
func (s *Service) CompletePayment(ctx context.Context, actor service.Actor, id, reference string) (auction.Auction, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return auction.Auction{}, err
	}
	if !actor.IsAdmin() && actor.UserID != a.WinnerID {
		return auction.Auction{}, fmt.Errorf("%w: only the winner can pay for auction %s", service.ErrForbidden, id)
	}
	if a.Status != auction.StatusEnded || a.PaymentStatus != auction.PaymentPending {
		return auction.Auction{}, fmt.Errorf("auction %s payment is %s: %w", id, a.PaymentStatus, auction.ErrInvalidState)
	}
	if a.PaymentDeadline != nil && !s.now().Before(*a.PaymentDeadline) {
		return auction.Auction{}, fmt.Errorf("payment window for auction %s closed: %w", id, auction.ErrInvalidState)
	}

	a.PaymentStatus = auction.PaymentPaid
	a.PaymentRef = strings.TrimSpace(reference)
	saved, err := s.store.UpdateAuction(ctx, a)
	if err != nil {
		return auction.Auction{}, err
	}
	s.updateDeposit(ctx, saved.ID, saved.WinnerID, auction.DepositApplied)
	if _, err := s.properties.SetStatus(ctx, saved.PropertyID, property.StatusSold); err != nil {
		s.log.WithError(err).WithField("property_id", saved.PropertyID).Warn("mark property sold failed")
	}

	s.log.WithField("auction_id", id).Info("auction payment completed")
	s.publish(auction.EventPaymentCompleted, saved, nil)
	return saved, nil
}

func (s *Service) settleDeposits(ctx context.Context, auctionID, keepUserID string, status auction.DepositStatus) {
	deposits, err := s.store.ListDeposits(ctx, auctionID)
	if err != nil {
		s.log.WithError(err).WithField("auction_id", auctionID).Warn("list deposits failed")
		return
	}
	for _, d := range deposits {
		if d.Status != auction.DepositPaid || d.UserID == keepUserID {
			continue
		}
		d.Status = status
		if _, err := s.store.UpdateDeposit(ctx, d); err != nil {
			s.log.WithError(err).WithField("deposit_id", d.ID).Warn("update deposit failed")
		}
	}
}

func (s *Service) updateDeposit(ctx context.Context, auctionID, userID string, status auction.DepositStatus) {
	d, err := s.store.GetDepositByUser(ctx, auctionID, userID)
	if err != nil {
		s.log.WithError(err).WithField("auction_id", auctionID).Warn("winner deposit missing")
		return
	}
	d.Status = status
	if _, err := s.store.UpdateDeposit(ctx, d); err != nil {
		s.log.WithError(err).WithField("deposit_id", d.ID).Warn("update deposit failed")
	}
}

func (s *Service) publish(kind auction.EventType, a auction.Auction, bid *auction.Bid) {
	metrics.RecordAuctionTransition(string(kind))
	s.hub.Publish(auction.Event{
		Type:      kind,
		AuctionID: a.ID,
		Auction:   a,
		Bid:       bid,
		At:        s.now().UTC(),
	})
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
