package auctions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/domain/user"
	"github.com/estatehub/marketplace/internal/app/services/properties"
	"github.com/estatehub/marketplace/internal/app/storage"
	"github.com/estatehub/marketplace/internal/app/storage/memory"
	"github.com/estatehub/marketplace/internal/cache"
	"github.com/estatehub/marketplace/pkg/logger"
)

type fixture struct {
	svc      *Service
	props    *properties.Service
	store    *memory.Store
	clock    *fakeClock
	seller   service.Actor
	property property.Property
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	log := logger.NewDiscard()
	props := properties.New(store, store, store, nil, properties.Options{}, log)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := New(store, props, cache.NewMemory(), NewHub(0), Options{MinIncrement: 1000, DepositPercent: 5}, log)
	svc.now = clock.Now

	seller := service.Actor{UserID: "seller", Role: user.RoleAgent}
	p, err := props.Create(context.Background(), seller.UserID, property.Property{
		Title:       "Townhouse",
		Type:        property.TypeHouse,
		ListingType: property.ListingAuction,
		Price:       250000,
		Location:    property.Location{City: "Lisbon"},
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	return &fixture{svc: svc, props: props, store: store, clock: clock, seller: seller, property: p}
}

func (f *fixture) createActive(t *testing.T, duration time.Duration) auction.Auction {
	t.Helper()
	a, err := f.svc.Create(context.Background(), f.seller, CreateInput{
		PropertyID:    f.property.ID,
		StartingPrice: 200000,
		StartTime:     f.clock.Now(),
		EndTime:       f.clock.Now().Add(duration),
	})
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	return a
}

func (f *fixture) deposit(t *testing.T, auctionID, userID string) {
	t.Helper()
	if _, err := f.svc.PlaceDeposit(context.Background(), auctionID, userID, 10000, "ref-"+userID); err != nil {
		t.Fatalf("deposit %s: %v", userID, err)
	}
}

func TestCreateDefaults(t *testing.T) {
	f := newFixture(t)
	a := f.createActive(t, time.Hour)
	if a.Status != auction.StatusActive || a.CurrentPrice != 200000 {
		t.Fatalf("unexpected auction %#v", a)
	}
	if a.MinIncrement != 1000 || a.DepositAmount != 10000 || a.PaymentWindow != 72*time.Hour {
		t.Fatalf("defaults not applied: %#v", a)
	}
	if a.Title != "Townhouse" || a.SellerID != "seller" {
		t.Fatalf("unexpected identity fields %#v", a)
	}

	_, err := f.svc.Create(context.Background(), f.seller, CreateInput{
		PropertyID: f.property.ID, StartingPrice: 1, EndTime: f.clock.Now().Add(time.Hour),
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict for second open auction, got %v", err)
	}
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := service.Actor{UserID: "stranger", Role: user.RoleUser}
	now := f.clock.Now()

	cases := []struct {
		name  string
		actor service.Actor
		in    CreateInput
		want  error
	}{
		{"not owner", stranger, CreateInput{PropertyID: f.property.ID, StartingPrice: 1, EndTime: now.Add(time.Hour)}, service.ErrForbidden},
		{"no price", f.seller, CreateInput{PropertyID: f.property.ID, EndTime: now.Add(time.Hour)}, service.ErrValidation},
		{"end before start", f.seller, CreateInput{PropertyID: f.property.ID, StartingPrice: 1, StartTime: now.Add(time.Hour), EndTime: now}, service.ErrValidation},
		{"missing property", f.seller, CreateInput{PropertyID: "nope", StartingPrice: 1, EndTime: now.Add(time.Hour)}, storage.ErrNotFound},
	}
	for _, tc := range cases {
		if _, err := f.svc.Create(ctx, tc.actor, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	sale, err := f.props.Create(ctx, f.seller.UserID, property.Property{
		Title: "Flat", Type: property.TypeApartment, ListingType: property.ListingSale, Price: 1, Location: property.Location{City: "Porto"},
	})
	if err != nil {
		t.Fatalf("create sale property: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.seller, CreateInput{PropertyID: sale.ID, StartingPrice: 1, EndTime: now.Add(time.Hour)}); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected validation error for sale listing, got %v", err)
	}
}

func TestDepositRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createActive(t, time.Hour)

	if _, err := f.svc.PlaceDeposit(ctx, a.ID, f.seller.UserID, 10000, "x"); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected seller deposit forbidden, got %v", err)
	}
	if _, err := f.svc.PlaceDeposit(ctx, a.ID, "bidder", 9999.99, "x"); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected too small deposit rejected, got %v", err)
	}

	first, err := f.svc.PlaceDeposit(ctx, a.ID, "bidder", 10000, "pay-1")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	again, err := f.svc.PlaceDeposit(ctx, a.ID, "bidder", 10000, "pay-1")
	if err != nil || again.ID != first.ID {
		t.Fatalf("expected idempotent deposit, got %#v, %v", again, err)
	}
	if _, err := f.svc.PlaceDeposit(ctx, a.ID, "bidder", 10000, "pay-2"); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict for second reference, got %v", err)
	}
	if _, err := f.svc.PlaceDeposit(ctx, a.ID, "other", 10000, "pay-1"); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict for reused reference, got %v", err)
	}
}

func TestPlaceBidRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createActive(t, time.Hour)

	if _, _, err := f.svc.PlaceBid(ctx, a.ID, "alice", 200000); !errors.Is(err, auction.ErrDepositRequired) {
		t.Fatalf("expected deposit required, got %v", err)
	}
	if _, _, err := f.svc.PlaceBid(ctx, a.ID, f.seller.UserID, 300000); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected seller bid forbidden, got %v", err)
	}

	f.deposit(t, a.ID, "alice")
	f.deposit(t, a.ID, "bob")

	if _, _, err := f.svc.PlaceBid(ctx, a.ID, "alice", 199999); !errors.Is(err, auction.ErrBidTooLow) {
		t.Fatalf("expected bid below starting price rejected, got %v", err)
	}
	first, updated, err := f.svc.PlaceBid(ctx, a.ID, "alice", 200000)
	if err != nil {
		t.Fatalf("opening bid at starting price: %v", err)
	}
	if !first.Winning || updated.CurrentPrice != 200000 || updated.BidCount != 1 || updated.WinnerID != "alice" {
		t.Fatalf("unexpected state after first bid: %#v", updated)
	}

	if _, _, err := f.svc.PlaceBid(ctx, a.ID, "bob", 200999); !errors.Is(err, auction.ErrBidTooLow) {
		t.Fatalf("expected bid under increment rejected, got %v", err)
	}
	second, updated, err := f.svc.PlaceBid(ctx, a.ID, "bob", 201000)
	if err != nil {
		t.Fatalf("second bid: %v", err)
	}
	if updated.WinningBidID != second.ID || updated.WinnerID != "bob" || updated.Version != a.Version+2 {
		t.Fatalf("unexpected state after second bid: %#v", updated)
	}

	bids, err := f.svc.ListBids(ctx, a.ID)
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(bids) != 2 || bids[0].ID != second.ID {
		t.Fatalf("expected newest bid first, got %#v", bids)
	}
	winners := 0
	for _, b := range bids {
		if b.Winning {
			winners++
		}
	}
	if winners != 1 || !bids[0].Winning {
		t.Fatalf("expected exactly the newest bid winning, got %#v", bids)
	}

	f.clock.Advance(2 * time.Hour)
	if _, _, err := f.svc.PlaceBid(ctx, a.ID, "alice", 500000); !errors.Is(err, auction.ErrAuctionNotActive) {
		t.Fatalf("expected ended auction to reject bids, got %v", err)
	}
}

// failingBidStore rejects every bid write.
type failingBidStore struct {
	*memory.Store
}

func (failingBidStore) RecordBid(context.Context, auction.Auction, auction.Bid) (auction.Auction, auction.Bid, error) {
	return auction.Auction{}, auction.Bid{}, errors.New("db down")
}

func TestFailedBidWriteLeavesAuctionUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createActive(t, time.Hour)
	f.deposit(t, a.ID, "alice")

	broken := New(failingBidStore{f.store}, f.props, cache.NewMemory(), NewHub(0), Options{MinIncrement: 1000}, logger.NewDiscard())
	broken.now = f.clock.Now
	if _, _, err := broken.PlaceBid(ctx, a.ID, "alice", 300000); err == nil {
		t.Fatal("expected bid write failure")
	}

	stored, err := f.svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if stored.CurrentPrice != 200000 || stored.BidCount != 0 || stored.WinnerID != "" || stored.WinningBidID != "" {
		t.Fatalf("auction changed by failed bid: %#v", stored)
	}
	bids, err := f.svc.ListBids(ctx, a.ID)
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(bids) != 0 {
		t.Fatalf("expected no stored bids, got %d", len(bids))
	}

	if _, _, err := f.svc.PlaceBid(ctx, a.ID, "alice", 300000); err != nil {
		t.Fatalf("bid after recovery: %v", err)
	}
}

func TestAntiSnipingExtendsEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createActive(t, 10*time.Minute)
	f.deposit(t, a.ID, "alice")

	f.clock.Advance(9 * time.Minute)
	_, updated, err := f.svc.PlaceBid(ctx, a.ID, "alice", 200000)
	if err != nil {
		t.Fatalf("late bid: %v", err)
	}
	if want := a.EndTime.Add(SnipeExtension); !updated.EndTime.Equal(want) {
		t.Fatalf("expected end %s, got %s", want, updated.EndTime)
	}
}

func TestConcurrentBidsStayMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createActive(t, time.Hour)

	bidders := []string{"b1", "b2", "b3", "b4", "b5", "b6", "b7", "b8"}
	for _, b := range bidders {
		f.deposit(t, a.ID, b)
	}

	var wg sync.WaitGroup
	for round := 0; round < 5; round++ {
		for i, b := range bidders {
			wg.Add(1)
			go func(bidder string, amount float64) {
				defer wg.Done()
				_, _, _ = f.svc.PlaceBid(ctx, a.ID, bidder, amount)
			}(b, 200000+float64(round*len(bidders)+i)*1000)
		}
	}
	wg.Wait()

	final, err := f.svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	bids, err := f.svc.ListBids(ctx, a.ID)
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(bids) != final.BidCount {
		t.Fatalf("bid count %d does not match stored bids %d", final.BidCount, len(bids))
	}
	winners := 0
	for i, b := range bids {
		if b.Winning {
			winners++
		}
		if i > 0 && b.Amount >= bids[i-1].Amount {
			t.Fatalf("bid amounts not strictly increasing: %v then %v", b.Amount, bids[i-1].Amount)
		}
	}
	if winners != 1 || bids[0].ID != final.WinningBidID || final.CurrentPrice != bids[0].Amount {
		t.Fatalf("inconsistent winner: auction %#v, top bid %#v", final, bids[0])
	}
	if f.svc.locks.size() != 0 {
		t.Fatalf("expected lock table drained, got %d", f.svc.locks.size())
	}
}

func TestCloseAndPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createActive(t, time.Hour)
	f.deposit(t, a.ID, "alice")
	f.deposit(t, a.ID, "bob")
	if _, _, err := f.svc.PlaceBid(ctx, a.ID, "alice", 200000); err != nil {
		t.Fatalf("bid: %v", err)
	}

	if _, err := f.svc.Close(ctx, a.ID, f.clock.Now()); !errors.Is(err, auction.ErrInvalidState) {
		t.Fatalf("expected early close rejected, got %v", err)
	}

	f.clock.Advance(time.Hour)
	closed, err := f.svc.Close(ctx, a.ID, f.clock.Now())
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != auction.StatusEnded || closed.PaymentStatus != auction.PaymentPending {
		t.Fatalf("unexpected closed auction %#v", closed)
	}
	if !closed.PaymentDeadline.Equal(closed.EndTime.Add(72 * time.Hour)) {
		t.Fatalf("unexpected deadline %v", closed.PaymentDeadline)
	}
	assertDeposit(t, f, a.ID, "alice", auction.DepositPaid)
	assertDeposit(t, f, a.ID, "bob", auction.DepositRefunded)
	assertPropertyStatus(t, f, property.StatusPending)

	if _, err := f.svc.CompletePayment(ctx, service.Actor{UserID: "bob"}, a.ID, "wire-1"); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected non-winner payment forbidden, got %v", err)
	}
	paid, err := f.svc.CompletePayment(ctx, service.Actor{UserID: "alice"}, a.ID, "wire-1")
	if err != nil {
		t.Fatalf("complete payment: %v", err)
	}
	if paid.PaymentStatus != auction.PaymentPaid || paid.PaymentRef != "wire-1" {
		t.Fatalf("unexpected paid auction %#v", paid)
	}
	assertDeposit(t, f, a.ID, "alice", auction.DepositApplied)
	assertPropertyStatus(t, f, property.StatusSold)
}

func TestCloseWithoutBidsRefundsAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createActive(t, time.Hour)
	f.deposit(t, a.ID, "alice")

	f.clock.Advance(time.Hour)
	closed, err := f.svc.Close(ctx, a.ID, f.clock.Now())
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.PaymentStatus != auction.PaymentNone || closed.PaymentDeadline != nil {
		t.Fatalf("unexpected payment state %#v", closed)
	}
	assertDeposit(t, f, a.ID, "alice", auction.DepositRefunded)
	assertPropertyStatus(t, f, property.StatusAvailable)
}

func TestSweepLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := f.clock.Now().Add(time.Minute)
	a, err := f.svc.Create(ctx, f.seller, CreateInput{
		PropertyID:    f.property.ID,
		StartingPrice: 200000,
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		PaymentWindow: time.Hour,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != auction.StatusUpcoming {
		t.Fatalf("expected upcoming, got %s", a.Status)
	}
	f.deposit(t, a.ID, "alice")

	events, cancel := f.svc.Hub().Subscribe(a.ID)
	defer cancel()

	f.clock.Advance(time.Minute)
	res, err := f.svc.Sweep(ctx, f.clock.Now())
	if err != nil || res.Activated != 1 {
		t.Fatalf("expected activation, got %#v, %v", res, err)
	}
	if ev := <-events; ev.Type != auction.EventStarted {
		t.Fatalf("expected started event, got %s", ev.Type)
	}

	if _, _, err := f.svc.PlaceBid(ctx, a.ID, "alice", 200000); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if ev := <-events; ev.Type != auction.EventBidPlaced || ev.Bid == nil {
		t.Fatalf("expected bid event, got %#v", ev)
	}

	f.clock.Advance(time.Hour)
	res, err = f.svc.Sweep(ctx, f.clock.Now())
	if err != nil || res.Closed != 1 {
		t.Fatalf("expected close, got %#v, %v", res, err)
	}
	if ev := <-events; ev.Type != auction.EventEnded {
		t.Fatalf("expected ended event, got %s", ev.Type)
	}

	f.clock.Advance(time.Hour)
	res, err = f.svc.Sweep(ctx, f.clock.Now())
	if err != nil || res.Defaulted != 1 {
		t.Fatalf("expected default, got %#v, %v", res, err)
	}
	if ev := <-events; ev.Type != auction.EventPaymentDefaulted || ev.Auction.PaymentStatus != auction.PaymentDefaulted {
		t.Fatalf("expected defaulted event, got %#v", ev)
	}
	assertDeposit(t, f, a.ID, "alice", auction.DepositForfeited)
	assertPropertyStatus(t, f, property.StatusAvailable)

	if _, err := f.svc.CompletePayment(ctx, service.Actor{UserID: "alice"}, a.ID, "late"); !errors.Is(err, auction.ErrInvalidState) {
		t.Fatalf("expected late payment rejected, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createActive(t, time.Hour)
	f.deposit(t, a.ID, "alice")

	if _, err := f.svc.Cancel(ctx, service.Actor{UserID: "alice"}, a.ID); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	cancelled, err := f.svc.Cancel(ctx, f.seller, a.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != auction.StatusCancelled {
		t.Fatalf("unexpected status %s", cancelled.Status)
	}
	assertDeposit(t, f, a.ID, "alice", auction.DepositRefunded)

	other := f.createActive(t, time.Hour)
	f.deposit(t, other.ID, "alice")
	if _, _, err := f.svc.PlaceBid(ctx, other.ID, "alice", 200000); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, f.seller, other.ID); !errors.Is(err, auction.ErrInvalidState) {
		t.Fatalf("expected auction with bids not cancellable, got %v", err)
	}

	if _, err := f.svc.ListDeposits(ctx, service.Actor{UserID: "alice"}, other.ID); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected deposits hidden from bidders, got %v", err)
	}
	deposits, err := f.svc.ListDeposits(ctx, f.seller, other.ID)
	if err != nil || len(deposits) != 1 {
		t.Fatalf("expected seller to see deposits, got %v, %v", deposits, err)
	}
}

func assertDeposit(t *testing.T, f *fixture, auctionID, userID string, want auction.DepositStatus) {
	t.Helper()
	d, err := f.store.GetDepositByUser(context.Background(), auctionID, userID)
	if err != nil {
		t.Fatalf("get deposit %s: %v", userID, err)
	}
	if d.Status != want {
		t.Fatalf("deposit of %s: want %s, got %s", userID, want, d.Status)
	}
}

func assertPropertyStatus(t *testing.T, f *fixture, want property.Status) {
	t.Helper()
	p, err := f.props.Lookup(context.Background(), f.property.ID)
	if err != nil {
		t.Fatalf("lookup property: %v", err)
	}
	if p.Status != want {
		t.Fatalf("property status: want %s, got %s", want, p.Status)
	}
}
