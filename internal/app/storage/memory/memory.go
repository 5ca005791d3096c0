package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/domain/user"
	"github.com/estatehub/marketplace/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	users       map[string]user.User
	usersByMail map[string]string
	properties  map[string]property.Property
	favorites   map[string]map[string]property.Favorite
	auctions    map[string]auction.Auction
	bids        map[string]auction.Bid
	bidsByAuc   map[string][]string
	deposits    map[string]auction.Deposit
	depositsBy  map[string]string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PropertyStore = (*Store)(nil)
var _ storage.FavoriteStore = (*Store)(nil)
var _ storage.AuctionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		users:       make(map[string]user.User),
		usersByMail: make(map[string]string),
		properties:  make(map[string]property.Property),
		favorites:   make(map[string]map[string]property.Favorite),
		auctions:    make(map[string]auction.Auction),
		bids:        make(map[string]auction.Bid),
		bidsByAuc:   make(map[string][]string),
		deposits:    make(map[string]auction.Deposit),
		depositsBy:  make(map[string]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, exists := s.usersByMail[email]; exists {
		return user.User{}, fmt.Errorf("email %s: %w", email, storage.ErrConflict)
	}
	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByMail[email] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, notFound("user", u.ID)
	}
	if !strings.EqualFold(original.Email, u.Email) {
		email := strings.ToLower(u.Email)
		if _, taken := s.usersByMail[email]; taken {
			return user.User{}, fmt.Errorf("email %s: %w", email, storage.ErrConflict)
		}
		delete(s.usersByMail, strings.ToLower(original.Email))
		s.usersByMail[email] = u.ID
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, notFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByMail[strings.ToLower(email)]
	if !ok {
		return user.User{}, notFound("user", email)
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// PropertyStore implementation ------------------------------------------------

func (s *Store) CreateProperty(_ context.Context, p property.Property) (property.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.properties[p.ID]; exists {
		return property.Property{}, fmt.Errorf("property %s: %w", p.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.properties[p.ID] = cloneProperty(p)
	return cloneProperty(p), nil
}

func (s *Store) UpdateProperty(_ context.Context, p property.Property) (property.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.properties[p.ID]
	if !ok {
		return property.Property{}, notFound("property", p.ID)
	}

	p.CreatedAt = original.CreatedAt
	p.Views = original.Views
	p.UpdatedAt = time.Now().UTC()

	s.properties[p.ID] = cloneProperty(p)
	return cloneProperty(p), nil
}

func (s *Store) GetProperty(_ context.Context, id string) (property.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.properties[id]
	if !ok {
		return property.Property{}, notFound("property", id)
	}
	return cloneProperty(p), nil
}

func (s *Store) GetPropertyBySource(_ context.Context, source property.Source, ref string) (property.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.properties {
		if p.Source == source && p.SourceRef == ref {
			return cloneProperty(p), nil
		}
	}
	return property.Property{}, notFound("property", string(source)+":"+ref)
}

func (s *Store) DeleteProperty(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.properties[id]; !ok {
		return notFound("property", id)
	}
	for _, a := range s.auctions {
		if a.PropertyID == id {
			return fmt.Errorf("property %s is referenced by auction %s: %w", id, a.ID, storage.ErrConflict)
		}
	}
	delete(s.properties, id)
	for _, favs := range s.favorites {
		delete(favs, id)
	}
	return nil
}

func (s *Store) SearchProperties(_ context.Context, filter property.Filter) ([]property.Property, int, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	matched := make([]property.Property, 0)
	for _, p := range s.properties {
		if filter.Matches(p) {
			matched = append(matched, cloneProperty(p))
		}
	}
	s.mu.RUnlock()

	property.SortProperties(matched, filter.Sort)

	total := len(matched)
	start := filter.Offset()
	if start >= total {
		return []property.Property{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.properties[id]
	if !ok {
		return notFound("property", id)
	}
	p.Views++
	s.properties[id] = p
	return nil
}

// FavoriteStore implementation ------------------------------------------------

func (s *Store) AddFavorite(_ context.Context, fav property.Favorite) (property.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs, ok := s.favorites[fav.UserID]
	if !ok {
		favs = make(map[string]property.Favorite)
		s.favorites[fav.UserID] = favs
	}
	if existing, ok := favs[fav.PropertyID]; ok {
		return existing, nil
	}
	fav.CreatedAt = time.Now().UTC()
	favs[fav.PropertyID] = fav
	return fav, nil
}

func (s *Store) RemoveFavorite(_ context.Context, userID, propertyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs := s.favorites[userID]
	if _, ok := favs[propertyID]; !ok {
		return notFound("favorite", propertyID)
	}
	delete(favs, propertyID)
	return nil
}

func (s *Store) ListFavorites(_ context.Context, userID string) ([]property.Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]property.Favorite, 0, len(s.favorites[userID]))
	for _, fav := range s.favorites[userID] {
		result = append(result, fav)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].PropertyID < result[j].PropertyID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// AuctionStore implementation -------------------------------------------------

func (s *Store) CreateAuction(_ context.Context, a auction.Auction) (auction.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = s.nextIDLocked()
	} else if _, exists := s.auctions[a.ID]; exists {
		return auction.Auction{}, fmt.Errorf("auction %s: %w", a.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 1

	s.auctions[a.ID] = cloneAuction(a)
	return cloneAuction(a), nil
}

func (s *Store) UpdateAuction(_ context.Context, a auction.Auction) (auction.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.auctions[a.ID]
	if !ok {
		return auction.Auction{}, notFound("auction", a.ID)
	}
	if original.Version != a.Version {
		return auction.Auction{}, fmt.Errorf("auction %s version %d (stored %d): %w", a.ID, a.Version, original.Version, storage.ErrConflict)
	}

	a.CreatedAt = original.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	a.Version = original.Version + 1

	s.auctions[a.ID] = cloneAuction(a)
	return cloneAuction(a), nil
}

func (s *Store) GetAuction(_ context.Context, id string) (auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return auction.Auction{}, notFound("auction", id)
	}
	return cloneAuction(a), nil
}

func (s *Store) ListAuctions(_ context.Context, filter auction.Filter) ([]auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]auction.Auction, 0)
	for _, a := range s.auctions {
		if filter.Matches(a) {
			result = append(result, cloneAuction(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EndTime.Equal(result[j].EndTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].EndTime.Before(result[j].EndTime)
	})
	return result, nil
}

func (s *Store) RecordBid(_ context.Context, a auction.Auction, b auction.Bid) (auction.Auction, auction.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.auctions[a.ID]
	if !ok {
		return auction.Auction{}, auction.Bid{}, notFound("auction", a.ID)
	}
	if original.Version != a.Version {
		return auction.Auction{}, auction.Bid{}, fmt.Errorf("auction %s version %d (stored %d): %w", a.ID, a.Version, original.Version, storage.ErrConflict)
	}
	if b.ID == "" {
		b.ID = s.nextIDLocked()
	} else if _, exists := s.bids[b.ID]; exists {
		return auction.Auction{}, auction.Bid{}, fmt.Errorf("bid %s: %w", b.ID, storage.ErrConflict)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.AuctionID = a.ID

	for _, id := range s.bidsByAuc[a.ID] {
		if prev := s.bids[id]; prev.Winning {
			prev.Winning = false
			s.bids[id] = prev
		}
	}
	s.bids[b.ID] = b
	s.bidsByAuc[a.ID] = append(s.bidsByAuc[a.ID], b.ID)

	a.CreatedAt = original.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	a.Version = original.Version + 1
	s.auctions[a.ID] = cloneAuction(a)
	return cloneAuction(a), b, nil
}

// ListBids returns bids newest first.
func (s *Store) ListBids(_ context.Context, auctionID string) ([]auction.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bidsByAuc[auctionID]
	result := make([]auction.Bid, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		result = append(result, s.bids[ids[i]])
	}
	return result, nil
}

func depositKey(auctionID, userID string) string {
	return auctionID + "/" + userID
}

func (s *Store) CreateDeposit(_ context.Context, d auction.Deposit) (auction.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := depositKey(d.AuctionID, d.UserID)
	if _, exists := s.depositsBy[key]; exists {
		return auction.Deposit{}, fmt.Errorf("deposit for %s: %w", key, storage.ErrConflict)
	}
	if d.ID == "" {
		d.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	s.deposits[d.ID] = d
	s.depositsBy[key] = d.ID
	return d, nil
}

func (s *Store) UpdateDeposit(_ context.Context, d auction.Deposit) (auction.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.deposits[d.ID]
	if !ok {
		return auction.Deposit{}, notFound("deposit", d.ID)
	}
	d.AuctionID = original.AuctionID
	d.UserID = original.UserID
	d.CreatedAt = original.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	s.deposits[d.ID] = d
	return d, nil
}

func (s *Store) GetDepositByUser(_ context.Context, auctionID, userID string) (auction.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.depositsBy[depositKey(auctionID, userID)]
	if !ok {
		return auction.Deposit{}, notFound("deposit", depositKey(auctionID, userID))
	}
	return s.deposits[id], nil
}

func (s *Store) ListDeposits(_ context.Context, auctionID string) ([]auction.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]auction.Deposit, 0)
	for _, d := range s.deposits {
		if d.AuctionID == auctionID {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Helpers ---------------------------------------------------------------------

func cloneProperty(p property.Property) property.Property {
	p.Features = append([]string(nil), p.Features...)
	p.Images = append([]string(nil), p.Images...)
	return p
}

func cloneAuction(a auction.Auction) auction.Auction {
	if a.PaymentDeadline != nil {
		deadline := *a.PaymentDeadline
		a.PaymentDeadline = &deadline
	}
	return a
}
