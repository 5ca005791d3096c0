package storage

import (
	"context"
	"errors"

	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on duplicate keys or stale versions.
	ErrConflict = errors.New("conflict")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// PropertyStore persists listings.
type PropertyStore interface {
	CreateProperty(ctx context.Context, p property.Property) (property.Property, error)
	UpdateProperty(ctx context.Context, p property.Property) (property.Property, error)
	GetProperty(ctx context.Context, id string) (property.Property, error)
	GetPropertyBySource(ctx context.Context, source property.Source, ref string) (property.Property, error)
	DeleteProperty(ctx context.Context, id string) error
	// SearchProperties applies filter, sort and paging. The total ignores paging.
	SearchProperties(ctx context.Context, filter property.Filter) ([]property.Property, int, error)
	IncrementViews(ctx context.Context, id string) error
}

// FavoriteStore persists saved properties per user.
type FavoriteStore interface {
	AddFavorite(ctx context.Context, fav property.Favorite) (property.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, propertyID string) error
	ListFavorites(ctx context.Context, userID string) ([]property.Favorite, error)
}

// AuctionStore persists auctions together with their bids and deposits.
type AuctionStore interface {
	CreateAuction(ctx context.Context, a auction.Auction) (auction.Auction, error)
	// UpdateAuction saves a only when a.Version matches the stored version,
	// returning ErrConflict otherwise. The returned auction carries the bumped version.
	UpdateAuction(ctx context.Context, a auction.Auction) (auction.Auction, error)
	GetAuction(ctx context.Context, id string) (auction.Auction, error)
	ListAuctions(ctx context.Context, filter auction.Filter) ([]auction.Auction, error)

	// RecordBid atomically saves a (under the same version check as
	// UpdateAuction), clears Winning on the auction's earlier bids and stores
	// b. Either every write lands or none does.
	RecordBid(ctx context.Context, a auction.Auction, b auction.Bid) (auction.Auction, auction.Bid, error)
	ListBids(ctx context.Context, auctionID string) ([]auction.Bid, error)

	CreateDeposit(ctx context.Context, d auction.Deposit) (auction.Deposit, error)
	UpdateDeposit(ctx context.Context, d auction.Deposit) (auction.Deposit, error)
	GetDepositByUser(ctx context.Context, auctionID, userID string) (auction.Deposit, error)
	ListDeposits(ctx context.Context, auctionID string) ([]auction.Deposit, error)
}
