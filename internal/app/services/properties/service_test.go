package properties

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/domain/user"
	"github.com/estatehub/marketplace/internal/app/storage"
	"github.com/estatehub/marketplace/internal/app/storage/memory"
	"github.com/estatehub/marketplace/internal/cache"
	"github.com/estatehub/marketplace/pkg/logger"
)

func newTestService(t *testing.T, c cache.Cache) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store, store, c, Options{SearchTTL: time.Minute}, logger.NewDiscard()), store
}

func listing(title, city string, typ property.Type, price float64, beds int) property.Property {
	return property.Property{
		Title:       title,
		Type:        typ,
		ListingType: property.ListingSale,
		Price:       price,
		Location:    property.Location{City: city, Address: title + " street"},
		Bedrooms:    beds,
		AreaSqm:     100,
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-1", listing("Loft", "Lisbon", property.TypeApartment, 300000, 2))
	require.NoError(t, err)
	require.Equal(t, "USD", created.Currency)
	require.Equal(t, property.StatusAvailable, created.Status)
	require.Equal(t, property.SourceManual, created.Source)
	require.Equal(t, "owner-1", created.OwnerID)

	land := listing("Plot", "Evora", property.TypeLand, 0, 0)
	land.ListingType = property.ListingAuction
	_, err = svc.Create(ctx, "owner-1", land)
	require.NoError(t, err, "land at auction may start without a price")

	bad := []property.Property{
		listing("", "Lisbon", property.TypeHouse, 1, 0),
		listing("No price", "Lisbon", property.TypeHouse, 0, 0),
		listing("No city", "", property.TypeHouse, 10, 0),
		listing("Bad type", "Lisbon", "castle", 10, 0),
		listing("Negative rooms", "Lisbon", property.TypeHouse, 10, -1),
	}
	for _, p := range bad {
		_, err := svc.Create(ctx, "owner-1", p)
		require.ErrorIs(t, err, service.ErrValidation, "title %q", p.Title)
	}
}

func TestUpdateAndDeletePermissions(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	owner := service.Actor{UserID: "owner-1", Role: user.RoleAgent}
	stranger := service.Actor{UserID: "other", Role: user.RoleUser}
	admin := service.Actor{UserID: "root", Role: user.RoleAdmin}

	p, err := svc.Create(ctx, owner.UserID, listing("House", "Porto", property.TypeHouse, 200000, 3))
	require.NoError(t, err)

	price := 190000.0
	_, err = svc.Update(ctx, stranger, p.ID, Patch{Price: &price})
	require.ErrorIs(t, err, service.ErrForbidden)

	featured := true
	_, err = svc.Update(ctx, owner, p.ID, Patch{Featured: &featured})
	require.ErrorIs(t, err, service.ErrForbidden)

	updated, err := svc.Update(ctx, owner, p.ID, Patch{Price: &price})
	require.NoError(t, err)
	require.Equal(t, price, updated.Price)

	updated, err = svc.Update(ctx, admin, p.ID, Patch{Featured: &featured})
	require.NoError(t, err)
	require.True(t, updated.Featured)

	_, err = store.CreateAuction(ctx, auction.Auction{PropertyID: p.ID, SellerID: owner.UserID, Status: auction.StatusUpcoming})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, owner, p.ID), storage.ErrConflict)

	sold, err := svc.Create(ctx, owner.UserID, listing("Cottage", "Porto", property.TypeHouse, 150000, 2))
	require.NoError(t, err)
	_, err = store.CreateAuction(ctx, auction.Auction{PropertyID: sold.ID, SellerID: owner.UserID, Status: auction.StatusEnded})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, admin, sold.ID), storage.ErrConflict, "ended auctions keep the listing")

	other, err := svc.Create(ctx, owner.UserID, listing("Flat", "Porto", property.TypeApartment, 90000, 1))
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, stranger, other.ID), service.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, owner, other.ID))
	_, err = svc.Lookup(ctx, other.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetCountsViews(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, "o", listing("Villa", "Faro", property.TypeVilla, 900000, 5))
	require.NoError(t, err)

	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, got.Views)

	_, err = svc.Get(ctx, "missing")
	require.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSearchCachesUntilWrite(t *testing.T) {
	c := cache.NewMemory()
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	for i, city := range []string{"Lisbon", "Lisbon", "Porto"} {
		_, err := svc.Create(ctx, "o", listing("Home", city, property.TypeHouse, float64(100000*(i+1)), 2))
		require.NoError(t, err)
	}

	page, err := svc.Search(ctx, property.Filter{City: "lisbon", Sort: property.SortPriceDesc})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, property.DefaultPageSize, page.PageSize)
	require.Equal(t, 200000.0, page.Items[0].Price)

	// A listing written behind the service's back stays invisible while cached.
	_, err = svc.store.CreateProperty(ctx, listing("Hidden", "Lisbon", property.TypeHouse, 5, 1))
	require.NoError(t, err)
	page, err = svc.Search(ctx, property.Filter{City: "lisbon", Sort: property.SortPriceDesc})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)

	_, err = svc.Create(ctx, "o", listing("New", "Lisbon", property.TypeHouse, 50000, 1))
	require.NoError(t, err)
	page, err = svc.Search(ctx, property.Filter{City: "lisbon", Sort: property.SortPriceDesc})
	require.NoError(t, err)
	require.Equal(t, 4, page.Total)

	_, err = svc.Search(ctx, property.Filter{MinPrice: 10, MaxPrice: 5})
	require.ErrorIs(t, err, service.ErrValidation)
}

// racingStore runs onSearch once, after the store has read its rows but
// before the service caches them.
type racingStore struct {
	*memory.Store
	onSearch func()
}

func (r *racingStore) SearchProperties(ctx context.Context, filter property.Filter) ([]property.Property, int, error) {
	items, total, err := r.Store.SearchProperties(ctx, filter)
	if hook := r.onSearch; hook != nil {
		r.onSearch = nil
		hook()
	}
	return items, total, err
}

func TestSearchWriteDuringQueryIsNotCachedAsFresh(t *testing.T) {
	store := &racingStore{Store: memory.New()}
	svc := New(store, store, store, cache.NewMemory(), Options{SearchTTL: time.Minute}, logger.NewDiscard())
	ctx := context.Background()

	_, err := svc.Create(ctx, "o", listing("First", "Faro", property.TypeHouse, 100000, 2))
	require.NoError(t, err)

	store.onSearch = func() {
		_, err := svc.Create(ctx, "o", listing("Second", "Faro", property.TypeHouse, 120000, 2))
		require.NoError(t, err)
	}
	page, err := svc.Search(ctx, property.Filter{City: "Faro"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)

	page, err = svc.Search(ctx, property.Filter{City: "Faro"})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total, "a write during the first query must invalidate its page")
}

func TestSearchPagingAndFeatures(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		p := listing("Unit", "Braga", property.TypeApartment, float64(1000+i), 1)
		if i%5 == 0 {
			p.Features = []string{"Pool", "garage"}
		}
		_, err := svc.Create(ctx, "o", p)
		require.NoError(t, err)
	}

	page, err := svc.Search(ctx, property.Filter{Page: 2, PageSize: 10, Sort: property.SortPriceAsc})
	require.NoError(t, err)
	require.Equal(t, 25, page.Total)
	require.Len(t, page.Items, 10)
	require.Equal(t, 1010.0, page.Items[0].Price)

	page, err = svc.Search(ctx, property.Filter{Features: []string{"pool", "GARAGE"}})
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)

	page, err = svc.Search(ctx, property.Filter{PageSize: 1000})
	require.NoError(t, err)
	require.Equal(t, property.MaxPageSize, page.PageSize)
}

func TestFeaturedAndSimilar(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	admin := service.Actor{UserID: "root", Role: user.RoleAdmin}

	base, err := svc.Create(ctx, "o", listing("Base", "Lisbon", property.TypeApartment, 300000, 2))
	require.NoError(t, err)
	close1, err := svc.Create(ctx, "o", listing("Close", "Lisbon", property.TypeApartment, 320000, 2))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "o", listing("Pricey", "Lisbon", property.TypeApartment, 900000, 4))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "o", listing("Elsewhere", "Porto", property.TypeHouse, 300000, 2))
	require.NoError(t, err)

	similar, err := svc.Similar(ctx, base.ID, 2)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	require.Equal(t, close1.ID, similar[0].ID)
	for _, p := range similar {
		require.NotEqual(t, base.ID, p.ID)
	}

	featured := true
	_, err = svc.Update(ctx, admin, close1.ID, Patch{Featured: &featured})
	require.NoError(t, err)
	top, err := svc.Featured(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, close1.ID, top[0].ID)
}

func TestFavoritesIdempotent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, "o", listing("Fav", "Coimbra", property.TypeHouse, 1000, 1))
	require.NoError(t, err)

	_, err = svc.AddFavorite(ctx, "u1", p.ID)
	require.NoError(t, err)
	_, err = svc.AddFavorite(ctx, "u1", p.ID)
	require.NoError(t, err)

	favs, err := svc.ListFavorites(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, favs, 1)

	_, err = svc.AddFavorite(ctx, "u1", "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, svc.RemoveFavorite(ctx, "u1", p.ID))
	favs, err = svc.ListFavorites(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, favs)
}

func TestImportScrapedUpserts(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	in := listing("Scraped", "Aveiro", property.TypeHouse, 150000, 3)
	in.SourceRef = "mock:1"
	created, isNew, err := svc.ImportScraped(ctx, in)
	require.NoError(t, err)
	require.True(t, isNew)
	require.Equal(t, property.SourceScraped, created.Source)
	require.Equal(t, ScraperOwnerID, created.OwnerID)

	in.Price = 140000
	updated, isNew, err := svc.ImportScraped(ctx, in)
	require.NoError(t, err)
	require.False(t, isNew)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, 140000.0, updated.Price)

	in.SourceRef = ""
	_, _, err = svc.ImportScraped(ctx, in)
	require.ErrorIs(t, err, service.ErrValidation)
}
