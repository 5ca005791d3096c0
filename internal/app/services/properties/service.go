package properties

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/storage"
	"github.com/estatehub/marketplace/internal/cache"
	"github.com/estatehub/marketplace/pkg/logger"
)

// ScraperOwnerID owns every imported listing.
const ScraperOwnerID = "scraper"

// Service manages listings, search and favorites.
type Service struct {
	store     storage.PropertyStore
	favorites storage.FavoriteStore
	auctions  storage.AuctionStore
	search    *searchCache
	log       *logger.Logger
}

// New constructs a property service. A nil cache disables search caching.
func New(store storage.PropertyStore, favorites storage.FavoriteStore, auctions storage.AuctionStore, c cache.Cache, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("properties")
	}
	return &Service{
		store:     store,
		favorites: favorites,
		auctions:  auctions,
		search:    newSearchCache(c, opts.SearchTTL, log),
		log:       log,
	}
}

// Descriptor advertises the service.
func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "properties",
		Domain:       "listings",
		Layer:        service.LayerDomain,
		Capabilities: []string{"crud", "search", "favorites", "similar"},
	}
}

// Patch carries optional listing changes.
type Patch struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Type        *property.Type        `json:"type"`
	ListingType *property.ListingType `json:"listing_type"`
	Status      *property.Status      `json:"status"`
	Price       *float64              `json:"price"`
	Currency    *string               `json:"currency"`
	Location    *property.Location    `json:"location"`
	AreaSqm     *float64              `json:"area_sqm"`
	Bedrooms    *int                  `json:"bedrooms"`
	Bathrooms   *int                  `json:"bathrooms"`
	YearBuilt   *int                  `json:"year_built"`
	Features    *[]string             `json:"features"`
	Images      *[]string             `json:"images"`
	Featured    *bool                 `json:"featured"`
}

// Create validates and stores a new manual listing owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, p property.Property) (property.Property, error) {
	if strings.TrimSpace(ownerID) == "" {
		return property.Property{}, service.Invalid("owner_id is required")
	}
	p.ID = ""
	p.OwnerID = ownerID
	p.Views = 0
	if p.Source == "" {
		p.Source = property.SourceManual
	}
	p = normalize(p)
	if err := validate(p); err != nil {
		return property.Property{}, err
	}

	created, err := s.store.CreateProperty(ctx, p)
	if err != nil {
		return property.Property{}, err
	}
	s.search.invalidate(ctx)
	s.log.WithField("property_id", created.ID).WithField("owner_id", ownerID).Info("property created")
	return created, nil
}

// Get returns a listing and counts the view.
func (s *Service) Get(ctx context.Context, id string) (property.Property, error) {
	if err := s.store.IncrementViews(ctx, id); err != nil {
		return property.Property{}, err
	}
	return s.store.GetProperty(ctx, id)
}

// Lookup returns a listing without counting a view.
func (s *Service) Lookup(ctx context.Context, id string) (property.Property, error) {
	return s.store.GetProperty(ctx, id)
}

// Update applies patch when actor owns the listing or is an admin.
func (s *Service) Update(ctx context.Context, actor service.Actor, id string, patch Patch) (property.Property, error) {
	existing, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return property.Property{}, err
	}
	if !actor.CanManage(existing.OwnerID) {
		return property.Property{}, fmt.Errorf("%w: only the owner can update property %s", service.ErrForbidden, id)
	}
	if patch.Featured != nil && !actor.IsAdmin() {
		return property.Property{}, fmt.Errorf("%w: only admins can feature listings", service.ErrForbidden)
	}

	updated := applyPatch(existing, patch)
	updated = normalize(updated)
	if err := validate(updated); err != nil {
		return property.Property{}, err
	}
	saved, err := s.store.UpdateProperty(ctx, updated)
	if err != nil {
		return property.Property{}, err
	}
	s.search.invalidate(ctx)
	return saved, nil
}

// SetStatus changes availability on behalf of internal workflows such as
// auction settlement.
func (s *Service) SetStatus(ctx context.Context, id string, status property.Status) (property.Property, error) {
	if !status.Valid() {
		return property.Property{}, service.Invalid("unknown status %q", status)
	}
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return property.Property{}, err
	}
	if p.Status == status {
		return p, nil
	}
	p.Status = status
	saved, err := s.store.UpdateProperty(ctx, p)
	if err != nil {
		return property.Property{}, err
	}
	s.search.invalidate(ctx)
	s.log.WithField("property_id", id).WithField("status", status).Info("property status changed")
	return saved, nil
}

// Delete removes a listing. Listings with an open auction cannot be removed.
func (s *Service) Delete(ctx context.Context, actor service.Actor, id string) error {
	existing, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(existing.OwnerID) {
		return fmt.Errorf("%w: only the owner can delete property %s", service.ErrForbidden, id)
	}
	if s.auctions != nil {
		held, err := s.auctions.ListAuctions(ctx, auction.Filter{PropertyID: id})
		if err != nil {
			return err
		}
		// Ended auctions keep their bids, deposits and payment state, so any
		// auction pins the listing.
		if len(held) > 0 {
			a := held[0]
			return fmt.Errorf("property %s has %s auction %s: %w", id, a.Status, a.ID, storage.ErrConflict)
		}
	}
	if err := s.store.DeleteProperty(ctx, id); err != nil {
		return err
	}
	s.search.invalidate(ctx)
	s.log.WithField("property_id", id).Info("property deleted")
	return nil
}

// Search returns one page of listings matching filter.
func (s *Service) Search(ctx context.Context, filter property.Filter) (property.Page, error) {
	filter = filter.Normalize()
	if filter.Type != "" && !filter.Type.Valid() {
		return property.Page{}, service.Invalid("unknown type %q", filter.Type)
	}
	if filter.ListingType != "" && !filter.ListingType.Valid() {
		return property.Page{}, service.Invalid("unknown listing_type %q", filter.ListingType)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return property.Page{}, service.Invalid("unknown status %q", filter.Status)
	}
	if filter.MinPrice > 0 && filter.MaxPrice > 0 && filter.MinPrice > filter.MaxPrice {
		return property.Page{}, service.Invalid("min_price exceeds max_price")
	}

	key, page, ok := s.search.lookup(ctx, filter)
	if ok {
		return page, nil
	}

	items, total, err := s.store.SearchProperties(ctx, filter)
	if err != nil {
		return property.Page{}, err
	}
	if items == nil {
		items = []property.Property{}
	}
	page = property.Page{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}
	s.search.put(ctx, key, page)
	return page, nil
}

// Featured returns up to limit featured, available listings, newest first.
func (s *Service) Featured(ctx context.Context, limit int) ([]property.Property, error) {
	featured := true
	page, err := s.Search(ctx, property.Filter{
		Featured: &featured,
		Status:   property.StatusAvailable,
		Sort:     property.SortNewest,
		PageSize: clampLimit(limit),
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// ImportScraped upserts a scraped listing keyed by its source reference.
// It reports whether a new listing was created.
func (s *Service) ImportScraped(ctx context.Context, listing property.Property) (property.Property, bool, error) {
	ref := strings.TrimSpace(listing.SourceRef)
	if ref == "" {
		return property.Property{}, false, service.Invalid("source_ref is required for scraped listings")
	}
	listing.SourceRef = ref
	listing.Source = property.SourceScraped

	existing, err := s.store.GetPropertyBySource(ctx, property.SourceScraped, ref)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		created, err := s.Create(ctx, ScraperOwnerID, listing)
		if err != nil {
			return property.Property{}, false, err
		}
		return created, true, nil
	case err != nil:
		return property.Property{}, false, err
	}

	listing.ID = existing.ID
	listing.OwnerID = existing.OwnerID
	listing.Featured = existing.Featured
	listing.Status = existing.Status
	listing = normalize(listing)
	if err := validate(listing); err != nil {
		return property.Property{}, false, err
	}
	saved, err := s.store.UpdateProperty(ctx, listing)
	if err != nil {
		return property.Property{}, false, err
	}
	s.search.invalidate(ctx)
	return saved, false, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 6
	}
	if limit > property.MaxPageSize {
		return property.MaxPageSize
	}
	return limit
}

func normalize(p property.Property) property.Property {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.Status == "" {
		p.Status = property.StatusAvailable
	}
	p.Location.City = strings.TrimSpace(p.Location.City)
	p.Location.Address = strings.TrimSpace(p.Location.Address)
	p.Features = normalizeFeatures(p.Features)
	return p
}

func normalizeFeatures(features []string) []string {
	if len(features) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(features))
	out := make([]string, 0, len(features))
	for _, f := range features {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func validate(p property.Property) error {
	if p.Title == "" {
		return service.Invalid("title is required")
	}
	if !p.Type.Valid() {
		return service.Invalid("unknown type %q", p.Type)
	}
	if !p.ListingType.Valid() {
		return service.Invalid("unknown listing_type %q", p.ListingType)
	}
	if !p.Status.Valid() {
		return service.Invalid("unknown status %q", p.Status)
	}
	landAtAuction := p.Type == property.TypeLand && p.ListingType == property.ListingAuction
	switch {
	case p.Price < 0:
		return service.Invalid("price cannot be negative")
	case p.Price == 0 && !landAtAuction:
		return service.Invalid("price must be positive")
	}
	if p.Location.City == "" {
		return service.Invalid("location.city is required")
	}
	if p.AreaSqm < 0 || p.Bedrooms < 0 || p.Bathrooms < 0 || p.YearBuilt < 0 {
		return service.Invalid("area and room counts cannot be negative")
	}
	if len(p.Currency) != 3 {
		return service.Invalid("currency must be a 3-letter code")
	}
	return nil
}

func applyPatch(p property.Property, patch Patch) property.Property {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Type != nil {
		p.Type = *patch.Type
	}
	if patch.ListingType != nil {
		p.ListingType = *patch.ListingType
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Currency != nil {
		p.Currency = *patch.Currency
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.AreaSqm != nil {
		p.AreaSqm = *patch.AreaSqm
	}
	if patch.Bedrooms != nil {
		p.Bedrooms = *patch.Bedrooms
	}
	if patch.Bathrooms != nil {
		p.Bathrooms = *patch.Bathrooms
	}
	if patch.YearBuilt != nil {
		p.YearBuilt = *patch.YearBuilt
	}
	if patch.Features != nil {
		p.Features = append([]string(nil), (*patch.Features)...)
	}
	if patch.Images != nil {
		p.Images = append([]string(nil), (*patch.Images)...)
	}
	if patch.Featured != nil {
		p.Featured = *patch.Featured
	}
	return p
}
