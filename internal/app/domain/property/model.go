package property

import (
	"sort"
	"strings"
	"time"
)

// Type is the kind of real estate.
type Type string

const (
	TypeHouse      Type = "house"
	TypeApartment  Type = "apartment"
	TypeVilla      Type = "villa"
	TypeLand       Type = "land"
	TypeCommercial Type = "commercial"
)

// Types lists every known property type.
var Types = []Type{TypeHouse, TypeApartment, TypeVilla, TypeLand, TypeCommercial}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// ListingType is how the property is offered.
type ListingType string

const (
	ListingSale    ListingType = "sale"
	ListingRent    ListingType = "rent"
	ListingAuction ListingType = "auction"
)

// Valid reports whether l is a known listing type.
func (l ListingType) Valid() bool {
	switch l {
	case ListingSale, ListingRent, ListingAuction:
		return true
	}
	return false
}

// Status tracks availability.
type Status string

const (
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
	StatusSold      Status = "sold"
	StatusRented    Status = "rented"
	StatusOffMarket Status = "off_market"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusPending, StatusSold, StatusRented, StatusOffMarket:
		return true
	}
	return false
}

// Source records where a listing came from.
type Source string

const (
	SourceManual  Source = "manual"
	SourceScraped Source = "scraped"
)

// Location is the postal and geographic position of a property.
type Location struct {
	Address    string  `json:"address"`
	City       string  `json:"city"`
	State      string  `json:"state,omitempty"`
	Country    string  `json:"country,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
}

// Property is a listing on the marketplace.
type Property struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Type        Type        `json:"type"`
	ListingType ListingType `json:"listing_type"`
	Status      Status      `json:"status"`
	Price       float64     `json:"price"`
	Currency    string      `json:"currency"`
	Location    Location    `json:"location"`
	AreaSqm     float64     `json:"area_sqm"`
	Bedrooms    int         `json:"bedrooms"`
	Bathrooms   int         `json:"bathrooms"`
	YearBuilt   int         `json:"year_built,omitempty"`
	Features    []string    `json:"features,omitempty"`
	Images      []string    `json:"images,omitempty"`
	Featured    bool        `json:"featured"`
	Source      Source      `json:"source"`
	SourceRef   string      `json:"source_ref,omitempty"`
	Views       int64       `json:"views"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// HasFeature reports whether the property lists the feature, ignoring case.
func (p Property) HasFeature(feature string) bool {
	for _, f := range p.Features {
		if strings.EqualFold(f, feature) {
			return true
		}
	}
	return false
}

// Sort orders search results.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortAreaDesc  Sort = "area_desc"
)

// Filter narrows a property search. Zero values do not filter.
type Filter struct {
	Query        string      `json:"query,omitempty"`
	City         string      `json:"city,omitempty"`
	Type         Type        `json:"type,omitempty"`
	ListingType  ListingType `json:"listing_type,omitempty"`
	Status       Status      `json:"status,omitempty"`
	MinPrice     float64     `json:"min_price,omitempty"`
	MaxPrice     float64     `json:"max_price,omitempty"`
	MinBedrooms  int         `json:"min_bedrooms,omitempty"`
	MinBathrooms int         `json:"min_bathrooms,omitempty"`
	MinArea      float64     `json:"min_area,omitempty"`
	MaxArea      float64     `json:"max_area,omitempty"`
	Features     []string    `json:"features,omitempty"`
	OwnerID      string      `json:"owner_id,omitempty"`
	Featured     *bool       `json:"featured,omitempty"`
	Sort         Sort        `json:"sort,omitempty"`
	Page         int         `json:"page"`
	PageSize     int         `json:"page_size"`
}

// Page is one page of search results.
type Page struct {
	Items    []Property `json:"items"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// Matches applies every filter predicate except paging and sorting.
func (f Filter) Matches(p Property) bool {
	if f.City != "" && !strings.EqualFold(p.Location.City, f.City) {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.ListingType != "" && p.ListingType != f.ListingType {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.MinPrice > 0 && p.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.Price > f.MaxPrice {
		return false
	}
	if f.MinBedrooms > 0 && p.Bedrooms < f.MinBedrooms {
		return false
	}
	if f.MinBathrooms > 0 && p.Bathrooms < f.MinBathrooms {
		return false
	}
	if f.MinArea > 0 && p.AreaSqm < f.MinArea {
		return false
	}
	if f.MaxArea > 0 && p.AreaSqm > f.MaxArea {
		return false
	}
	if f.OwnerID != "" && p.OwnerID != f.OwnerID {
		return false
	}
	if f.Featured != nil && p.Featured != *f.Featured {
		return false
	}
	for _, feature := range f.Features {
		if !p.HasFeature(feature) {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		haystack := strings.ToLower(p.Title + " " + p.Description + " " + p.Location.Address)
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

// Favorite links a user to a saved property.
type Favorite struct {
	UserID     string    `json:"user_id"`
	PropertyID string    `json:"property_id"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize fills paging defaults and canonicalizes string fields so equal
// searches produce equal filters.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	switch f.Sort {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortAreaDesc:
	default:
		f.Sort = SortNewest
	}
	f.Query = strings.TrimSpace(f.Query)
	f.City = strings.TrimSpace(f.City)
	features := make([]string, 0, len(f.Features))
	for _, feature := range f.Features {
		if trimmed := strings.ToLower(strings.TrimSpace(feature)); trimmed != "" {
			features = append(features, trimmed)
		}
	}
	sort.Strings(features)
	f.Features = features
	return f
}

// Offset is the index of the first item on the filter's page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// SortProperties orders items in place. Ties fall back to the ID so equal
// inputs always sort the same way.
func SortProperties(items []Property, by Sort) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch by {
		case SortPriceAsc:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case SortPriceDesc:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		case SortAreaDesc:
			if a.AreaSqm != b.AreaSqm {
				return a.AreaSqm > b.AreaSqm
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}
