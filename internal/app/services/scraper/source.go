// Package scraper collects listings from external sources and imports them
// as properties.
package scraper

import (
	"context"
	"strings"

	"github.com/estatehub/marketplace/internal/app/domain/property"
)

// Source produces listings.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Listing, error)
}

// Listing is a scraped record before import.
type Listing struct {
	Ref         string   `json:"ref"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type"`
	ListingType string   `json:"listing_type"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency,omitempty"`
	Address     string   `json:"address,omitempty"`
	City        string   `json:"city"`
	Country     string   `json:"country,omitempty"`
	AreaSqm     float64  `json:"area_sqm"`
	Bedrooms    int      `json:"bedrooms"`
	Bathrooms   int      `json:"bathrooms"`
	YearBuilt   int      `json:"year_built,omitempty"`
	Features    []string `json:"features,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// Property converts the listing. The source name prefixes the reference so
// refs from different sources never collide.
func (l Listing) Property(source string) property.Property {
	listingType := property.ListingType(strings.ToLower(l.ListingType))
	if listingType == "" {
		listingType = property.ListingSale
	}
	return property.Property{
		Title:       l.Title,
		Description: l.Description,
		Type:        property.Type(strings.ToLower(l.Type)),
		ListingType: listingType,
		Price:       l.Price,
		Currency:    l.Currency,
		Location: property.Location{
			Address: l.Address,
			City:    l.City,
			Country: l.Country,
		},
		AreaSqm:   l.AreaSqm,
		Bedrooms:  l.Bedrooms,
		Bathrooms: l.Bathrooms,
		YearBuilt: l.YearBuilt,
		Features:  l.Features,
		Images:    l.Images,
		Source:    property.SourceScraped,
		SourceRef: source + ":" + l.Ref,
	}
}
