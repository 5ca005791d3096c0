package scraper

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/estatehub/marketplace/internal/httputil"
)

const maxFeedBytes = 8 << 20

// FieldMap holds the gjson paths used to read a feed. Item paths are
// relative to each element of Items.
type FieldMap struct {
	Items       string
	Ref         string
	Title       string
	Description string
	Type        string
	ListingType string
	Price       string
	Currency    string
	Address     string
	City        string
	Country     string
	Area        string
	Bedrooms    string
	Bathrooms   string
	YearBuilt   string
	Features    string
	Images      string
}

// DefaultFieldMap reads a flat `{"listings": [...]}` document.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Items:       "listings",
		Ref:         "id",
		Title:       "title",
		Description: "description",
		Type:        "type",
		ListingType: "listing_type",
		Price:       "price",
		Currency:    "currency",
		Address:     "address",
		City:        "city",
		Country:     "country",
		Area:        "area_sqm",
		Bedrooms:    "bedrooms",
		Bathrooms:   "bathrooms",
		YearBuilt:   "year_built",
		Features:    "features",
		Images:      "images",
	}
}

// ParseFieldMap overlays paths keyed by field name onto the default map.
func ParseFieldMap(paths map[string]string) (FieldMap, error) {
	fm := DefaultFieldMap()
	targets := map[string]*string{
		"items":        &fm.Items,
		"ref":          &fm.Ref,
		"title":        &fm.Title,
		"description":  &fm.Description,
		"type":         &fm.Type,
		"listing_type": &fm.ListingType,
		"price":        &fm.Price,
		"currency":     &fm.Currency,
		"address":      &fm.Address,
		"city":         &fm.City,
		"country":      &fm.Country,
		"area":         &fm.Area,
		"bedrooms":     &fm.Bedrooms,
		"bathrooms":    &fm.Bathrooms,
		"year_built":   &fm.YearBuilt,
		"features":     &fm.Features,
		"images":       &fm.Images,
	}
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		target, ok := targets[strings.ToLower(k)]
		if !ok {
			return FieldMap{}, fmt.Errorf("unknown feed field %q", k)
		}
		*target = paths[k]
	}
	if fm.Items == "" || fm.Ref == "" || fm.Title == "" {
		return FieldMap{}, fmt.Errorf("feed fields items, ref and title are required")
	}
	return fm, nil
}

// FeedSource reads listings from a JSON document served over HTTP.
type FeedSource struct {
	name   string
	url    string
	fields FieldMap
	client *httputil.Client
}

// NewFeedSource returns a feed source. A nil client uses the httputil
// defaults.
func NewFeedSource(name, url string, fields FieldMap, client *httputil.Client) *FeedSource {
	if client == nil {
		client = httputil.NewClient(httputil.ClientConfig{})
	}
	return &FeedSource{name: name, url: url, fields: fields, client: client}
}

func (f *FeedSource) Name() string { return f.name }

// Fetch downloads the feed and extracts every item under Items.
func (f *FeedSource) Fetch(ctx context.Context) ([]Listing, error) {
	body, err := f.client.GetJSON(ctx, f.url, maxFeedBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.name, err)
	}
	return f.parse(body)
}

func (f *FeedSource) parse(body []byte) ([]Listing, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("feed %s: invalid JSON", f.name)
	}
	items := gjson.GetBytes(body, f.fields.Items)
	if !items.IsArray() {
		return nil, fmt.Errorf("feed %s: %q is not an array", f.name, f.fields.Items)
	}

	fm := f.fields
	var out []Listing
	items.ForEach(func(_, item gjson.Result) bool {
		out = append(out, Listing{
			Ref:         item.Get(fm.Ref).String(),
			Title:       item.Get(fm.Title).String(),
			Description: optional(item, fm.Description).String(),
			Type:        optional(item, fm.Type).String(),
			ListingType: optional(item, fm.ListingType).String(),
			Price:       optional(item, fm.Price).Float(),
			Currency:    optional(item, fm.Currency).String(),
			Address:     optional(item, fm.Address).String(),
			City:        optional(item, fm.City).String(),
			Country:     optional(item, fm.Country).String(),
			AreaSqm:     optional(item, fm.Area).Float(),
			Bedrooms:    int(optional(item, fm.Bedrooms).Int()),
			Bathrooms:   int(optional(item, fm.Bathrooms).Int()),
			YearBuilt:   int(optional(item, fm.YearBuilt).Int()),
			Features:    stringList(optional(item, fm.Features)),
			Images:      stringList(optional(item, fm.Images)),
		})
		return true
	})
	return out, nil
}

func optional(item gjson.Result, path string) gjson.Result {
	if path == "" {
		return gjson.Result{}
	}
	return item.Get(path)
}

// stringList accepts an array or a comma separated string.
func stringList(r gjson.Result) []string {
	var out []string
	if r.IsArray() {
		for _, v := range r.Array() {
			if s := strings.TrimSpace(v.String()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	for _, part := range strings.Split(r.String(), ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
