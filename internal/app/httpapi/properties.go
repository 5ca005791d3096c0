package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/services/properties"
	"github.com/estatehub/marketplace/internal/middleware"
)

type propertyRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Type        property.Type        `json:"type"`
	ListingType property.ListingType `json:"listing_type"`
	Status      property.Status      `json:"status"`
	Price       float64              `json:"price"`
	Currency    string               `json:"currency"`
	Location    property.Location    `json:"location"`
	AreaSqm     float64              `json:"area_sqm"`
	Bedrooms    int                  `json:"bedrooms"`
	Bathrooms   int                  `json:"bathrooms"`
	YearBuilt   int                  `json:"year_built"`
	Features    []string             `json:"features"`
	Images      []string             `json:"images"`
	Featured    bool                 `json:"featured"`
}

func (a *API) createProperty(w http.ResponseWriter, r *http.Request) {
	var req propertyRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	actor := middleware.ActorFrom(r.Context())
	if req.Featured && !actor.IsAdmin() {
		a.fail(w, r, fmt.Errorf("%w: only admins can feature listings", service.ErrForbidden))
		return
	}
	created, err := a.app.Properties.Create(r.Context(), actor.UserID, property.Property{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		ListingType: req.ListingType,
		Status:      req.Status,
		Price:       req.Price,
		Currency:    req.Currency,
		Location:    req.Location,
		AreaSqm:     req.AreaSqm,
		Bedrooms:    req.Bedrooms,
		Bathrooms:   req.Bathrooms,
		YearBuilt:   req.YearBuilt,
		Features:    req.Features,
		Images:      req.Images,
		Featured:    req.Featured,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) getProperty(w http.ResponseWriter, r *http.Request) {
	p, err := a.app.Properties.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) updateProperty(w http.ResponseWriter, r *http.Request) {
	var patch properties.Patch
	if err := decodeJSON(r.Body, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	updated, err := a.app.Properties.Update(r.Context(), middleware.ActorFrom(r.Context()), pathVar(r, "id"), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deleteProperty(w http.ResponseWriter, r *http.Request) {
	if err := a.app.Properties.Delete(r.Context(), middleware.ActorFrom(r.Context()), pathVar(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) searchProperties(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	page, err := a.app.Properties.Search(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// parseFilter reads search parameters from the query string.
func parseFilter(r *http.Request) (property.Filter, error) {
	q := r.URL.Query()
	filter := property.Filter{
		Query:       q.Get("q"),
		City:        q.Get("city"),
		Type:        property.Type(q.Get("type")),
		ListingType: property.ListingType(q.Get("listing_type")),
		Status:      property.Status(q.Get("status")),
		Features:    queryList(r, "features"),
		OwnerID:     q.Get("owner_id"),
		Sort:        property.Sort(q.Get("sort")),
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"min_price", &filter.MinPrice},
		{"max_price", &filter.MaxPrice},
		{"min_area", &filter.MinArea},
		{"max_area", &filter.MaxArea},
	}
	for _, f := range floats {
		v, err := queryFloat(r, f.name)
		if err != nil {
			return property.Filter{}, err
		}
		*f.dst = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"min_bedrooms", &filter.MinBedrooms},
		{"min_bathrooms", &filter.MinBathrooms},
		{"page", &filter.Page},
		{"page_size", &filter.PageSize},
	}
	for _, i := range ints {
		v, err := queryInt(r, i.name)
		if err != nil {
			return property.Filter{}, err
		}
		*i.dst = v
	}

	if raw := q.Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return property.Filter{}, service.Invalid("featured must be a boolean")
		}
		filter.Featured = &featured
	}
	return filter, nil
}

func (a *API) featuredProperties(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := a.app.Properties.Featured(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) similarProperties(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := a.app.Properties.Similar(r.Context(), pathVar(r, "id"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) listFavorites(w http.ResponseWriter, r *http.Request) {
	items, err := a.app.Properties.ListFavorites(r.Context(), middleware.ActorFrom(r.Context()).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) addFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := a.app.Properties.AddFavorite(r.Context(), middleware.ActorFrom(r.Context()).UserID, pathVar(r, "propertyID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

func (a *API) removeFavorite(w http.ResponseWriter, r *http.Request) {
	if err := a.app.Properties.RemoveFavorite(r.Context(), middleware.ActorFrom(r.Context()).UserID, pathVar(r, "propertyID")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
