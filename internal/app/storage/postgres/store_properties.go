package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/estatehub/marketplace/internal/app/domain/property"
)

const propertyColumns = `id, owner_id, title, description, type, listing_type, status, price, currency,
	city, location, area_sqm, bedrooms, bathrooms, year_built, features, images, featured,
	source, source_ref, views, created_at, updated_at`

// propertyRow is the column layout of the properties table. Nested documents
// are stored as JSONB.
type propertyRow struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Type        string    `db:"type"`
	ListingType string    `db:"listing_type"`
	Status      string    `db:"status"`
	Price       float64   `db:"price"`
	Currency    string    `db:"currency"`
	City        string    `db:"city"`
	Location    []byte    `db:"location"`
	AreaSqm     float64   `db:"area_sqm"`
	Bedrooms    int       `db:"bedrooms"`
	Bathrooms   int       `db:"bathrooms"`
	YearBuilt   int       `db:"year_built"`
	Features    []byte    `db:"features"`
	Images      []byte    `db:"images"`
	Featured    bool      `db:"featured"`
	Source      string    `db:"source"`
	SourceRef   string    `db:"source_ref"`
	Views       int64     `db:"views"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func toPropertyRow(p property.Property) (propertyRow, error) {
	location, err := json.Marshal(p.Location)
	if err != nil {
		return propertyRow{}, err
	}
	features, err := json.Marshal(nonNil(p.Features))
	if err != nil {
		return propertyRow{}, err
	}
	images, err := json.Marshal(nonNil(p.Images))
	if err != nil {
		return propertyRow{}, err
	}
	return propertyRow{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Title:       p.Title,
		Description: p.Description,
		Type:        string(p.Type),
		ListingType: string(p.ListingType),
		Status:      string(p.Status),
		Price:       p.Price,
		Currency:    p.Currency,
		City:        p.Location.City,
		Location:    location,
		AreaSqm:     p.AreaSqm,
		Bedrooms:    p.Bedrooms,
		Bathrooms:   p.Bathrooms,
		YearBuilt:   p.YearBuilt,
		Features:    features,
		Images:      images,
		Featured:    p.Featured,
		Source:      string(p.Source),
		SourceRef:   p.SourceRef,
		Views:       p.Views,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

func (r propertyRow) toProperty() property.Property {
	p := property.Property{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		Type:        property.Type(r.Type),
		ListingType: property.ListingType(r.ListingType),
		Status:      property.Status(r.Status),
		Price:       r.Price,
		Currency:    r.Currency,
		AreaSqm:     r.AreaSqm,
		Bedrooms:    r.Bedrooms,
		Bathrooms:   r.Bathrooms,
		YearBuilt:   r.YearBuilt,
		Featured:    r.Featured,
		Source:      property.Source(r.Source),
		SourceRef:   r.SourceRef,
		Views:       r.Views,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Location) > 0 {
		_ = json.Unmarshal(r.Location, &p.Location)
	}
	if len(r.Features) > 0 {
		_ = json.Unmarshal(r.Features, &p.Features)
	}
	if len(r.Images) > 0 {
		_ = json.Unmarshal(r.Images, &p.Images)
	}
	p.Location.City = r.City
	return p
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// --- PropertyStore ----------------------------------------------------------

func (s *Store) CreateProperty(ctx context.Context, p property.Property) (property.Property, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	row, err := toPropertyRow(p)
	if err != nil {
		return property.Property{}, err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO properties (`+propertyColumns+`)
		VALUES (:id, :owner_id, :title, :description, :type, :listing_type, :status, :price, :currency,
			:city, :location, :area_sqm, :bedrooms, :bathrooms, :year_built, :features, :images, :featured,
			:source, :source_ref, :views, :created_at, :updated_at)
	`, row)
	if err != nil {
		return property.Property{}, mapErr("property", p.ID, err)
	}
	return p, nil
}

func (s *Store) UpdateProperty(ctx context.Context, p property.Property) (property.Property, error) {
	p.UpdatedAt = time.Now().UTC()
	row, err := toPropertyRow(p)
	if err != nil {
		return property.Property{}, err
	}

	query, args, err := s.db.BindNamed(`
		UPDATE properties
		SET owner_id = :owner_id, title = :title, description = :description, type = :type,
			listing_type = :listing_type, status = :status, price = :price, currency = :currency,
			city = :city, location = :location, area_sqm = :area_sqm, bedrooms = :bedrooms,
			bathrooms = :bathrooms, year_built = :year_built, features = :features, images = :images,
			featured = :featured, source = :source, source_ref = :source_ref, updated_at = :updated_at
		WHERE id = :id
		RETURNING views, created_at
	`, row)
	if err != nil {
		return property.Property{}, err
	}
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&p.Views, &p.CreatedAt); err != nil {
		return property.Property{}, mapErr("property", p.ID, err)
	}
	return p, nil
}

func (s *Store) GetProperty(ctx context.Context, id string) (property.Property, error) {
	var row propertyRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id); err != nil {
		return property.Property{}, mapErr("property", id, err)
	}
	return row.toProperty(), nil
}

func (s *Store) GetPropertyBySource(ctx context.Context, source property.Source, ref string) (property.Property, error) {
	var row propertyRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE source = $1 AND source_ref = $2
	`, string(source), ref)
	if err != nil {
		return property.Property{}, mapErr("property", string(source)+":"+ref, err)
	}
	return row.toProperty(), nil
}

func (s *Store) DeleteProperty(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return mapErr("property", id, err)
	}
	return requireRows("property", id, result)
}

func (s *Store) IncrementViews(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE properties SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows("property", id, result)
}

func (s *Store) SearchProperties(ctx context.Context, filter property.Filter) ([]property.Property, int, error) {
	filter = filter.Normalize()
	where, args, err := buildPropertyWhere(filter)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM properties`+where, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM properties%s ORDER BY %s LIMIT %d OFFSET %d`,
		propertyColumns, where, orderBy(filter.Sort), filter.PageSize, filter.Offset())

	var rows []propertyRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}
	items := make([]property.Property, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toProperty())
	}
	return items, total, nil
}

func buildPropertyWhere(f property.Filter) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(args))))
	}

	if f.City != "" {
		add("lower(city) = lower(?)", f.City)
	}
	if f.Type != "" {
		add("type = ?", string(f.Type))
	}
	if f.ListingType != "" {
		add("listing_type = ?", string(f.ListingType))
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.MinPrice > 0 {
		add("price >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("price <= ?", f.MaxPrice)
	}
	if f.MinBedrooms > 0 {
		add("bedrooms >= ?", f.MinBedrooms)
	}
	if f.MinBathrooms > 0 {
		add("bathrooms >= ?", f.MinBathrooms)
	}
	if f.MinArea > 0 {
		add("area_sqm >= ?", f.MinArea)
	}
	if f.MaxArea > 0 {
		add("area_sqm <= ?", f.MaxArea)
	}
	if f.OwnerID != "" {
		add("owner_id = ?", f.OwnerID)
	}
	if f.Featured != nil {
		add("featured = ?", *f.Featured)
	}
	if len(f.Features) > 0 {
		raw, err := json.Marshal(f.Features)
		if err != nil {
			return "", nil, err
		}
		add("features @> ?::jsonb", string(raw))
	}
	if f.Query != "" {
		add("(title ILIKE ? OR description ILIKE ? OR location->>'address' ILIKE ?)", "%"+f.Query+"%")
	}

	if len(clauses) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func orderBy(sort property.Sort) string {
	switch sort {
	case property.SortPriceAsc:
		return "price ASC, id"
	case property.SortPriceDesc:
		return "price DESC, id"
	case property.SortAreaDesc:
		return "area_sqm DESC, id"
	default:
		return "created_at DESC, id"
	}
}
