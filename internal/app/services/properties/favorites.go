package properties

import (
	"context"
	"errors"
	"strings"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/storage"
)

// AddFavorite saves a listing for the user. Saving twice is a no-op.
func (s *Service) AddFavorite(ctx context.Context, userID, propertyID string) (property.Favorite, error) {
	if strings.TrimSpace(userID) == "" {
		return property.Favorite{}, service.Invalid("user_id is required")
	}
	if _, err := s.store.GetProperty(ctx, propertyID); err != nil {
		return property.Favorite{}, err
	}
	return s.favorites.AddFavorite(ctx, property.Favorite{UserID: userID, PropertyID: propertyID})
}

// RemoveFavorite drops a saved listing.
func (s *Service) RemoveFavorite(ctx context.Context, userID, propertyID string) error {
	return s.favorites.RemoveFavorite(ctx, userID, propertyID)
}

// ListFavorites returns the user's saved listings, most recently saved first.
// Listings deleted since they were saved are skipped.
func (s *Service) ListFavorites(ctx context.Context, userID string) ([]property.Property, error) {
	favs, err := s.favorites.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]property.Property, 0, len(favs))
	for _, fav := range favs {
		p, err := s.store.GetProperty(ctx, fav.PropertyID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
