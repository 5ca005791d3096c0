package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/domain/user"
	"github.com/estatehub/marketplace/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PropertyStore = (*Store)(nil)
var _ storage.FavoriteStore = (*Store)(nil)
var _ storage.AuctionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn with the postgres driver and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// DB exposes the underlying handle for migrations and shutdown.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// mapErr translates driver errors into storage sentinels.
func mapErr(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %s: %w", kind, id, storage.ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s %s is still referenced: %w", kind, id, storage.ErrConflict)
		}
	}
	return err
}

func requireRows(kind, id string, result sql.Result) error {
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

// --- UserStore --------------------------------------------------------------

const userColumns = `id, email, name, phone, role, password_hash, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(u.Email)
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :name, :phone, :role, :password_hash, :created_at, :updated_at)
	`, u)
	if err != nil {
		return user.User{}, mapErr("user", u.Email, err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.Email = strings.ToLower(u.Email)
	u.UpdatedAt = time.Now().UTC()

	var createdAt time.Time
	err := s.db.QueryRowxContext(ctx, `
		UPDATE users
		SET email = $2, name = $3, phone = $4, role = $5, password_hash = $6, updated_at = $7
		WHERE id = $1
		RETURNING created_at
	`, u.ID, u.Email, u.Name, u.Phone, u.Role, u.PasswordHash, u.UpdatedAt).Scan(&createdAt)
	if err != nil {
		return user.User{}, mapErr("user", u.ID, err)
	}
	u.CreatedAt = createdAt
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return user.User{}, mapErr("user", id, err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	if err != nil {
		return user.User{}, mapErr("user", email, err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	if err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at`); err != nil {
		return nil, err
	}
	return users, nil
}

// --- FavoriteStore ----------------------------------------------------------

type favoriteRow struct {
	UserID     string    `db:"user_id"`
	PropertyID string    `db:"property_id"`
	CreatedAt  time.Time `db:"created_at"`
}

func (s *Store) AddFavorite(ctx context.Context, fav property.Favorite) (property.Favorite, error) {
	fav.CreatedAt = time.Now().UTC()
	var row favoriteRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO favorites (user_id, property_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, property_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, property_id, created_at
	`, fav.UserID, fav.PropertyID, fav.CreatedAt)
	if err != nil {
		return property.Favorite{}, mapErr("favorite", fav.PropertyID, err)
	}
	return property.Favorite(row), nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, propertyID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = $1 AND property_id = $2`, userID, propertyID)
	if err != nil {
		return err
	}
	return requireRows("favorite", propertyID, result)
}

func (s *Store) ListFavorites(ctx context.Context, userID string) ([]property.Favorite, error) {
	var rows []favoriteRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, property_id, created_at
		FROM favorites
		WHERE user_id = $1
		ORDER BY created_at DESC, property_id
	`, userID)
	if err != nil {
		return nil, err
	}
	result := make([]property.Favorite, 0, len(rows))
	for _, row := range rows {
		result = append(result, property.Favorite(row))
	}
	return result, nil
}
