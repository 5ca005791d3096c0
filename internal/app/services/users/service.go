package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/user"
	"github.com/estatehub/marketplace/internal/app/storage"
	"github.com/estatehub/marketplace/pkg/logger"
)

const minPasswordLength = 8

// Session is returned by Register and Login.
type Session struct {
	User      user.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service manages accounts and bearer tokens.
type Service struct {
	store      storage.UserStore
	tokens     *tokenIssuer
	bcryptCost int
	log        *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, cfg TokenConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{
		store:      store,
		tokens:     newTokenIssuer(cfg),
		bcryptCost: bcrypt.DefaultCost,
		log:        log,
	}
}

// Descriptor advertises the service.
func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "users",
		Domain:       "identity",
		Layer:        service.LayerDomain,
		Capabilities: []string{"register", "login", "jwt"},
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *Service) WithBcryptCost(cost int) *Service {
	s.bcryptCost = cost
	return s
}

// Register creates an account and signs the user in.
func (s *Service) Register(ctx context.Context, email, name, password string, role user.Role) (Session, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return Session{}, service.Invalid("a valid email is required")
	}
	if name == "" {
		return Session{}, service.Invalid("name is required")
	}
	if len(password) < minPasswordLength {
		return Session{}, service.Invalid("password must be at least %d characters", minPasswordLength)
	}
	if role == "" {
		role = user.RoleUser
	}
	if !role.Valid() {
		return Session{}, service.Invalid("unknown role %q", role)
	}
	if role == user.RoleAdmin {
		return Session{}, fmt.Errorf("%w: admin role cannot be self-assigned", service.ErrForbidden)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return Session{}, fmt.Errorf("email %s already registered: %w", email, storage.ErrConflict)
		}
		return Session{}, err
	}

	s.log.WithField("user_id", created.ID).WithField("role", created.Role).Info("user registered")
	return s.session(created)
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, service.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.WithField("user_id", u.ID).Debug("login rejected")
		return Session{}, service.ErrInvalidCredentials
	}
	return s.session(u)
}

// Authenticate validates a bearer token.
func (s *Service) Authenticate(token string) (Claims, error) {
	return s.tokens.parse(strings.TrimSpace(token))
}

// Get returns a user by id with the effective role applied.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Role = s.tokens.roleFor(u)
	return u, nil
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Role = s.tokens.roleFor(users[i])
	}
	return users, nil
}

// UpdateProfile changes the display name and phone number.
func (s *Service) UpdateProfile(ctx context.Context, id string, name, phone *string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return user.User{}, service.Invalid("name cannot be empty")
		}
		u.Name = trimmed
	}
	if phone != nil {
		u.Phone = strings.TrimSpace(*phone)
	}
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	updated.Role = s.tokens.roleFor(updated)
	return updated, nil
}

func (s *Service) session(u user.User) (Session, error) {
	token, expires, err := s.tokens.issue(u)
	if err != nil {
		return Session{}, err
	}
	u.Role = s.tokens.roleFor(u)
	return Session{User: u, Token: token, ExpiresAt: expires}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
