package users

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/user"
)

// TokenConfig controls issued bearer tokens.
type TokenConfig struct {
	Secret   []byte
	TTL      time.Duration
	Issuer   string
	AdminIDs []string
}

// Claims identify the caller behind a bearer token.
type Claims struct {
	UserID string    `json:"uid"`
	Email  string    `json:"email,omitempty"`
	Role   user.Role `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims carry the admin role.
func (c Claims) IsAdmin() bool {
	return c.Role == user.RoleAdmin
}

// Actor converts the claims for service calls.
func (c Claims) Actor() service.Actor {
	return service.Actor{UserID: c.UserID, Role: c.Role}
}

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	admins map[string]struct{}
	now    func() time.Time
}

func newTokenIssuer(cfg TokenConfig) *tokenIssuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "estatehub"
	}
	admins := make(map[string]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		if id != "" {
			admins[id] = struct{}{}
		}
	}
	return &tokenIssuer{secret: cfg.Secret, ttl: ttl, issuer: issuer, admins: admins, now: time.Now}
}

func (t *tokenIssuer) roleFor(u user.User) user.Role {
	if _, ok := t.admins[u.ID]; ok {
		return user.RoleAdmin
	}
	return u.Role
}

func (t *tokenIssuer) issue(u user.User) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   t.roleFor(u),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

func (t *tokenIssuer) parse(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", service.ErrUnauthorized, err)
	}
	if !token.Valid || claims.UserID == "" {
		return Claims{}, fmt.Errorf("%w: invalid token", service.ErrUnauthorized)
	}
	if !claims.Role.Valid() {
		return Claims{}, errors.Join(service.ErrUnauthorized, fmt.Errorf("unknown role %q", claims.Role))
	}
	return claims, nil
}
