package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
)

const tokenTTL = time.Hour

type Store interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	Get(ctx context.Context, id string) (User, error)
}

type Service struct {
	Store  Store
	Secret []byte
}

// Claims carried in the access token: user id in Subject plus the admin
// flag, so request handling doesn't need a user lookup.
type Claims struct {
	Admin bool `json:"adm"`
	jwt.RegisteredClaims
}

func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, "", apperr.Validation("email", "invalid email address")
	}
	if len(password) < 8 {
		return User{}, "", apperr.Validation("password", "must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", err
	}
	u := User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
	}
	if err := s.Store.Create(ctx, &u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return User{}, "", apperr.Validation("email", "already registered")
		}
		return User{}, "", err
	}
	tok, err := s.issueToken(&u)
	return u, tok, err
}

func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Store.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return User{}, "", apperr.ErrUnauthorized
	}
	if err != nil {
		return User{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, "", apperr.ErrUnauthorized
	}
	tok, err := s.issueToken(&u)
	return u, tok, err
}

func (s *Service) issueToken(u *User) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// ParseToken validates the signature and expiry and returns the caller's
// identity.
func (s *Service) ParseToken(tokenString string) (userID string, isAdmin bool, err error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.Secret, nil
	})
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", false, apperr.ErrUnauthorized
	}
	return claims.Subject, claims.Admin, nil
}
