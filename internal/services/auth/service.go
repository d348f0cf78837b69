package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/boardgame-groups/internal/dependencies/clock"
	"github.com/mcoot/boardgame-groups/internal/dependencies/idgen"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailNotConfirmed  = errors.New("email address has not been confirmed")
)

// Claims are the JWT claims carried by a bearer token. Subject holds the
// user ID.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service handles password hashing, credential checks and bearer tokens
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	ids     idgen.Generator
	cfg     Config

	dummyOnce sync.Once
	dummyHash []byte
}

// Config holds configuration for the auth service
type Config struct {
	// Secret signs and verifies tokens (HS256)
	Secret []byte

	// TokenTTL is how long an issued token stays valid
	TokenTTL time.Duration

	// Issuer is written to and required in every token
	Issuer string

	// RequireConfirmed rejects logins for users with an unconfirmed email
	RequireConfirmed bool

	// BcryptCost is the bcrypt work factor for new hashes
	BcryptCost int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		TokenTTL:   60 * 24 * time.Hour,
		Issuer:     "boardgame-groups",
		BcryptCost: bcrypt.DefaultCost,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, ids idgen.Generator, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaults.Issuer
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}
	return &Service{
		storage: storage,
		clock:   clock,
		ids:     ids,
		cfg:     cfg,
	}
}

// HashPassword returns the bcrypt hash of password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticate checks a login (username or email) and password. Unknown
// users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))

	var (
		user *model.User
		err  error
	)
	if model.LooksLikeEmail(login) {
		user, err = s.storage.GetUserByEmail(ctx, login)
	} else {
		user, err = s.storage.GetUserByUsername(ctx, model.NormalizeUsername(login))
	}
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			// Burn the same bcrypt time as a real check
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if s.cfg.RequireConfirmed && user.Email != "" && !user.Confirmed {
		return nil, ErrEmailNotConfirmed
	}
	return user, nil
}

// IssueToken signs a bearer token for user
func (s *Service) IssueToken(user *model.User) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   string(user.ID),
			ID:        s.ids.NewToken(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

// ParseToken verifies a bearer token and returns its claims
func (s *Service) ParseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{},
		func(t *jwt.Token) (any, error) { return s.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserFromToken verifies a token and loads its user. Tokens of deleted
// users are rejected.
func (s *Service) UserFromToken(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.storage.GetUser(ctx, model.UserID(claims.Subject))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cfg.BcryptCost)
	})
	return s.dummyHash
}
