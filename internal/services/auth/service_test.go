package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/boardgame-groups/internal/dependencies/mocks"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/storage/memory"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	ids     *mocks.MockIDGen
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.ids = mocks.NewMockIDGen()
	s.service = New(s.storage, s.clock, s.ids, s.config())
	s.ctx = context.Background()
}

func (s *ServiceSuite) config() Config {
	cfg := DefaultConfig()
	cfg.Secret = []byte("test-secret")
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

func (s *ServiceSuite) createUser(username, email, password string) *model.User {
	hash, err := s.service.HashPassword(password)
	s.Require().NoError(err)
	user := &model.User{
		ID:           model.UserID(s.ids.NewID()),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Groups:       []model.GroupID{},
		CreatedAt:    s.clock.Now(),
	}
	s.Require().NoError(s.storage.CreateUser(s.ctx, user))
	return user
}

// HashPassword tests

func (s *ServiceSuite) TestHashPasswordIsNotPlaintext() {
	hash, err := s.service.HashPassword("password123")
	s.Require().NoError(err)

	s.NotEqual("password123", hash)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(hash), []byte("password123")))
}

// Authenticate tests

func (s *ServiceSuite) TestAuthenticateByUsername() {
	created := s.createUser("alice", "alice@example.com", "password123")

	user, err := s.service.Authenticate(s.ctx, "alice", "password123")
	s.Require().NoError(err)
	s.Equal(created.ID, user.ID)
}

func (s *ServiceSuite) TestAuthenticateByEmail() {
	created := s.createUser("alice", "alice@example.com", "password123")

	user, err := s.service.Authenticate(s.ctx, "Alice@Example.com", "password123")
	s.Require().NoError(err)
	s.Equal(created.ID, user.ID)
}

func (s *ServiceSuite) TestAuthenticateUsernameIsCaseInsensitive() {
	s.createUser("alice", "", "password123")

	_, err := s.service.Authenticate(s.ctx, "  ALICE ", "password123")
	s.NoError(err)
}

func (s *ServiceSuite) TestAuthenticateWrongPasswordFails() {
	s.createUser("alice", "", "password123")

	_, err := s.service.Authenticate(s.ctx, "alice", "wrongpassword")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestAuthenticateUnknownUserFailsTheSameWay() {
	s.createUser("alice", "", "password123")

	_, unknownErr := s.service.Authenticate(s.ctx, "bob", "password123")
	_, wrongErr := s.service.Authenticate(s.ctx, "alice", "wrongpassword")

	s.ErrorIs(unknownErr, ErrInvalidCredentials)
	s.Equal(wrongErr.Error(), unknownErr.Error())
}

func (s *ServiceSuite) TestAuthenticateUnconfirmedAllowedByDefault() {
	s.createUser("alice", "alice@example.com", "password123")

	_, err := s.service.Authenticate(s.ctx, "alice", "password123")
	s.NoError(err)
}

func (s *ServiceSuite) TestAuthenticateRequiresConfirmationWhenConfigured() {
	cfg := s.config()
	cfg.RequireConfirmed = true
	s.service = New(s.storage, s.clock, s.ids, cfg)
	s.createUser("alice", "alice@example.com", "password123")

	_, err := s.service.Authenticate(s.ctx, "alice", "password123")
	s.ErrorIs(err, ErrEmailNotConfirmed)
}

func (s *ServiceSuite) TestAuthenticateWithoutEmailSkipsConfirmation() {
	cfg := s.config()
	cfg.RequireConfirmed = true
	s.service = New(s.storage, s.clock, s.ids, cfg)
	s.createUser("alice", "", "password123")

	_, err := s.service.Authenticate(s.ctx, "alice", "password123")
	s.NoError(err)
}

// Token tests

func (s *ServiceSuite) TestIssuedTokenParses() {
	user := s.createUser("alice", "", "password123")

	token, err := s.service.IssueToken(user)
	s.Require().NoError(err)

	claims, err := s.service.ParseToken(token)
	s.Require().NoError(err)
	s.Equal(string(user.ID), claims.Subject)
	s.Equal("alice", claims.Username)
	s.Equal("token-1", claims.ID)
	s.Equal(s.clock.Now().Add(60*24*time.Hour), claims.ExpiresAt.Time)
}

func (s *ServiceSuite) TestTokenExpires() {
	user := s.createUser("alice", "", "password123")
	token, _ := s.service.IssueToken(user)

	s.clock.Advance(60*24*time.Hour + time.Second)

	_, err := s.service.ParseToken(token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestTokenWithWrongSecretRejected() {
	user := s.createUser("alice", "", "password123")
	cfg := s.config()
	cfg.Secret = []byte("other-secret")
	other := New(s.storage, s.clock, s.ids, cfg)
	token, _ := other.IssueToken(user)

	_, err := s.service.ParseToken(token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestTokenWithOtherAlgorithmRejected() {
	claims := Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultConfig().Issuer,
			Subject:   "000000000000000000000001",
			ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	s.Require().NoError(err)

	_, err = s.service.ParseToken(token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestGarbageTokenRejected() {
	_, err := s.service.ParseToken("not-a-token")
	s.ErrorIs(err, ErrInvalidToken)
}

// UserFromToken tests

func (s *ServiceSuite) TestUserFromTokenLoadsCurrentUser() {
	user := s.createUser("alice", "", "password123")
	token, _ := s.service.IssueToken(user)

	loaded, err := s.service.UserFromToken(s.ctx, token)
	s.Require().NoError(err)
	s.Equal(user.ID, loaded.ID)
}

func (s *ServiceSuite) TestUserFromTokenRejectsDeletedUser() {
	user := s.createUser("alice", "", "password123")
	token, _ := s.service.IssueToken(user)
	s.Require().NoError(s.storage.DeleteUser(s.ctx, user.ID))

	_, err := s.service.UserFromToken(s.ctx, token)
	s.ErrorIs(err, ErrInvalidToken)
}
