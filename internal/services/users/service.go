// Package users implements the user directory: registration, login,
// profiles, email confirmation and account deletion.
package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/boardgame-groups/internal/consistency"
	"github.com/mcoot/boardgame-groups/internal/dependencies/clock"
	"github.com/mcoot/boardgame-groups/internal/dependencies/idgen"
	"github.com/mcoot/boardgame-groups/internal/events"
	"github.com/mcoot/boardgame-groups/internal/mailer"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/resolve"
	"github.com/mcoot/boardgame-groups/internal/services/auth"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// Config holds configuration for the users service
type Config struct {
	// ValidationKeyTTL is how long a confirmation link stays valid
	ValidationKeyTTL time.Duration

	// PublicURL is the externally reachable base URL used in confirmation links
	PublicURL string
}

// DefaultConfig returns default users configuration
func DefaultConfig() Config {
	return Config{
		ValidationKeyTTL: 12 * time.Hour,
		PublicURL:        "http://localhost:8080",
	}
}

// Registration is the input to Register
type Registration struct {
	Username string
	Email    string
	Password string
}

// Session is an authenticated user and their bearer token
type Session struct {
	User  *model.User
	Token string
}

// Service manages user accounts
type Service struct {
	storage     storage.Storage
	auth        *auth.Service
	coordinator *consistency.Coordinator
	mailer      mailer.Mailer
	events      events.Publisher
	clock       clock.Clock
	ids         idgen.Generator
	logger      *slog.Logger
	cfg         Config
}

// New creates a new users Service
func New(
	storage storage.Storage,
	authService *auth.Service,
	coordinator *consistency.Coordinator,
	mail mailer.Mailer,
	publisher events.Publisher,
	clock clock.Clock,
	ids idgen.Generator,
	logger *slog.Logger,
	cfg Config,
) *Service {
	return &Service{
		storage:     storage,
		auth:        authService,
		coordinator: coordinator,
		mailer:      mail,
		events:      publisher,
		clock:       clock,
		ids:         ids,
		logger:      logger.With(slog.String("component", "users")),
		cfg:         cfg,
	}
}

// Register creates an account and signs the user in. When an email is given
// a confirmation link is sent; a failed send does not fail registration.
func (s *Service) Register(ctx context.Context, reg Registration) (*Session, error) {
	username, err := model.ValidateUsername(reg.Username)
	if err != nil {
		return nil, err
	}
	email, err := model.ValidateEmail(reg.Email)
	if err != nil {
		return nil, err
	}
	if err := model.ValidatePassword(reg.Password); err != nil {
		return nil, err
	}

	hash, err := s.auth.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &model.User{
		ID:           model.UserID(s.ids.NewID()),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Groups:       []model.GroupID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if user.Email != "" {
		if err := s.sendConfirmation(ctx, user); err != nil {
			s.logger.Warn("failed to send confirmation",
				slog.String("user_id", string(user.ID)),
				slog.Any("error", err))
		}
	}

	s.logger.Info("user registered", slog.String("user_id", string(user.ID)), slog.String("username", user.Username))
	return s.session(user)
}

// Login authenticates by username or email and issues a token
func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	user, err := s.auth.Authenticate(ctx, login, password)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// Get resolves a user by ID or username
func (s *Service) Get(ctx context.Context, ident string) (*model.User, error) {
	res, err := resolve.Entity(ctx, strings.TrimSpace(ident),
		func(ctx context.Context, key string) (*model.User, error) {
			return s.storage.GetUser(ctx, model.UserID(key))
		},
		func(ctx context.Context, key string) (*model.User, error) {
			return s.storage.GetUserByUsername(ctx, model.NormalizeUsername(key))
		},
		model.ErrUserNotFound,
	)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// List returns every user ordered by username
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	return s.storage.ListUsers(ctx)
}

// Update applies a partial profile update to actor. A username change is
// propagated to rosters and plays; an email change resets confirmation.
func (s *Service) Update(ctx context.Context, actor *model.User, upd model.UserUpdate) (*model.User, error) {
	var (
		username, email, hash string
		err                   error
	)
	if upd.Username != nil {
		if username, err = model.ValidateUsername(*upd.Username); err != nil {
			return nil, err
		}
	}
	if upd.Email != nil {
		if email, err = model.ValidateEmail(*upd.Email); err != nil {
			return nil, err
		}
	}
	if upd.Password != nil {
		if err := model.ValidatePassword(*upd.Password); err != nil {
			return nil, err
		}
		if hash, err = s.auth.HashPassword(*upd.Password); err != nil {
			return nil, err
		}
	}

	var oldUsername string
	emailChanged := false
	user, err := s.coordinator.MutateUser(ctx, actor.ID, func(u *model.User) error {
		oldUsername = u.Username
		emailChanged = false
		if upd.Username != nil {
			u.Username = username
		}
		if upd.Email != nil && email != u.Email {
			u.Email = email
			u.Confirmed = false
			emailChanged = true
		}
		if upd.Password != nil {
			u.PasswordHash = hash
		}
		if upd.Image != nil {
			u.Image = strings.TrimSpace(*upd.Image)
		}
		u.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if user.Username != oldUsername {
		s.coordinator.RenameUser(ctx, user, oldUsername)
		s.logger.Info("user renamed",
			slog.String("user_id", string(user.ID)),
			slog.String("from", oldUsername),
			slog.String("to", user.Username))
	}
	if emailChanged {
		if err := s.storage.DeleteValidationKeysForUser(ctx, user.ID); err != nil {
			s.logger.Warn("failed to drop stale validation keys", slog.String("user_id", string(user.ID)), slog.Any("error", err))
		}
		if user.Email != "" {
			if err := s.sendConfirmation(ctx, user); err != nil {
				s.logger.Warn("failed to send confirmation",
					slog.String("user_id", string(user.ID)),
					slog.Any("error", err))
			}
		}
	}
	return user, nil
}

// Delete removes actor's account, leaving every group it belonged to
func (s *Service) Delete(ctx context.Context, actor *model.User) (*consistency.UserRemoval, error) {
	user, err := s.storage.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	removal, err := s.coordinator.DeleteUser(ctx, user)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for _, g := range removal.Left {
		s.events.Publish(ctx, model.Event{
			Type:      model.EventMemberRemoved,
			Timestamp: now,
			GroupID:   g.ID,
			Actor:     user.Username,
			Payload:   model.MemberPayload{Username: user.Username, UserID: user.ID},
		})
	}
	for _, id := range removal.Deleted {
		s.events.Publish(ctx, model.Event{
			Type:      model.EventGroupDeleted,
			Timestamp: now,
			GroupID:   id,
			Actor:     user.Username,
		})
	}

	s.logger.Info("user deleted",
		slog.String("user_id", string(user.ID)),
		slog.Int("groups_left", len(removal.Left)),
		slog.Int("groups_deleted", len(removal.Deleted)))
	return removal, nil
}

// Confirm consumes a confirmation token and marks its user confirmed.
// Unknown and expired tokens are both ErrValidationKeyNotFound.
func (s *Service) Confirm(ctx context.Context, token string) (*model.User, error) {
	key, err := s.storage.GetValidationKey(ctx, token)
	if err != nil {
		return nil, err
	}
	if key.Expired(s.clock.Now()) {
		s.dropValidationKey(ctx, key)
		return nil, model.ErrValidationKeyNotFound
	}

	user, err := s.coordinator.MutateUser(ctx, key.UserID, func(u *model.User) error {
		if u.Confirmed {
			return consistency.ErrNoChange
		}
		u.Confirmed = true
		u.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			s.dropValidationKey(ctx, key)
			return nil, model.ErrValidationKeyNotFound
		}
		return nil, err
	}

	if err := s.storage.DeleteValidationKey(ctx, token); err != nil {
		return nil, err
	}
	return user, nil
}

// dropValidationKey removes a key that can no longer be used. Failure only
// leaves the key for the store's own expiry, so it is logged and ignored.
func (s *Service) dropValidationKey(ctx context.Context, key *model.ValidationKey) {
	if err := s.storage.DeleteValidationKey(ctx, key.Token); err != nil {
		s.logger.Warn("failed to delete unusable validation key",
			slog.String("user_id", string(key.UserID)),
			slog.Any("error", err))
	}
}

// ResendConfirmation replaces any pending confirmation for the user and
// sends a fresh link
func (s *Service) ResendConfirmation(ctx context.Context, ident string) error {
	user, err := s.Get(ctx, ident)
	if err != nil {
		return err
	}
	if user.Email == "" {
		return model.ErrInvalidEmail
	}
	if user.Confirmed {
		return model.ErrAlreadyConfirmed
	}
	return s.sendConfirmation(ctx, user)
}

func (s *Service) sendConfirmation(ctx context.Context, user *model.User) error {
	if err := s.storage.DeleteValidationKeysForUser(ctx, user.ID); err != nil {
		return err
	}

	now := s.clock.Now()
	key := &model.ValidationKey{
		Token:     s.ids.NewToken(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.ValidationKeyTTL),
	}
	if err := s.storage.SaveValidationKey(ctx, key); err != nil {
		return err
	}

	return s.mailer.SendConfirmation(ctx, mailer.Confirmation{
		To:        user.Email,
		Username:  user.Username,
		Link:      strings.TrimRight(s.cfg.PublicURL, "/") + "/api/v1/users/confirm/" + key.Token,
		ExpiresAt: key.ExpiresAt,
	})
}

func (s *Service) session(user *model.User) (*Session, error) {
	token, err := s.auth.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}
