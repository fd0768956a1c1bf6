package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"waypost/internal/auth/models"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
	"waypost/pkg/platform/sentinel"
	"waypost/pkg/secrets"
)

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// RefreshTokenStore persists single-use refresh tokens.
type RefreshTokenStore interface {
	Create(ctx context.Context, record *models.RefreshTokenRecord) error
	Consume(ctx context.Context, token string, now time.Time) (*models.RefreshTokenRecord, error)
	RevokeByUser(ctx context.Context, userID id.UserID) error
}

// TokenGenerator signs access tokens.
type TokenGenerator interface {
	GenerateAccessToken(userID id.UserID, role id.Role, expiresIn time.Duration) (string, error)
}

// Service implements registration, login, refresh-token rotation and logout.
type Service struct {
	users           UserStore
	refreshTokens   RefreshTokenStore
	tokens          TokenGenerator
	logger          *slog.Logger
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func New(
	users UserStore,
	refreshTokens RefreshTokenStore,
	tokens TokenGenerator,
	logger *slog.Logger,
	accessTokenTTL, refreshTokenTTL time.Duration,
) *Service {
	return &Service{
		users:           users,
		refreshTokens:   refreshTokens,
		tokens:          tokens,
		logger:          logger,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// Register creates a USER account and logs it in. Admin accounts are
// provisioned out of band (cmd/seed), never through self-registration.
func (s *Service) Register(ctx context.Context, email, displayName, password string) (*models.User, *models.TokenPair, error) {
	if email == "" || password == "" {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	if displayName == "" {
		displayName = email
	}

	hash, err := secrets.Hash(password)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		ID:           id.NewUserID(),
		Email:        email,
		DisplayName:  displayName,
		Role:         id.RoleUser,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user, pair, nil
}

// Login verifies credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Same error as a wrong password so probes cannot enumerate accounts.
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued. Invalid, expired, revoked and replayed tokens all surface
// as unauthorized.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "refresh token is required")
	}

	record, err := s.refreshTokens.Consume(ctx, refreshToken, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
		case errors.Is(err, sentinel.ErrExpired):
			return nil, dErrors.New(dErrors.CodeUnauthorized, "refresh token expired")
		case errors.Is(err, sentinel.ErrRevoked), errors.Is(err, sentinel.ErrInvalidState):
			// Replay of a consumed token invalidates the whole family.
			if record != nil {
				if revokeErr := s.refreshTokens.RevokeByUser(ctx, record.UserID); revokeErr != nil {
					s.logger.ErrorContext(ctx, "failed to revoke token family after replay",
						"user_id", record.UserID.String(), "error", revokeErr)
				}
			}
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume refresh token")
		}
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes all outstanding refresh tokens for the user. Access tokens
// expire on their own.
func (s *Service) Logout(ctx context.Context, userID id.UserID) error {
	if err := s.refreshTokens.RevokeByUser(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke refresh tokens")
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", userID.String())
	return nil
}

// Me returns the authenticated user's account.
func (s *Service) Me(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	return user, nil
}

func (s *Service) issueTokens(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user.ID, user.Role, s.accessTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}

	refreshToken, err := secrets.GenerateToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}
	now := time.Now()
	record := &models.RefreshTokenRecord{
		Token:     refreshToken,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTokenTTL),
	}
	if err := s.refreshTokens.Create(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store refresh token")
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.accessTokenTTL.Seconds()),
	}, nil
}
