package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	refreshtoken "waypost/internal/auth/store/refresh-token"
	userstore "waypost/internal/auth/store/user"
	jwttoken "waypost/internal/jwt_token"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	users   *userstore.InMemoryStore
	refresh *refreshtoken.InMemoryStore
	svc     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.users = userstore.New()
	s.refresh = refreshtoken.New()
	tokens := jwttoken.New("test-signing-key", "waypost-test", "waypost")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = New(s.users, s.refresh, tokens, logger, 15*time.Minute, 24*time.Hour)
}

func (s *ServiceSuite) TestRegister_CreatesUserAndLogsIn() {
	user, pair, err := s.svc.Register(context.Background(), "ada@example.com", "Ada", "s3cret-pass")
	s.Require().NoError(err)

	s.Equal(id.RoleUser, user.Role, "self-registration never grants admin")
	s.Equal("ada@example.com", user.Email)
	s.NotEmpty(pair.AccessToken)
	s.NotEmpty(pair.RefreshToken)
	s.Equal("Bearer", pair.TokenType)
}

func (s *ServiceSuite) TestRegister_DuplicateEmail() {
	_, _, err := s.svc.Register(context.Background(), "ada@example.com", "Ada", "s3cret-pass")
	s.Require().NoError(err)

	_, _, err = s.svc.Register(context.Background(), "ada@example.com", "Other", "other-pass")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRegister_RequiresEmailAndPassword() {
	_, _, err := s.svc.Register(context.Background(), "", "", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestLogin_UniformFailureMessage() {
	_, _, err := s.svc.Register(context.Background(), "ada@example.com", "Ada", "s3cret-pass")
	s.Require().NoError(err)

	wrongPassword := s.loginErr("ada@example.com", "nope")
	unknownUser := s.loginErr("ghost@example.com", "nope")

	s.True(dErrors.HasCode(wrongPassword, dErrors.CodeUnauthorized))
	s.True(dErrors.HasCode(unknownUser, dErrors.CodeUnauthorized))
	s.Equal(wrongPassword.Error(), unknownUser.Error(),
		"account probes must be indistinguishable from bad passwords")
}

func (s *ServiceSuite) loginErr(email, password string) error {
	_, err := s.svc.Login(context.Background(), email, password)
	s.Require().Error(err)
	return err
}

func (s *ServiceSuite) TestRefresh_RotatesToken() {
	_, pair, err := s.svc.Register(context.Background(), "ada@example.com", "Ada", "s3cret-pass")
	s.Require().NoError(err)

	next, err := s.svc.Refresh(context.Background(), pair.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(pair.RefreshToken, next.RefreshToken)
	s.NotEmpty(next.AccessToken)
}

func (s *ServiceSuite) TestRefresh_ReplayRevokesFamily() {
	ctx := context.Background()
	_, pair, err := s.svc.Register(ctx, "ada@example.com", "Ada", "s3cret-pass")
	s.Require().NoError(err)

	next, err := s.svc.Refresh(ctx, pair.RefreshToken)
	s.Require().NoError(err)

	// Replaying the consumed token fails and burns the rotated one too.
	_, err = s.svc.Refresh(ctx, pair.RefreshToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.svc.Refresh(ctx, next.RefreshToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRefresh_UnknownToken() {
	_, err := s.svc.Refresh(context.Background(), "never-issued")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestLogout_RevokesOutstandingTokens() {
	ctx := context.Background()
	user, pair, err := s.svc.Register(ctx, "ada@example.com", "Ada", "s3cret-pass")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Logout(ctx, user.ID))

	_, err = s.svc.Refresh(ctx, pair.RefreshToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestMe() {
	ctx := context.Background()
	user, _, err := s.svc.Register(ctx, "ada@example.com", "Ada", "s3cret-pass")
	s.Require().NoError(err)

	got, err := s.svc.Me(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(user.ID, got.ID)

	_, err = s.svc.Me(ctx, id.NewUserID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
