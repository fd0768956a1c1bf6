//go:build integration

package refreshtoken_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"waypost/internal/auth/models"
	refreshtoken "waypost/internal/auth/store/refresh-token"
	id "waypost/pkg/domain"
	"waypost/pkg/platform/sentinel"
	"waypost/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *refreshtoken.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = refreshtoken.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) newRecord(userID id.UserID) *models.RefreshTokenRecord {
	now := time.Now()
	return &models.RefreshTokenRecord{
		Token:     "tok_" + id.NewUserID().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func (s *RedisStoreSuite) TestConsume_IsSingleUse() {
	ctx := context.Background()
	record := s.newRecord(id.NewUserID())
	s.Require().NoError(s.store.Create(ctx, record))

	got, err := s.store.Consume(ctx, record.Token, time.Now())
	s.Require().NoError(err)
	s.Equal(record.UserID, got.UserID)

	// The claimed token is gone; a replay sees not-found.
	_, err = s.store.Consume(ctx, record.Token, time.Now())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestConsume_ConcurrentClaimsHaveOneWinner() {
	ctx := context.Background()
	record := s.newRecord(id.NewUserID())
	s.Require().NoError(s.store.Create(ctx, record))

	const claimers = 8
	errs := make(chan error, claimers)
	for i := 0; i < claimers; i++ {
		go func() {
			_, err := s.store.Consume(ctx, record.Token, time.Now())
			errs <- err
		}()
	}

	winners := 0
	for i := 0; i < claimers; i++ {
		if err := <-errs; err == nil {
			winners++
		}
	}
	s.Equal(1, winners, "the claim script must admit exactly one consumer")
}

func (s *RedisStoreSuite) TestRevokeByUser() {
	ctx := context.Background()
	userID := id.NewUserID()
	first := s.newRecord(userID)
	second := s.newRecord(userID)
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, second))

	s.Require().NoError(s.store.RevokeByUser(ctx, userID))

	_, err := s.store.Consume(ctx, first.Token, time.Now())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Consume(ctx, second.Token, time.Now())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
