//go:build integration

package forms_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/okian/scoutnotes/internal/adapters/forms"
	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/internal/testutil/containers"
	"github.com/okian/scoutnotes/pkg/logger"
)

type PostgresFormsSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	provider *forms.Postgres
}

func TestPostgresFormsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresFormsSuite))
}

func (s *PostgresFormsSuite) SetupSuite() {
	s.Require().NoError(logger.Init())
	s.postgres = containers.NewPostgresContainer(s.T())
	s.provider = forms.NewPostgres(s.postgres.Pool)
	s.Require().NoError(s.provider.EnsureSchema(context.Background()))
}

func (s *PostgresFormsSuite) TearDownSuite() {
	s.postgres.Terminate(context.Background())
}

func (s *PostgresFormsSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "evaluation_forms"))
}

func (s *PostgresFormsSuite) TestSeedThenRead() {
	ctx := context.Background()

	n, err := s.provider.Seed(ctx, forms.DefaultCatalog().Forms())
	s.Require().NoError(err)
	s.Equal(2, n)

	// second seed is a no-op
	n, err = s.provider.Seed(ctx, forms.DefaultCatalog().Forms())
	s.Require().NoError(err)
	s.Equal(0, n)

	form, err := s.provider.ActiveForm(ctx, "football")
	s.Require().NoError(err)
	s.Equal("football-2026.1", form.FormID)
}

func (s *PostgresFormsSuite) TestPublishReplacesActive() {
	ctx := context.Background()
	fb, err := forms.DefaultCatalog().ActiveForm(ctx, "football")
	s.Require().NoError(err)
	s.Require().NoError(s.provider.Publish(ctx, fb))

	next := fb
	next.FormID = "football-2026.2"
	next.Title = "Football v2"
	s.Require().NoError(s.provider.Publish(ctx, next))

	form, err := s.provider.ActiveForm(ctx, "football")
	s.Require().NoError(err)
	s.Equal("football-2026.2", form.FormID)
}

func (s *PostgresFormsSuite) TestMissingSport() {
	_, err := s.provider.ActiveForm(context.Background(), "curling")
	s.True(errors.Is(err, rubric.ErrNotConfigured))
}

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.Require().NoError(logger.Init())
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisCacheSuite) TearDownSuite() {
	s.redis.Terminate(context.Background())
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestReadThrough() {
	ctx := context.Background()
	var calls atomic.Int32
	catalog := forms.DefaultCatalog()
	source := forms.ProviderFunc(func(ctx context.Context, sport string) (rubric.Form, error) {
		calls.Add(1)
		return catalog.ActiveForm(ctx, sport)
	})
	cache := forms.NewRedisCache(s.redis.Client, source, forms.WithTTL(time.Minute))

	first, err := cache.ActiveForm(ctx, "basketball")
	s.Require().NoError(err)
	second, err := cache.ActiveForm(ctx, "basketball")
	s.Require().NoError(err)

	s.Equal(int32(1), calls.Load())
	s.Equal(first.FormID, second.FormID)

	ttl, err := s.redis.Client.TTL(ctx, forms.KeyPrefix+"basketball").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Require().NoError(cache.Invalidate(ctx, "basketball"))
	_, err = cache.ActiveForm(ctx, "basketball")
	s.Require().NoError(err)
	s.Equal(int32(2), calls.Load())
}

func (s *RedisCacheSuite) TestCorruptEntryFallsThrough() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, forms.KeyPrefix+"football", "{not json", time.Minute).Err())

	cache := forms.NewRedisCache(s.redis.Client, forms.DefaultCatalog())
	form, err := cache.ActiveForm(ctx, "football")
	s.Require().NoError(err)
	s.Equal("football", form.Sport)
}

func (s *RedisCacheSuite) TestMissesAreNotCached() {
	ctx := context.Background()
	cache := forms.NewRedisCache(s.redis.Client, forms.DefaultCatalog())

	_, err := cache.ActiveForm(ctx, "curling")
	s.True(errors.Is(err, rubric.ErrNotConfigured))

	n, err := s.redis.Client.Exists(ctx, forms.KeyPrefix+"curling").Result()
	s.Require().NoError(err)
	s.Equal(int64(0), n)
}
