package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/ligandnet/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/ligandnet/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	client *Client
	mock   redismock.ClientMock
	cache  Cache
	log    logging.Logger
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.log = logging.NewNopLogger()

	s.client = &Client{
		rdb:    db,
		config: &RedisConfig{},
		logger: s.log,
	}

	s.cache = NewRedisCache(s.client, s.log, WithPrefix("test:"), WithJitter(0))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type cachedScore struct {
	Score   float64 `json:"score"`
	MCSSize int     `json:"mcs_size"`
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	val := cachedScore{Score: 0.904837418, MCSSize: 6}
	bytes, _ := json.Marshal(val)

	s.mock.ExpectGet("test:key1").SetVal(string(bytes))

	var dest cachedScore
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), val, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:key1").RedisNil()

	var dest cachedScore
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.Equal(s.T(), ErrCacheMiss, err)
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeNotFound))
}

func (s *CacheTestSuite) TestGet_BackendError() {
	s.mock.ExpectGet("test:key1").SetErr(assert.AnError)

	var dest cachedScore
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_CorruptValue() {
	s.mock.ExpectGet("test:key1").SetVal("{not json")

	var dest cachedScore
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestSet_Success() {
	val := cachedScore{Score: 0.5, MCSSize: 4}
	bytes, _ := json.Marshal(val)
	s.mock.ExpectSet("test:key1", bytes, time.Minute).SetVal("OK")

	err := s.cache.Set(context.Background(), "key1", val, time.Minute)
	assert.NoError(s.T(), err)
}

func (s *CacheTestSuite) TestSet_DefaultTTL() {
	val := cachedScore{Score: 1}
	bytes, _ := json.Marshal(val)
	s.mock.ExpectSet("test:key1", bytes, 24*time.Hour).SetVal("OK")

	assert.NoError(s.T(), s.cache.Set(context.Background(), "key1", val, 0))
}

func (s *CacheTestSuite) TestDelete_Success() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)

	err := s.cache.Delete(context.Background(), "k1", "k2")
	assert.NoError(s.T(), err)
}

func (s *CacheTestSuite) TestExists_True() {
	s.mock.ExpectExists("test:k1").SetVal(1)

	exists, err := s.cache.Exists(context.Background(), "k1")
	assert.NoError(s.T(), err)
	assert.True(s.T(), exists)
}

func (s *CacheTestSuite) TestGetOrSet_Hit() {
	val := cachedScore{Score: 0.7, MCSSize: 9}
	bytes, _ := json.Marshal(val)

	s.mock.ExpectGet("test:key1").SetVal(string(bytes))

	loaderCalled := false
	loader := func(ctx context.Context) (interface{}, error) {
		loaderCalled = true
		return val, nil
	}

	var dest cachedScore
	err := s.cache.GetOrSet(context.Background(), "key1", &dest, time.Minute, loader)

	assert.NoError(s.T(), err)
	assert.False(s.T(), loaderCalled)
	assert.Equal(s.T(), val, dest)
}

func (s *CacheTestSuite) TestGetOrSet_MissLoadsAndStores() {
	val := cachedScore{Score: 0.25, MCSSize: 3}
	bytes, _ := json.Marshal(val)

	s.mock.ExpectGet("test:key1").RedisNil()
	s.mock.ExpectSet("test:key1", bytes, time.Minute).SetVal("OK")

	var dest cachedScore
	err := s.cache.GetOrSet(context.Background(), "key1", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		return val, nil
	})

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), val, dest)
}

func (s *CacheTestSuite) TestGetOrSet_LoaderError() {
	s.mock.ExpectGet("test:key1").RedisNil()

	var dest cachedScore
	err := s.cache.GetOrSet(context.Background(), "key1", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		return nil, assert.AnError
	})

	assert.ErrorIs(s.T(), err, assert.AnError)
}

func (s *CacheTestSuite) TestDeleteByPrefix() {
	s.mock.ExpectScan(0, "test:cfg1*", 100).SetVal([]string{"test:cfg1:a", "test:cfg1:b"}, 0)
	s.mock.ExpectDel("test:cfg1:a", "test:cfg1:b").SetVal(2)

	n, err := s.cache.DeleteByPrefix(context.Background(), "cfg1")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), n)
}

func (s *CacheTestSuite) TestPing() {
	s.mock.ExpectPing().SetVal("PONG")
	assert.NoError(s.T(), s.cache.Ping(context.Background()))
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}
