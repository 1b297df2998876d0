package broadcast_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/architeacher/gpstracker/internal/adapters/broadcast"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/infrastructure"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/stretchr/testify/suite"
)

const receiveTimeout = 2 * time.Second

type RedisBroadcasterTestSuite struct {
	suite.Suite

	miniRedis   *miniredis.Miniredis
	keydbClient *infrastructure.KeydbClient
	broadcaster *broadcast.RedisBroadcaster
}

func TestRedisBroadcasterTestSuite(t *testing.T) {
	t.Parallel()

	suite.Run(t, new(RedisBroadcasterTestSuite))
}

func (s *RedisBroadcasterTestSuite) SetupTest() {
	s.miniRedis = miniredis.RunT(s.T())
	s.keydbClient = infrastructure.NewKeyDBClient(config.Cache{
		Address:     s.miniRedis.Addr(),
		PoolSize:    5,
		DialTimeout: time.Second,
	}, logger.NewTestLogger())
	s.broadcaster = broadcast.NewRedisBroadcaster(s.keydbClient, "gpstracker", 4, logger.NewTestLogger())
}

func (s *RedisBroadcasterTestSuite) TearDownTest() {
	_ = s.keydbClient.Close()
}

func (s *RedisBroadcasterTestSuite) TestPublishReachesSubscriber() {
	ctx := s.T().Context()

	sub, err := s.broadcaster.Subscribe(ctx, model.LocationTopic(7))
	s.Require().NoError(err)
	defer sub.Close()

	s.Require().NoError(s.broadcaster.Publish(ctx, model.LocationTopic(7), []byte(`{"latitude":40.7128}`)))

	select {
	case payload := <-sub.C():
		s.Require().JSONEq(`{"latitude":40.7128}`, string(payload))
	case <-time.After(receiveTimeout):
		s.Fail("update not received")
	}
}

func (s *RedisBroadcasterTestSuite) TestTopicsAreIsolated() {
	ctx := s.T().Context()

	sub, err := s.broadcaster.Subscribe(ctx, model.AlertTopic(7))
	s.Require().NoError(err)
	defer sub.Close()

	s.Require().NoError(s.broadcaster.Publish(ctx, model.AlertTopic(8), []byte("other device")))
	s.Require().NoError(s.broadcaster.Publish(ctx, model.AlertTopic(7), []byte("mine")))

	select {
	case payload := <-sub.C():
		s.Require().Equal("mine", string(payload))
	case <-time.After(receiveTimeout):
		s.Fail("update not received")
	}
}

func (s *RedisBroadcasterTestSuite) TestChannelsArePrefixed() {
	ctx := s.T().Context()

	sub, err := s.broadcaster.Subscribe(ctx, model.EventTopic(7))
	s.Require().NoError(err)
	defer sub.Close()

	s.Require().Equal(1, s.miniRedis.PubSubNumSub("gpstracker:events/7")["gpstracker:events/7"])
}

func (s *RedisBroadcasterTestSuite) TestCloseEndsSubscription() {
	sub, err := s.broadcaster.Subscribe(s.T().Context(), model.LocationTopic(7))
	s.Require().NoError(err)

	s.Require().NoError(sub.Close())
	s.Require().NoError(sub.Close())

	s.Require().Eventually(func() bool {
		_, open := <-sub.C()

		return !open
	}, receiveTimeout, 10*time.Millisecond)
}

func (s *RedisBroadcasterTestSuite) TestPublishWhenUnavailable() {
	s.miniRedis.Close()

	err := s.broadcaster.Publish(s.T().Context(), model.LocationTopic(7), []byte("x"))
	s.Require().ErrorIs(err, model.ErrBroadcastFailed)
}
