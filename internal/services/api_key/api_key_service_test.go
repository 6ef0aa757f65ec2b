package api_key

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/onegreenvn/assign-services-backend/internal/database/dbtest"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

type APIKeyServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	clock   *testclock.Clock
	service *Service
	ctx     context.Context
}

func (s *APIKeyServiceTestSuite) SetupTest() {
	s.db = dbtest.Open(s.T())
	s.clock = testclock.NewClock(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	s.service = NewService(s.db, s.clock)
	s.ctx = context.Background()

	dbtest.CreateUser(s.T(), s.db, 1, "system", true)
}

func (s *APIKeyServiceTestSuite) TestGenerateStoresOnlyHash() {
	key, apiKey, err := s.service.GenerateAPIKey(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(key, 64)
	s.Equal(key[:prefixLength], apiKey.Prefix)

	var stored models.APIKey
	s.Require().NoError(s.db.First(&stored, "user_id = ?", 1).Error)
	s.NotEqual(key, stored.KeyHash)
	s.Equal(hashKey(key), stored.KeyHash)
}

func (s *APIKeyServiceTestSuite) TestGenerateReplacesPreviousKey() {
	first, _, err := s.service.GenerateAPIKey(s.ctx, 1)
	s.Require().NoError(err)
	second, _, err := s.service.GenerateAPIKey(s.ctx, 1)
	s.Require().NoError(err)
	s.NotEqual(first, second)

	_, err = s.service.ValidateAPIKey(s.ctx, first)
	s.ErrorIs(err, ErrInvalidAPIKey)

	user, err := s.service.ValidateAPIKey(s.ctx, second)
	s.Require().NoError(err)
	s.Equal("system", user.Username)

	var count int64
	s.Require().NoError(s.db.Model(&models.APIKey{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *APIKeyServiceTestSuite) TestValidateStampsLastUsed() {
	key, _, err := s.service.GenerateAPIKey(s.ctx, 1)
	s.Require().NoError(err)

	s.clock.Advance(time.Hour)
	_, err = s.service.ValidateAPIKey(s.ctx, key)
	s.Require().NoError(err)

	apiKey, err := s.service.GetAPIKeyByUserID(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().NotNil(apiKey.LastUsedAt)
	s.True(apiKey.LastUsedAt.Equal(s.clock.Now()))
}

func (s *APIKeyServiceTestSuite) TestDisabledKeyAndInactiveUser() {
	key, _, err := s.service.GenerateAPIKey(s.ctx, 1)
	s.Require().NoError(err)

	_, err = s.service.UpdateAPIKeyStatus(s.ctx, 1, false)
	s.Require().NoError(err)
	_, err = s.service.ValidateAPIKey(s.ctx, key)
	s.ErrorIs(err, ErrAPIKeyDisabled)

	_, err = s.service.UpdateAPIKeyStatus(s.ctx, 1, true)
	s.Require().NoError(err)
	s.Require().NoError(s.db.Model(&models.User{}).Where("id = ?", 1).Update("active", false).Error)
	_, err = s.service.ValidateAPIKey(s.ctx, key)
	s.ErrorIs(err, ErrUserInactive)

	_, _, err = s.service.GenerateAPIKey(s.ctx, 1)
	s.ErrorIs(err, ErrUserInactive)
}

func (s *APIKeyServiceTestSuite) TestMissingKey() {
	_, err := s.service.GetAPIKeyByUserID(s.ctx, 1)
	s.ErrorIs(err, ErrAPIKeyNotFound)

	_, err = s.service.UpdateAPIKeyStatus(s.ctx, 1, false)
	s.ErrorIs(err, ErrAPIKeyNotFound)

	s.ErrorIs(s.service.DeleteAPIKey(s.ctx, 1), ErrAPIKeyNotFound)
}

func TestAPIKeyServiceTestSuite(t *testing.T) {
	suite.Run(t, new(APIKeyServiceTestSuite))
}
