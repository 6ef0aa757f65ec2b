package api_key

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

var (
	ErrInvalidAPIKey  = errors.New("invalid API key")
	ErrAPIKeyDisabled = errors.New("API key is disabled")
	ErrAPIKeyNotFound = errors.New("API key not found")
	ErrUserInactive   = errors.New("user is not active")
)

const prefixLength = 8

// Service handles API key operations
type Service struct {
	apiKeyRepo *repository.APIKeyRepository
	userRepo   *repository.UserRepository
	clock      clock.Clock
}

// NewService creates a new API key service
func NewService(db *gorm.DB, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Service{
		apiKeyRepo: repository.NewAPIKeyRepository(db),
		userRepo:   repository.NewUserRepository(db),
		clock:      clk,
	}
}

// GenerateAPIKey issues a new key for a user, replacing any previous one.
// The plaintext is returned once and never stored.
func (s *Service) GenerateAPIKey(ctx context.Context, userID uint64) (string, *models.APIKey, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.Active {
		return "", nil, ErrUserInactive
	}

	key, err := generateRandomKey()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate API key: %w", err)
	}

	apiKey := &models.APIKey{
		KeyHash:  hashKey(key),
		Prefix:   key[:prefixLength],
		UserID:   userID,
		IsActive: true,
	}
	if err := s.apiKeyRepo.Replace(ctx, apiKey); err != nil {
		return "", nil, fmt.Errorf("failed to create API key: %w", err)
	}
	return key, apiKey, nil
}

// ValidateAPIKey resolves a plaintext key to its active owner
func (s *Service) ValidateAPIKey(ctx context.Context, key string) (*models.User, error) {
	apiKey, err := s.apiKeyRepo.GetByHash(ctx, hashKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}
	if apiKey == nil {
		return nil, ErrInvalidAPIKey
	}
	if !apiKey.IsActive {
		return nil, ErrAPIKeyDisabled
	}

	user, err := s.userRepo.GetByID(ctx, apiKey.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	if err := s.apiKeyRepo.UpdateLastUsed(ctx, apiKey.ID, s.clock.Now()); err != nil {
		logrus.Warnf("Failed to update API key last used timestamp: %v", err)
	}
	return user, nil
}

// GetAPIKeyByUserID gets the API key for a user
func (s *Service) GetAPIKeyByUserID(ctx context.Context, userID uint64) (*models.APIKey, error) {
	apiKey, err := s.apiKeyRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if apiKey == nil {
		return nil, ErrAPIKeyNotFound
	}
	return apiKey, nil
}

// UpdateAPIKeyStatus enables or disables the API key of a user
func (s *Service) UpdateAPIKeyStatus(ctx context.Context, userID uint64, isActive bool) (*models.APIKey, error) {
	apiKey, err := s.apiKeyRepo.SetActive(ctx, userID, isActive)
	if err != nil {
		return nil, fmt.Errorf("failed to update API key: %w", err)
	}
	if apiKey == nil {
		return nil, ErrAPIKeyNotFound
	}
	return apiKey, nil
}

// DeleteAPIKey deletes the API key of a user
func (s *Service) DeleteAPIKey(ctx context.Context, userID uint64) error {
	deleted, err := s.apiKeyRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}
	if !deleted {
		return ErrAPIKeyNotFound
	}
	return nil
}

// generateRandomKey generates a random 32-byte hex string
func generateRandomKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
