// Package storagemock has mocks for the storage package.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gardenerik/parent/internal/model"
)

// MockProfileRepository is a mock implementation of storage.ProfileRepository.
type MockProfileRepository struct {
	mock.Mock
}

// GetProfile mock.
func (m *MockProfileRepository) GetProfile(ctx context.Context, path string) (model.SandboxConfig, error) {
	args := m.Called(ctx, path)
	cfg, _ := args.Get(0).(model.SandboxConfig)
	return cfg, args.Error(1)
}

// MockStatsRepository is a mock implementation of storage.StatsRepository.
type MockStatsRepository struct {
	mock.Mock
}

// StoreStats mock.
func (m *MockStatsRepository) StoreStats(ctx context.Context, path string, stats model.ExecutionStats) error {
	args := m.Called(ctx, path, stats)
	return args.Error(0)
}
