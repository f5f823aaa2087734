// Package supervisormock has mocks for the supervisor package.
package supervisormock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gardenerik/parent/internal/model"
)

// MockRunner is a mock implementation of supervisor.Runner.
type MockRunner struct {
	mock.Mock
}

// Run mock.
func (m *MockRunner) Run(ctx context.Context, spec model.LaunchSpec) (*model.ExecutionStats, error) {
	args := m.Called(ctx, spec)

	stats, _ := args.Get(0).(*model.ExecutionStats)
	return stats, args.Error(1)
}
