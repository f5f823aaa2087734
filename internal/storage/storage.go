package storage

import (
	"context"

	"github.com/gardenerik/parent/internal/model"
)

// ProfileRepository loads sandbox configuration profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, path string) (model.SandboxConfig, error)
}

// StatsRepository persists execution statistics records.
type StatsRepository interface {
	StoreStats(ctx context.Context, path string, stats model.ExecutionStats) error
}
