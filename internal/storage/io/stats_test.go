package io_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageio "github.com/gardenerik/parent/internal/storage/io"

	"github.com/gardenerik/parent/internal/model"
)

func TestStatsJSONRepository(t *testing.T) {
	t.Run("Storing and loading stats should round-trip", func(t *testing.T) {
		assert := assert.New(t)

		path := filepath.Join(t.TempDir(), "stats.json")
		repo := storageio.NewStatsJSONRepository()

		stats := model.ExecutionStats{
			Status:     model.OutcomeSignaled,
			Signal:     9,
			RealTimeMS: 5012,
			CPUTimeMS:  1043,
			MaxRSSKB:   20480,
			TimedOut:   true,
		}

		require.NoError(t, repo.StoreStats(context.TODO(), path, stats))

		loaded, err := repo.LoadStats(context.TODO(), path)
		require.NoError(t, err)
		assert.Equal(stats, loaded)
	})

	t.Run("The stored record should use the documented field names", func(t *testing.T) {
		assert := assert.New(t)

		path := filepath.Join(t.TempDir(), "stats.json")
		repo := storageio.NewStatsJSONRepository()

		stats := model.ExecutionStats{
			Status:     model.OutcomeExited,
			ExitCode:   3,
			RealTimeMS: 120,
			CPUTimeMS:  80,
			MaxRSSKB:   1024,
		}

		require.NoError(t, repo.StoreStats(context.TODO(), path, stats))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(`{
			"status": "exited",
			"exit_code": 3,
			"signal": 0,
			"real_time": 120,
			"cpu_time": 80,
			"max_rss": 1024,
			"timeouted": false
		}`, string(data))
	})

	t.Run("Storing over an existing file should replace it", func(t *testing.T) {
		assert := assert.New(t)

		path := filepath.Join(t.TempDir(), "stats.json")
		require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

		repo := storageio.NewStatsJSONRepository()
		require.NoError(t, repo.StoreStats(context.TODO(), path, model.ExecutionStats{Status: model.OutcomeExited}))

		loaded, err := repo.LoadStats(context.TODO(), path)
		require.NoError(t, err)
		assert.Equal(model.OutcomeExited, loaded.Status)
	})

	t.Run("Loading a missing file should fail", func(t *testing.T) {
		assert := assert.New(t)

		repo := storageio.NewStatsJSONRepository()
		_, err := repo.LoadStats(context.TODO(), filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(err)
	})
}
