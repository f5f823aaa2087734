package io

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gardenerik/parent/internal/model"
)

// StatsJSONRepository persists execution statistics as a JSON record.
type StatsJSONRepository struct{}

// NewStatsJSONRepository creates a new JSON stats repository.
func NewStatsJSONRepository() *StatsJSONRepository {
	return &StatsJSONRepository{}
}

// StoreStats writes the stats record to path, replacing any previous
// content. Stats are written at most once per run.
func (r *StatsJSONRepository) StoreStats(ctx context.Context, path string, stats model.ExecutionStats) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	data, err := json.Marshal(newStatsRecord(stats))
	if err != nil {
		return fmt.Errorf("serializing stats: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing stats file: %w", err)
	}

	return nil
}

// LoadStats parses a stats record previously written by StoreStats.
func (r *StatsJSONRepository) LoadStats(ctx context.Context, path string) (model.ExecutionStats, error) {
	if ctx.Err() != nil {
		return model.ExecutionStats{}, ctx.Err()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.ExecutionStats{}, fmt.Errorf("reading stats file: %w", err)
	}

	var record statsRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.ExecutionStats{}, fmt.Errorf("parsing stats file: %w", err)
	}

	return record.toModel(), nil
}

// statsRecord is the on-disk JSON structure for execution statistics.
type statsRecord struct {
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
	Signal   int    `json:"signal"`
	RealTime int64  `json:"real_time"`
	CPUTime  int64  `json:"cpu_time"`
	MaxRSS   int64  `json:"max_rss"`
	Timeout  bool   `json:"timeouted"`
}

func newStatsRecord(stats model.ExecutionStats) statsRecord {
	return statsRecord{
		Status:   string(stats.Status),
		ExitCode: stats.ExitCode,
		Signal:   stats.Signal,
		RealTime: stats.RealTimeMS,
		CPUTime:  stats.CPUTimeMS,
		MaxRSS:   stats.MaxRSSKB,
		Timeout:  stats.TimedOut,
	}
}

func (r statsRecord) toModel() model.ExecutionStats {
	return model.ExecutionStats{
		Status:     model.OutcomeKind(r.Status),
		ExitCode:   r.ExitCode,
		Signal:     r.Signal,
		RealTimeMS: r.RealTime,
		CPUTimeMS:  r.CPUTime,
		MaxRSSKB:   r.MaxRSS,
		TimedOut:   r.Timeout,
	}
}
