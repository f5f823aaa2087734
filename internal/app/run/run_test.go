package run_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gardenerik/parent/internal/app/run"
	"github.com/gardenerik/parent/internal/model"
	"github.com/gardenerik/parent/internal/storage/storagemock"
	"github.com/gardenerik/parent/internal/supervisor/supervisormock"
)

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		request   func() run.Request
		mock      func(ms *supervisormock.MockRunner, msr *storagemock.MockStatsRepository)
		expResult *run.Result
		expErr    bool
	}{
		"A request without a program should fail": {
			request: func() run.Request {
				return run.Request{}
			},
			mock:   func(ms *supervisormock.MockRunner, msr *storagemock.MockStatsRepository) {},
			expErr: true,
		},

		"A request with a conflicting configuration should fail before supervising": {
			request: func() run.Request {
				return run.Request{
					Program: "/bin/true",
					Config: model.SandboxConfig{
						Syscalls: model.SyscallPolicy{
							Allow: []string{"openat"},
							Kill:  []string{"openat"},
						},
					},
				}
			},
			mock:   func(ms *supervisormock.MockRunner, msr *storagemock.MockStatsRepository) {},
			expErr: true,
		},

		"A successful run should return the stats and the mirrored exit code": {
			request: func() run.Request {
				return run.Request{Program: "/bin/false", Args: []string{}}
			},
			mock: func(ms *supervisormock.MockRunner, msr *storagemock.MockStatsRepository) {
				stats := &model.ExecutionStats{Status: model.OutcomeExited, ExitCode: 1}
				ms.On("Run", mock.Anything, mock.Anything).Once().Return(stats, nil)
			},
			expResult: &run.Result{
				Stats:    model.ExecutionStats{Status: model.OutcomeExited, ExitCode: 1},
				ExitCode: 1,
			},
		},

		"A timed out run should map to the timeout exit code": {
			request: func() run.Request {
				return run.Request{Program: "/bin/sleep", Args: []string{"60"}}
			},
			mock: func(ms *supervisormock.MockRunner, msr *storagemock.MockStatsRepository) {
				stats := &model.ExecutionStats{Status: model.OutcomeTimedOut, Signal: 9, TimedOut: true}
				ms.On("Run", mock.Anything, mock.Anything).Once().Return(stats, nil)
			},
			expResult: &run.Result{
				Stats:    model.ExecutionStats{Status: model.OutcomeTimedOut, Signal: 9, TimedOut: true},
				ExitCode: model.ExitCodeTimeout,
			},
		},

		"A run with a stats path should store the record": {
			request: func() run.Request {
				return run.Request{
					Program: "/bin/true",
					Config:  model.SandboxConfig{StatsPath: "/tmp/stats.json"},
				}
			},
			mock: func(ms *supervisormock.MockRunner, msr *storagemock.MockStatsRepository) {
				stats := &model.ExecutionStats{Status: model.OutcomeExited}
				ms.On("Run", mock.Anything, mock.Anything).Once().Return(stats, nil)
				msr.On("StoreStats", mock.Anything, "/tmp/stats.json", *stats).Once().Return(nil)
			},
			expResult: &run.Result{
				Stats: model.ExecutionStats{Status: model.OutcomeExited},
			},
		},

		"A failing stats store should fail the run": {
			request: func() run.Request {
				return run.Request{
					Program: "/bin/true",
					Config:  model.SandboxConfig{StatsPath: "/tmp/stats.json"},
				}
			},
			mock: func(ms *supervisormock.MockRunner, msr *storagemock.MockStatsRepository) {
				stats := &model.ExecutionStats{Status: model.OutcomeExited}
				ms.On("Run", mock.Anything, mock.Anything).Once().Return(stats, nil)
				msr.On("StoreStats", mock.Anything, "/tmp/stats.json", *stats).Once().Return(fmt.Errorf("something"))
			},
			expErr: true,
		},

		"A supervision failure should fail the run": {
			request: func() run.Request {
				return run.Request{Program: "/bin/true"}
			},
			mock: func(ms *supervisormock.MockRunner, msr *storagemock.MockStatsRepository) {
				ms.On("Run", mock.Anything, mock.Anything).Once().Return(nil, fmt.Errorf("something"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			ms := &supervisormock.MockRunner{}
			msr := &storagemock.MockStatsRepository{}
			test.mock(ms, msr)

			svc, err := run.NewService(run.ServiceConfig{
				Supervisor: ms,
				StatsRepo:  msr,
			})
			require.NoError(t, err)

			result, err := svc.Run(context.TODO(), test.request())

			if test.expErr {
				assert.Error(err)
			} else {
				require.NoError(t, err)
				assert.Equal(test.expResult.Stats, result.Stats)
				assert.Equal(test.expResult.ExitCode, result.ExitCode)
			}

			ms.AssertExpectations(t)
			msr.AssertExpectations(t)
		})
	}
}

func TestServiceRunForwardsLaunchSpec(t *testing.T) {
	assert := assert.New(t)

	ms := &supervisormock.MockRunner{}
	msr := &storagemock.MockStatsRepository{}

	var gotSpec model.LaunchSpec
	ms.On("Run", mock.Anything, mock.Anything).Once().
		Run(func(args mock.Arguments) { gotSpec = args.Get(1).(model.LaunchSpec) }).
		Return(&model.ExecutionStats{Status: model.OutcomeExited}, nil)

	svc, err := run.NewService(run.ServiceConfig{Supervisor: ms, StatsRepo: msr})
	require.NoError(t, err)

	mem := int64(128000)
	_, err = svc.Run(context.TODO(), run.Request{
		Program: "/usr/bin/python3",
		Args:    []string{"solution.py"},
		Config: model.SandboxConfig{
			Limits: model.ResourceLimits{MemoryKB: &mem},
		},
	})
	require.NoError(t, err)

	assert.Equal("/usr/bin/python3", gotSpec.Program)
	assert.Equal([]string{"solution.py"}, gotSpec.Args)
	assert.Equal(&mem, gotSpec.Config.Limits.MemoryKB)
	ms.AssertExpectations(t)
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config func() run.ServiceConfig
		expErr bool
	}{
		"A config without a supervisor should fail": {
			config: func() run.ServiceConfig {
				return run.ServiceConfig{StatsRepo: &storagemock.MockStatsRepository{}}
			},
			expErr: true,
		},

		"A config without a stats repository should fail": {
			config: func() run.ServiceConfig {
				return run.ServiceConfig{Supervisor: &supervisormock.MockRunner{}}
			},
			expErr: true,
		},

		"A complete config should create the service": {
			config: func() run.ServiceConfig {
				return run.ServiceConfig{
					Supervisor: &supervisormock.MockRunner{},
					StatsRepo:  &storagemock.MockStatsRepository{},
				}
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			svc, err := run.NewService(test.config())

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
				assert.NotNil(svc)
			}
		})
	}
}
