package io_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageio "github.com/gardenerik/parent/internal/storage/io"

	"github.com/gardenerik/parent/internal/model"
)

func int64Ptr(v int64) *int64 { return &v }

func TestProfileYAMLRepositoryGetProfile(t *testing.T) {
	tests := map[string]struct {
		fs          fstest.MapFS
		path        string
		expConfig   model.SandboxConfig
		expErr      bool
		expNotFound bool
	}{
		"A missing file should fail with a not-found error": {
			fs:          fstest.MapFS{},
			path:        "missing.yaml",
			expErr:      true,
			expNotFound: true,
		},

		"Invalid YAML should fail": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{Data: []byte("limits: [")},
			},
			path:   "profile.yaml",
			expErr: true,
		},

		"A profile with a configuration conflict should fail validation": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{Data: []byte(`
io:
  stderr: /tmp/err
  stderr_to_stdout: true
`)},
			},
			path:   "profile.yaml",
			expErr: true,
		},

		"A full profile should load into the domain model": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{Data: []byte(`
limits:
  memory: 256000
  cpu_time: 2000
  real_time: 5000
  stack: -1
filesystem:
  read_only:
    - /usr
    - /lib
  read_write:
    - /tmp/work
syscalls:
  default: allow
  deny:
    - socket
env:
  empty: true
  set:
    PATH: /usr/bin
io:
  stdin: /tmp/in
  stdout: /tmp/out
  stderr_to_stdout: true
drop_caps: true
stats: /tmp/stats.json
`)},
			},
			path: "profile.yaml",
			expConfig: model.SandboxConfig{
				Limits: model.ResourceLimits{
					MemoryKB:   int64Ptr(256000),
					CPUTimeMS:  int64Ptr(2000),
					RealTimeMS: int64Ptr(5000),
					StackKB:    int64Ptr(-1),
				},
				Filesystem: model.FilesystemPolicy{
					ReadOnly:  []string{"/usr", "/lib"},
					ReadWrite: []string{"/tmp/work"},
				},
				Syscalls: model.SyscallPolicy{
					Default: model.SyscallActionAllow,
					Deny:    []string{"socket"},
				},
				Environment: model.EnvironmentConfig{
					Empty:     true,
					Overrides: map[string]string{"PATH": "/usr/bin"},
				},
				IO: model.IOConfig{
					StdinPath:      "/tmp/in",
					StdoutPath:     "/tmp/out",
					StderrToStdout: true,
				},
				DropCaps:  true,
				StatsPath: "/tmp/stats.json",
			},
		},

		"An empty profile should load with defaults": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{Data: []byte("{}")},
			},
			path: "profile.yaml",
			expConfig: model.SandboxConfig{
				Syscalls: model.SyscallPolicy{Default: model.SyscallActionAllow},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			repo := storageio.NewProfileYAMLRepository(test.fs)
			config, err := repo.GetProfile(context.TODO(), test.path)

			if test.expErr {
				assert.Error(err)
				if test.expNotFound {
					assert.ErrorIs(err, model.ErrNotFound)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(test.expConfig, config)
			}
		})
	}
}
