package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/gardenerik/parent/internal/model"
)

// ProfileYAMLRepository loads sandbox profiles from YAML files.
type ProfileYAMLRepository struct {
	fs fs.FS
}

// NewProfileYAMLRepository creates a new YAML profile repository.
func NewProfileYAMLRepository(filesystem fs.FS) *ProfileYAMLRepository {
	return &ProfileYAMLRepository{fs: filesystem}
}

// GetProfile loads a sandbox profile from a YAML file and returns a
// validated domain model.
func (r *ProfileYAMLRepository) GetProfile(ctx context.Context, path string) (model.SandboxConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.SandboxConfig{}, fmt.Errorf("profile %q: %w", path, model.ErrNotFound)
		}
		return model.SandboxConfig{}, fmt.Errorf("reading profile file: %w", err)
	}

	if ctx.Err() != nil {
		return model.SandboxConfig{}, ctx.Err()
	}

	var profile sandboxProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return model.SandboxConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	cfg := profile.toModel()
	if err := cfg.Validate(); err != nil {
		return model.SandboxConfig{}, fmt.Errorf("invalid profile: %w", err)
	}

	return cfg, nil
}

// sandboxProfile represents the YAML structure for a sandbox profile.
type sandboxProfile struct {
	Limits     limitsProfile     `yaml:"limits"`
	Filesystem filesystemProfile `yaml:"filesystem"`
	Syscalls   syscallsProfile   `yaml:"syscalls"`
	Env        envProfile        `yaml:"env"`
	IO         ioProfile         `yaml:"io"`
	DropCaps   bool              `yaml:"drop_caps"`
	Stats      string            `yaml:"stats"`
}

type limitsProfile struct {
	MemoryKB   *int64 `yaml:"memory"`
	CPUTimeMS  *int64 `yaml:"cpu_time"`
	RealTimeMS *int64 `yaml:"real_time"`
	StackKB    *int64 `yaml:"stack"`
	FileSizeKB *int64 `yaml:"file_size"`
	Processes  *int64 `yaml:"processes"`
}

type filesystemProfile struct {
	ReadOnly  []string `yaml:"read_only"`
	WriteOnly []string `yaml:"write_only"`
	ReadWrite []string `yaml:"read_write"`
}

type syscallsProfile struct {
	Disabled bool     `yaml:"disabled"`
	Default  string   `yaml:"default"`
	Allow    []string `yaml:"allow"`
	Deny     []string `yaml:"deny"`
	Kill     []string `yaml:"kill"`
}

type envProfile struct {
	Empty bool              `yaml:"empty"`
	Set   map[string]string `yaml:"set"`
}

type ioProfile struct {
	Stdin          string `yaml:"stdin"`
	Stdout         string `yaml:"stdout"`
	Stderr         string `yaml:"stderr"`
	StderrToStdout bool   `yaml:"stderr_to_stdout"`
}

func (p sandboxProfile) toModel() model.SandboxConfig {
	return model.SandboxConfig{
		Limits: model.ResourceLimits{
			MemoryKB:   p.Limits.MemoryKB,
			CPUTimeMS:  p.Limits.CPUTimeMS,
			RealTimeMS: p.Limits.RealTimeMS,
			StackKB:    p.Limits.StackKB,
			FileSizeKB: p.Limits.FileSizeKB,
			Processes:  p.Limits.Processes,
		},
		Filesystem: model.FilesystemPolicy{
			ReadOnly:  p.Filesystem.ReadOnly,
			WriteOnly: p.Filesystem.WriteOnly,
			ReadWrite: p.Filesystem.ReadWrite,
		},
		Syscalls: model.SyscallPolicy{
			Disabled: p.Syscalls.Disabled,
			Default:  model.SyscallAction(p.Syscalls.Default),
			Allow:    p.Syscalls.Allow,
			Deny:     p.Syscalls.Deny,
			Kill:     p.Syscalls.Kill,
		},
		Environment: model.EnvironmentConfig{
			Empty:     p.Env.Empty,
			Overrides: p.Env.Set,
		},
		IO: model.IOConfig{
			StdinPath:      p.IO.Stdin,
			StdoutPath:     p.IO.Stdout,
			StderrPath:     p.IO.Stderr,
			StderrToStdout: p.IO.StderrToStdout,
		},
		DropCaps:  p.DropCaps,
		StatsPath: p.Stats,
	}
}
