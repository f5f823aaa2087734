package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/gardenerik/parent/internal/app/run"
	"github.com/gardenerik/parent/internal/model"
	"github.com/gardenerik/parent/internal/sandbox/env"
	storageio "github.com/gardenerik/parent/internal/storage/io"
	"github.com/gardenerik/parent/internal/supervisor"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	// Resource limit flags.
	memoryKB   int64
	cpuTimeMS  int64
	realTimeMS int64
	stackKB    int64
	fileSizeKB int64
	processes  int64

	// I/O flags.
	stdinPath      string
	stdoutPath     string
	stderrPath     string
	stderrToStdout bool

	// Filesystem flags.
	fsReadOnly  []string
	fsWriteOnly []string
	fsReadWrite []string

	// Environment flags.
	envSpecs []string
	emptyEnv bool

	// Syscall flags.
	seccompDefault string
	seccompAllow   []string
	seccompDeny    []string
	seccompKill    []string

	dropCaps    bool
	statsPath   string
	profilePath string

	program string
	args    []string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a program under confinement.").Default()

	// Resource limit flags.
	c.Cmd.Flag("memory", "The program's maximum memory address space in kilobytes.").Short('m').Int64Var(&c.memoryKB)
	c.Cmd.Flag("cpu-time", "The program's maximum CPU time in milliseconds.").Short('t').Int64Var(&c.cpuTimeMS)
	c.Cmd.Flag("real-time", "The program's maximum real-time execution time in milliseconds.").Short('r').Int64Var(&c.realTimeMS)
	c.Cmd.Flag("stack", "The program's stack size limit in kilobytes (negative for unlimited).").Int64Var(&c.stackKB)
	c.Cmd.Flag("file-size", "The program's maximum file size in kilobytes that it can create or modify.").Short('f').Int64Var(&c.fileSizeKB)
	c.Cmd.Flag("processes", "The number of threads, or processes, the program can use.").Short('p').Int64Var(&c.processes)

	// I/O flags.
	c.Cmd.Flag("stdin", "Redirect a file to the program's stdin.").StringVar(&c.stdinPath)
	c.Cmd.Flag("stdout", "Redirect the program's stdout to a file.").StringVar(&c.stdoutPath)
	c.Cmd.Flag("stderr", "Redirect the program's stderr to a file.").StringVar(&c.stderrPath)
	c.Cmd.Flag("stderr-to-stdout", "Redirect the program's stderr to stdout.").BoolVar(&c.stderrToStdout)

	// Filesystem flags.
	c.Cmd.Flag("fs-readonly", "Allow the program to read files or folders located under the provided path.").StringsVar(&c.fsReadOnly)
	c.Cmd.Flag("fs-writeonly", "Allow the program to write to files or folders located under the provided path.").StringsVar(&c.fsWriteOnly)
	c.Cmd.Flag("fs-readwrite", "Allow the program to read or write to files or folders located under the provided path.").StringsVar(&c.fsReadWrite)

	// Environment flags.
	c.Cmd.Flag("env", "Set an environment variable (NAME=VALUE).").StringsVar(&c.envSpecs)
	c.Cmd.Flag("empty-env", "Do not inherit the launcher's environment.").BoolVar(&c.emptyEnv)

	// Syscall flags.
	c.Cmd.Flag("seccomp-default", "Default policy for syscalls (none disables filtering).").EnumVar(&c.seccompDefault, "allow", "deny", "kill", "none")
	c.Cmd.Flag("seccomp-allow", "Allow a syscall.").StringsVar(&c.seccompAllow)
	c.Cmd.Flag("seccomp-deny", "Deny a syscall.").StringsVar(&c.seccompDeny)
	c.Cmd.Flag("seccomp-kill", "Kill the program on that syscall.").StringsVar(&c.seccompKill)

	c.Cmd.Flag("drop-caps", "Drop the program's capabilities.").BoolVar(&c.dropCaps)
	c.Cmd.Flag("stats", "Save execution statistics to a file.").Short('s').StringVar(&c.statsPath)
	c.Cmd.Flag("profile", "Load the sandbox configuration from a YAML profile file.").StringVar(&c.profilePath)

	c.Cmd.Arg("program", "Path of the program to run.").Required().StringVar(&c.program)
	c.Cmd.Arg("args", "Arguments for the program.").StringsVar(&c.args)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Start from the profile (if any), flags layer on top.
	cfg := model.SandboxConfig{}
	if c.profilePath != "" {
		profilePath := c.profilePath
		if !filepath.IsAbs(profilePath) {
			absPath, err := filepath.Abs(profilePath)
			if err != nil {
				return fmt.Errorf("could not resolve profile path: %w", err)
			}
			profilePath = absPath
		}

		profileRepo := storageio.NewProfileYAMLRepository(os.DirFS("/"))
		var err error
		cfg, err = profileRepo.GetProfile(ctx, profilePath[1:])
		if err != nil {
			return fmt.Errorf("could not load profile: %w", err)
		}
	}

	cliEnv, err := env.ParseSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env value: %w", err)
	}
	cfg.Environment.Overrides = env.MergeMaps(cfg.Environment.Overrides, cliEnv)
	cfg.Environment.Empty = cfg.Environment.Empty || c.emptyEnv

	c.mergeLimits(&cfg)
	c.mergeFilesystem(&cfg)
	c.mergeSyscalls(&cfg)
	c.mergeIO(&cfg)

	cfg.DropCaps = cfg.DropCaps || c.dropCaps
	if c.statsPath != "" {
		cfg.StatsPath = c.statsPath
	}

	sup, err := supervisor.NewSupervisor(supervisor.Config{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create supervisor: %w", err)
	}

	svc, err := run.NewService(run.ServiceConfig{
		Supervisor: sup,
		StatsRepo:  storageio.NewStatsJSONRepository(),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create run service: %w", err)
	}

	result, err := svc.Run(ctx, run.Request{
		Program: c.program,
		Args:    c.args,
		Config:  cfg,
	})
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		return ExitCodeError{Code: result.ExitCode}
	}

	return nil
}

func (c RunCommand) mergeLimits(cfg *model.SandboxConfig) {
	set := func(dst **int64, v int64) {
		if v != 0 {
			value := v
			*dst = &value
		}
	}

	set(&cfg.Limits.MemoryKB, c.memoryKB)
	set(&cfg.Limits.CPUTimeMS, c.cpuTimeMS)
	set(&cfg.Limits.RealTimeMS, c.realTimeMS)
	set(&cfg.Limits.StackKB, c.stackKB)
	set(&cfg.Limits.FileSizeKB, c.fileSizeKB)
	set(&cfg.Limits.Processes, c.processes)
}

func (c RunCommand) mergeFilesystem(cfg *model.SandboxConfig) {
	cfg.Filesystem.ReadOnly = append(cfg.Filesystem.ReadOnly, c.fsReadOnly...)
	cfg.Filesystem.WriteOnly = append(cfg.Filesystem.WriteOnly, c.fsWriteOnly...)
	cfg.Filesystem.ReadWrite = append(cfg.Filesystem.ReadWrite, c.fsReadWrite...)
}

func (c RunCommand) mergeSyscalls(cfg *model.SandboxConfig) {
	// An unset flag keeps the profile's default action.
	switch c.seccompDefault {
	case "":
	case "none":
		cfg.Syscalls.Disabled = true
	default:
		cfg.Syscalls.Default = model.SyscallAction(c.seccompDefault)
	}

	cfg.Syscalls.Allow = append(cfg.Syscalls.Allow, c.seccompAllow...)
	cfg.Syscalls.Deny = append(cfg.Syscalls.Deny, c.seccompDeny...)
	cfg.Syscalls.Kill = append(cfg.Syscalls.Kill, c.seccompKill...)
}

func (c RunCommand) mergeIO(cfg *model.SandboxConfig) {
	if c.stdinPath != "" {
		cfg.IO.StdinPath = c.stdinPath
	}
	if c.stdoutPath != "" {
		cfg.IO.StdoutPath = c.stdoutPath
	}
	if c.stderrPath != "" {
		cfg.IO.StderrPath = c.stderrPath
	}
	cfg.IO.StderrToStdout = cfg.IO.StderrToStdout || c.stderrToStdout
}
