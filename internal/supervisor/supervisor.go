// Package supervisor spawns the confined child and supervises it to a
// terminal state.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gardenerik/parent/internal/log"
	"github.com/gardenerik/parent/internal/model"
)

// Runner supervises one confined execution to a terminal state.
type Runner interface {
	Run(ctx context.Context, spec model.LaunchSpec) (*model.ExecutionStats, error)
}

// Config is the configuration for the supervisor.
type Config struct {
	// ChildArgv is the command used to respawn the launcher in child mode.
	// Defaults to re-executing the current binary with the child-init
	// command.
	ChildArgv []string
	Logger    log.Logger
}

func (c *Config) defaults() error {
	if len(c.ChildArgv) == 0 {
		c.ChildArgv = []string{"/proc/self/exe", "child-init"}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "supervisor.Supervisor"})

	return nil
}

// Supervisor owns the child process for its whole lifetime: it forks the
// launcher into child mode, hands over the launch spec, races a wall-clock
// watchdog against the child's termination and collects the execution stats
// at reap time.
//
// The parent and the child share no state: the launch spec travels over an
// inherited pipe on fd 3, and the child reports pre-exec failures over a
// status pipe on fd 4 that closes empty once the target program is reached.
type Supervisor struct {
	childArgv []string
	logger    log.Logger
}

// NewSupervisor creates a new supervisor.
func NewSupervisor(cfg Config) (*Supervisor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Supervisor{
		childArgv: cfg.ChildArgv,
		logger:    cfg.Logger,
	}, nil
}

// Run executes the launch spec under supervision. The returned stats are
// produced exactly once, after the child reached a terminal state. An error
// is returned only when supervising itself failed, never for a target that
// ran and misbehaved.
func (s *Supervisor) Run(ctx context.Context, spec model.LaunchSpec) (*model.ExecutionStats, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("could not serialize launch spec: %w", err)
	}

	specR, specW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("could not create spec pipe: %w", err)
	}
	statusR, statusW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("could not create status pipe: %w", err)
	}
	defer statusR.Close()

	cmd := exec.Command(s.childArgv[0], s.childArgv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// fd 3 and fd 4 in the child.
	cmd.ExtraFiles = []*os.File{specR, statusW}
	// Own process group so the watchdog can kill every descendant at once.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		specR.Close()
		specW.Close()
		statusW.Close()
		return nil, fmt.Errorf("could not start child: %w", err)
	}
	specR.Close()
	statusW.Close()

	s.logger.Debugf("Child forked with pid %d", cmd.Process.Pid)

	go func() {
		_, _ = specW.Write(payload)
		specW.Close()
	}()

	done := make(chan struct{})
	go func() {
		// The exit error is irrelevant, the process state carries
		// everything needed.
		_ = cmd.Wait()
		close(done)
	}()

	var watchdog <-chan time.Time
	if spec.Config.Limits.RealTimeMS != nil {
		timer := time.NewTimer(time.Duration(*spec.Config.Limits.RealTimeMS) * time.Millisecond)
		defer timer.Stop()
		watchdog = timer.C
	}

	timedOut := false
	select {
	case <-done:
	case <-watchdog:
		s.logger.Debugf("Wall-clock watchdog fired, killing process group %d", cmd.Process.Pid)
		timedOut = true
		s.killGroup(cmd.Process.Pid)
		<-done
	case <-ctx.Done():
		// Launcher cancellation takes the timeout path.
		s.logger.Debugf("Supervision cancelled, killing process group %d", cmd.Process.Pid)
		timedOut = true
		s.killGroup(cmd.Process.Pid)
		<-done
	}
	realTime := time.Since(start)

	setupMessage, err := io.ReadAll(statusR)
	if err != nil {
		return nil, fmt.Errorf("could not read child status pipe: %w", err)
	}

	state := cmd.ProcessState
	waitStatus := state.Sys().(syscall.WaitStatus)
	rusage := state.SysUsage().(*syscall.Rusage)

	stats := buildStats(reap{
		exitCode:     waitStatus.ExitStatus(),
		signaled:     waitStatus.Signaled(),
		signal:       int(waitStatus.Signal()),
		timedOut:     timedOut,
		setupMessage: string(setupMessage),
		realTime:     realTime,
		cpuTime:      time.Duration(rusage.Utime.Nano()),
		maxRSSKiB:    rusage.Maxrss,
	})

	if stats.Status == model.OutcomeSetupFailed {
		s.logger.Errorf("Child never ran the target: %s", setupMessage)
	}

	return &stats, nil
}

func (s *Supervisor) killGroup(pid int) {
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		s.logger.Warningf("Could not kill process group %d: %v", pid, err)
	}
}

// reap is everything the kernel and the status pipe report about the
// terminated child.
type reap struct {
	exitCode     int
	signaled     bool
	signal       int
	timedOut     bool
	setupMessage string
	realTime     time.Duration
	cpuTime      time.Duration
	maxRSSKiB    int64
}

// buildStats classifies the reaped child into a terminal outcome. Content on
// the status pipe means the target never ran, making the reported exit code
// the child's reserved setup status, not the target's. A watchdog kill is
// reported as a timeout, never as a plain signal termination.
func buildStats(r reap) model.ExecutionStats {
	stats := model.ExecutionStats{
		RealTimeMS: r.realTime.Milliseconds(),
		CPUTimeMS:  r.cpuTime.Milliseconds(),
		MaxRSSKB:   kibToKB(r.maxRSSKiB),
		TimedOut:   r.timedOut,
	}

	switch {
	case r.setupMessage != "":
		stats.Status = model.OutcomeSetupFailed
		stats.ExitCode = r.exitCode
	case r.timedOut:
		stats.Status = model.OutcomeTimedOut
		stats.Signal = r.signal
	case r.signaled:
		stats.Status = model.OutcomeSignaled
		stats.Signal = r.signal
	default:
		stats.Status = model.OutcomeExited
		stats.ExitCode = r.exitCode
	}

	return stats
}

// Rusage reports maxrss in KiB, the stats contract uses 1000-byte
// kilobytes.
func kibToKB(kib int64) int64 {
	return int64(float64(kib) * 1.024)
}
