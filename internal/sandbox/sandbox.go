// Package sandbox applies the confinement pipeline to the current process
// and replaces it with the target program.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/gardenerik/parent/internal/model"
	"github.com/gardenerik/parent/internal/sandbox/caps"
	"github.com/gardenerik/parent/internal/sandbox/env"
	"github.com/gardenerik/parent/internal/sandbox/filter"
	"github.com/gardenerik/parent/internal/sandbox/fsaccess"
	"github.com/gardenerik/parent/internal/sandbox/rlimit"
	"github.com/gardenerik/parent/internal/sandbox/stdio"
)

// ErrExec marks a failure to exec the target after every confinement stage
// succeeded. Callers use it to distinguish "could not confine" from
// "confined, but the target never ran".
var ErrExec = errors.New("could not exec target")

type stage struct {
	name  string
	apply func() error
}

// Run applies every confinement stage to the current process in a fixed
// order and execs the target program. It only returns on failure; the
// process must not proceed to exec in a partially confined state, so the
// first stage error aborts.
//
// The order is a correctness requirement: stream redirection opens files
// before landlock can deny them, capability dropping happens before the
// syscall filter can block the call, and the filter itself goes last because
// once loaded it can block anything that follows.
func Run(spec model.LaunchSpec) error {
	environ := env.Build(os.Environ(), spec.Config.Environment)

	for _, s := range confinementStages(spec.Config) {
		if err := s.apply(); err != nil {
			return fmt.Errorf("%s: %w: %w", s.name, model.ErrSetup, err)
		}
	}

	argv := append([]string{filepath.Base(spec.Program)}, spec.Args...)
	err := unix.Exec(spec.Program, argv, environ)

	// Exec only returns on failure.
	return fmt.Errorf("%w: %q: %w", ErrExec, spec.Program, err)
}

// confinementStages returns the stages in their fixed application order.
func confinementStages(cfg model.SandboxConfig) []stage {
	return []stage{
		{"stream redirection", func() error {
			return stdio.Redirect(cfg.IO)
		}},
		{"resource limits", func() error {
			return rlimit.Apply(rlimit.Compile(cfg.Limits))
		}},
		{"filesystem access", func() error {
			ruleset, err := fsaccess.Compile(cfg.Filesystem)
			if err != nil {
				return err
			}
			return ruleset.Apply()
		}},
		{"capability drop", func() error {
			if !cfg.DropCaps {
				return nil
			}
			return caps.Drop()
		}},
		{"syscall filter", func() error {
			return filter.Compile(cfg.Syscalls).Apply()
		}},
	}
}
