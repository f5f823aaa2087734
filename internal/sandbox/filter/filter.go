// Package filter compiles and applies the seccomp syscall policy.
package filter

import (
	"fmt"

	libseccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"

	"github.com/gardenerik/parent/internal/model"
)

// killFamily are the syscalls the filter denies implicitly: a confined
// program sharing the launcher's process group must not be able to signal
// its own supervisor away. An explicit entry for any of them wins.
var killFamily = []string{"kill", "tkill", "tgkill"}

// Rule maps one syscall to an action.
type Rule struct {
	Syscall string
	Action  model.SyscallAction
}

// Filter is a compiled, immutable syscall rule table with a default
// fallback action.
type Filter struct {
	Default model.SyscallAction
	Rules   []Rule
}

// Compile builds the rule table from the policy: the implicit kill-family
// denial first, then the explicit allow/deny/kill sets, which override the
// implicit entries. Returns nil when filtering is disabled.
func Compile(policy model.SyscallPolicy) *Filter {
	if policy.Disabled {
		return nil
	}

	explicit := map[string]struct{}{}
	for _, set := range [][]string{policy.Allow, policy.Deny, policy.Kill} {
		for _, sc := range set {
			explicit[sc] = struct{}{}
		}
	}

	f := &Filter{Default: policy.Default}

	for _, sc := range killFamily {
		if _, ok := explicit[sc]; !ok {
			f.Rules = append(f.Rules, Rule{Syscall: sc, Action: model.SyscallActionDeny})
		}
	}

	for _, sc := range policy.Allow {
		f.Rules = append(f.Rules, Rule{Syscall: sc, Action: model.SyscallActionAllow})
	}
	for _, sc := range policy.Deny {
		f.Rules = append(f.Rules, Rule{Syscall: sc, Action: model.SyscallActionDeny})
	}
	for _, sc := range policy.Kill {
		f.Rules = append(f.Rules, Rule{Syscall: sc, Action: model.SyscallActionKill})
	}

	return f
}

// Apply loads the compiled filter into the kernel for the calling thread and
// everything it spawns. Irrevocable once loaded; this must be the last
// confinement step because the filter can block the syscalls the other
// steps need.
func (f *Filter) Apply() error {
	if f == nil {
		return nil
	}

	kernelFilter, err := libseccomp.NewFilter(kernelAction(f.Default))
	if err != nil {
		return fmt.Errorf("could not create seccomp filter: %w", err)
	}

	for _, rule := range f.Rules {
		syscallID, err := libseccomp.GetSyscallFromName(rule.Syscall)
		if err != nil {
			return fmt.Errorf("unknown syscall %q: %w", rule.Syscall, err)
		}

		if err := kernelFilter.AddRule(syscallID, kernelAction(rule.Action)); err != nil {
			return fmt.Errorf("could not add seccomp rule for %q: %w", rule.Syscall, err)
		}
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("could not set no-new-privs: %w", err)
	}

	if err := kernelFilter.Load(); err != nil {
		return fmt.Errorf("could not load seccomp filter: %w", err)
	}

	return nil
}

func kernelAction(action model.SyscallAction) libseccomp.ScmpAction {
	switch action {
	case model.SyscallActionDeny:
		return libseccomp.ActErrno.SetReturnCode(int16(unix.EPERM))
	case model.SyscallActionKill:
		return libseccomp.ActKillProcess
	default:
		return libseccomp.ActAllow
	}
}
