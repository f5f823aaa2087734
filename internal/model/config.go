package model

import (
	"fmt"
	"path/filepath"
	"regexp"
)

// ResourceLimits are the kernel rlimit values for the child. Nil values are
// left at their inherited defaults. Kilobyte values use 1000-byte kilobytes.
type ResourceLimits struct {
	MemoryKB   *int64 // Address space limit.
	CPUTimeMS  *int64 // Enforced by the kernel via RLIMIT_CPU (rounded up to seconds).
	RealTimeMS *int64 // Enforced by the supervisor's watchdog, not an rlimit.
	StackKB    *int64 // Negative means unlimited.
	FileSizeKB *int64
	Processes  *int64
}

// SyscallAction is what the kernel does when the child invokes a syscall.
type SyscallAction string

const (
	// SyscallActionAllow permits the syscall.
	SyscallActionAllow SyscallAction = "allow"
	// SyscallActionDeny fails the syscall with EPERM returned to the caller.
	SyscallActionDeny SyscallAction = "deny"
	// SyscallActionKill terminates the child process on the syscall.
	SyscallActionKill SyscallAction = "kill"
)

// SyscallPolicy is the seccomp policy for the child.
//
// When Disabled is false a filter is always installed, with Default as the
// fallback action and the explicit sets layered on top of the implicit
// denial of the kill syscall family.
type SyscallPolicy struct {
	Disabled bool
	Default  SyscallAction
	Allow    []string
	Deny     []string
	Kill     []string
}

// FilesystemPolicy holds the landlock path allow-lists. If all lists are
// empty no ruleset is installed and filesystem access stays unrestricted.
// Once any list is non-empty, everything outside the lists is denied.
//
// The target executable's own path is not allowed automatically: omitting it
// makes exec fail with a permission error.
type FilesystemPolicy struct {
	ReadOnly  []string
	WriteOnly []string
	ReadWrite []string
}

// Empty returns true when no path rule is configured.
func (p FilesystemPolicy) Empty() bool {
	return len(p.ReadOnly) == 0 && len(p.WriteOnly) == 0 && len(p.ReadWrite) == 0
}

// EnvironmentConfig describes how the child's environment is built.
type EnvironmentConfig struct {
	// Empty suppresses inheritance of the launcher's environment.
	Empty bool
	// Overrides are applied on top of the base environment, each one
	// overwriting any inherited value of the same name.
	Overrides map[string]string
}

// IOConfig holds the standard stream redirection targets. Empty paths leave
// the inherited stream untouched.
type IOConfig struct {
	StdinPath  string
	StdoutPath string
	StderrPath string
	// StderrToStdout duplicates fd 1 onto fd 2. Mutually exclusive with
	// StderrPath.
	StderrToStdout bool
}

// SandboxConfig is the full declarative confinement configuration for a
// single run. It is immutable after validation.
type SandboxConfig struct {
	Limits      ResourceLimits
	Filesystem  FilesystemPolicy
	Syscalls    SyscallPolicy
	Environment EnvironmentConfig
	IO          IOConfig
	DropCaps    bool
	StatsPath   string
}

// LaunchSpec is the contract between the supervisor and the child: the
// target program plus the sandbox configuration the child must apply before
// replacing itself with the target.
type LaunchSpec struct {
	Program string
	Args    []string
	Config  SandboxConfig
}

var envKeyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the configuration for conflicts and canonicalizes it
// (cleans paths, removes duplicates). All conflicts are detected here,
// before any process is forked.
func (c *SandboxConfig) Validate() error {
	if c.IO.StderrPath != "" && c.IO.StderrToStdout {
		return fmt.Errorf("stderr file and stderr-to-stdout are mutually exclusive: %w", ErrNotValid)
	}

	if err := c.validateLimits(); err != nil {
		return err
	}

	for name := range c.Environment.Overrides {
		if !envKeyRegexp.MatchString(name) {
			return fmt.Errorf("invalid environment variable name %q: %w", name, ErrNotValid)
		}
	}

	lists := []*[]string{&c.Filesystem.ReadOnly, &c.Filesystem.WriteOnly, &c.Filesystem.ReadWrite}
	for _, list := range lists {
		paths, err := normalizePaths(*list)
		if err != nil {
			return err
		}
		*list = paths
	}

	return c.validateSyscalls()
}

func (c *SandboxConfig) validateLimits() error {
	positive := map[string]*int64{
		"memory":    c.Limits.MemoryKB,
		"cpu-time":  c.Limits.CPUTimeMS,
		"real-time": c.Limits.RealTimeMS,
		"file-size": c.Limits.FileSizeKB,
		"processes": c.Limits.Processes,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s limit must be positive: %w", name, ErrNotValid)
		}
	}

	// Stack accepts negative values (unlimited), only zero is meaningless.
	if c.Limits.StackKB != nil && *c.Limits.StackKB == 0 {
		return fmt.Errorf("stack limit must not be zero: %w", ErrNotValid)
	}

	return nil
}

func (c *SandboxConfig) validateSyscalls() error {
	switch c.Syscalls.Default {
	case SyscallActionAllow, SyscallActionDeny, SyscallActionKill:
	case "":
		c.Syscalls.Default = SyscallActionAllow
	default:
		return fmt.Errorf("unknown syscall default action %q: %w", c.Syscalls.Default, ErrNotValid)
	}

	seen := map[string]string{}
	sets := map[string]*[]string{
		"allow": &c.Syscalls.Allow,
		"deny":  &c.Syscalls.Deny,
		"kill":  &c.Syscalls.Kill,
	}
	for setName, set := range sets {
		*set = dedupeStrings(*set)
		for _, sc := range *set {
			if other, ok := seen[sc]; ok {
				return fmt.Errorf("syscall %q classified as both %s and %s: %w", sc, other, setName, ErrNotValid)
			}
			seen[sc] = setName
		}
	}

	return nil
}

func normalizePaths(paths []string) ([]string, error) {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			return nil, fmt.Errorf("filesystem rule path %q is not absolute: %w", p, ErrNotValid)
		}
		cleaned = append(cleaned, filepath.Clean(p))
	}
	return dedupeStrings(cleaned), nil
}

func dedupeStrings(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(ss))
	result := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}
	return result
}
