package model

// OutcomeKind classifies how a supervised run ended.
type OutcomeKind string

const (
	// OutcomeExited indicates the target exited on its own.
	OutcomeExited OutcomeKind = "exited"
	// OutcomeSignaled indicates the target was terminated by a signal it
	// received or raised itself (including the kernel's CPU-limit signal).
	OutcomeSignaled OutcomeKind = "signaled"
	// OutcomeTimedOut indicates the supervisor's wall-clock watchdog killed
	// the target.
	OutcomeTimedOut OutcomeKind = "timeout"
	// OutcomeSetupFailed indicates the child aborted before the target ever
	// ran (confinement setup or exec failed).
	OutcomeSetupFailed OutcomeKind = "setup-failed"
)

// Reserved launcher exit codes. Values above 128 are 128+signal for
// signal-terminated targets; a normal target exit is mirrored verbatim.
const (
	// ExitCodeTimeout is returned when the wall-clock watchdog fired.
	ExitCodeTimeout = 124
	// ExitCodeSetupFailure is returned when confinement setup failed in the
	// child before exec.
	ExitCodeSetupFailure = 125
	// ExitCodeExecFailure is returned when confinement succeeded but the
	// target could not be exec'd.
	ExitCodeExecFailure = 126
	// ExitCodeSignalBase plus the signal number is returned when the target
	// was terminated by a signal.
	ExitCodeSignalBase = 128
)

// ExecutionStats is the final report of a supervised run. It is created only
// once the child reached a terminal state.
type ExecutionStats struct {
	Status   OutcomeKind
	ExitCode int
	Signal   int
	// RealTimeMS is the wall-clock duration measured by the supervisor.
	RealTimeMS int64
	// CPUTimeMS is the user CPU time consumed, as reported by the kernel at
	// reap time.
	CPUTimeMS int64
	// MaxRSSKB is the peak resident set size in kilobytes.
	MaxRSSKB int64
	// TimedOut is set when the wall-clock watchdog triggered the
	// termination.
	TimedOut bool
}

// LauncherExitCode maps the run outcome to the launcher's own process exit
// code.
func (s ExecutionStats) LauncherExitCode() int {
	switch s.Status {
	case OutcomeTimedOut:
		return ExitCodeTimeout
	case OutcomeSetupFailed:
		return s.ExitCode
	case OutcomeSignaled:
		return ExitCodeSignalBase + s.Signal
	default:
		return s.ExitCode
	}
}
