// Package caps drops the process's kernel capabilities.
package caps

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Drop clears the effective, permitted and inheritable capability sets of
// the current process and forbids regaining privilege through setuid
// executables. Irrevocable.
func Drop() error {
	header := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}

	// Two data words cover the full 64-bit capability range of the v3 ABI,
	// all zero.
	var data [2]unix.CapUserData
	if err := unix.Capset(&header, &data[0]); err != nil {
		return fmt.Errorf("could not clear capability sets: %w", err)
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("could not set no-new-privs: %w", err)
	}

	return nil
}
