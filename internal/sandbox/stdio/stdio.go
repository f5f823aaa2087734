// Package stdio rebinds the standard streams of the current process.
package stdio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/gardenerik/parent/internal/model"
)

// Redirect rebinds fd 0/1/2 to the configured files. Unconfigured streams
// keep the inherited descriptors. This runs before any confinement step that
// could block opening the files.
func Redirect(cfg model.IOConfig) error {
	if cfg.StdinPath != "" {
		if err := rebind(cfg.StdinPath, os.O_RDONLY, 0); err != nil {
			return fmt.Errorf("stdin: %w", err)
		}
	}

	if cfg.StdoutPath != "" {
		if err := rebind(cfg.StdoutPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 1); err != nil {
			return fmt.Errorf("stdout: %w", err)
		}
	}

	if cfg.StderrPath != "" {
		if err := rebind(cfg.StderrPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 2); err != nil {
			return fmt.Errorf("stderr: %w", err)
		}
	}

	if cfg.StderrToStdout {
		if err := unix.Dup3(1, 2, 0); err != nil {
			return fmt.Errorf("stderr to stdout: %w", err)
		}
	}

	return nil
}

func rebind(path string, flags int, targetFD int) error {
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", path, err)
	}

	if err := unix.Dup3(int(file.Fd()), targetFD, 0); err != nil {
		_ = file.Close()
		return fmt.Errorf("could not rebind fd %d: %w", targetFD, err)
	}

	return file.Close()
}
