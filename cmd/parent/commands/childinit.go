package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"golang.org/x/sys/unix"

	"github.com/gardenerik/parent/internal/model"
	"github.com/gardenerik/parent/internal/sandbox"
)

// File descriptors inherited from the supervisor.
const (
	launchSpecFD = 3
	statusPipeFD = 4
)

// ChildInitCommand is the hidden child side of a run: it receives the launch
// spec from the supervisor, confines the current process and execs the
// target. It never returns to main on the success path.
type ChildInitCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewChildInitCommand returns the child-init command.
func NewChildInitCommand(rootCmd *RootCommand, app *kingpin.Application) *ChildInitCommand {
	c := &ChildInitCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("child-init", "Internal command, applies confinement and execs the target.").Hidden()

	return c
}

func (c ChildInitCommand) Name() string { return c.Cmd.FullCommand() }

func (c ChildInitCommand) Run(ctx context.Context) error {
	specFile := os.NewFile(launchSpecFD, "launch-spec")
	statusPipe := os.NewFile(statusPipeFD, "status-pipe")

	// The status pipe must vanish when the target is exec'd: the supervisor
	// reads it to EOF, and an empty read means the target ran.
	unix.CloseOnExec(statusPipeFD)

	var spec model.LaunchSpec
	if err := json.NewDecoder(specFile).Decode(&spec); err != nil {
		c.abort(statusPipe, fmt.Errorf("could not decode launch spec: %w", err))
	}
	_ = specFile.Close()

	// Only returns on failure: success replaces this process with the
	// target program.
	err := sandbox.Run(spec)
	c.abort(statusPipe, err)

	return nil
}

// abort reports the pre-exec failure to the supervisor over the status pipe
// and terminates the child with the reserved status, never proceeding to a
// partially confined exec.
func (c ChildInitCommand) abort(statusPipe *os.File, err error) {
	fmt.Fprintf(statusPipe, "%v", err)
	_ = statusPipe.Close()

	if errors.Is(err, sandbox.ErrExec) {
		os.Exit(model.ExitCodeExecFailure)
	}
	os.Exit(model.ExitCodeSetupFailure)
}
