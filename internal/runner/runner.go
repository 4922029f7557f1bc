// Package runner executes external commands for the orchestrator. Commands
// are structured argv lists, never interpolated shell strings, so artifact
// names and ids can't smuggle shell metacharacters into the container CLI.
package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command is a single external command, argv style.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory for the command. Empty means inherit.
	Dir string
}

// String renders the command for diagnostics.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes a command and returns its combined stdout/stderr. A
// non-zero exit is reported as an error alongside the captured output.
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) (string, error) {
	ec := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	ec.Dir = cmd.Dir
	out, err := ec.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("run %s: %w", cmd.String(), err)
	}
	return string(out), nil
}

// Compose builds a `docker compose` command rooted at dir.
func Compose(dir string, args ...string) Command {
	return Command{
		Name: "docker",
		Args: append([]string{"compose"}, args...),
		Dir:  dir,
	}
}

// ComposeExec builds a non-interactive `docker compose exec` into a service.
func ComposeExec(dir, service string, args ...string) Command {
	return Compose(dir, append([]string{"exec", "-T", service}, args...)...)
}
