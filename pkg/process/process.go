// Package process spawns, stops and queries OS processes on behalf of the server supervisor.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// stopGrace is how long Stop waits for the process to exit after killing it.
const stopGrace = 10 * time.Second

// Control is the process collaborator used by the server supervisor.
type Control interface {
	// Run executes a command and returns its combined output.
	// Output is returned even when the command exits non-zero.
	Run(ctx context.Context, name string, args ...string) (string, error)

	// KillByName force-kills every process with the given image name.
	KillByName(ctx context.Context, name string) error

	// Start spawns a long-running process.
	Start(spec Spec) (Process, error)
}

// Spec describes a process to spawn.
type Spec struct {
	Path   string
	Args   []string
	Output io.Writer // stdout and stderr; nil discards
}

// String renders the command line for logging.
func (s Spec) String() string {
	return strings.TrimSpace(s.Path + " " + strings.Join(s.Args, " "))
}

// Process is a handle to a spawned process.
type Process interface {
	PID() int
	// Stop kills the process and waits for it to exit.
	Stop() error
	// Done is closed when the process exits.
	Done() <-chan struct{}
	// Err returns the exit error once Done is closed.
	Err() error
}

// Exec implements Control with os/exec.
type Exec struct{}

// NewExec returns the os/exec backed Control.
func NewExec() *Exec {
	return &Exec{}
}

// Run implements Control.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// KillByName implements Control.
func (e *Exec) KillByName(ctx context.Context, name string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "taskkill", "/F", "/IM", name)
	} else {
		cmd = exec.CommandContext(ctx, "pkill", "-x", strings.TrimSuffix(name, ".exe"))
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		// pkill exits 1 when nothing matched
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil
		}
		return fmt.Errorf("kill %s: %s: %w", name, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Start implements Control.
func (e *Exec) Start(spec Spec) (Process, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	out := spec.Output
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.Path, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (p *execProcess) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *execProcess) Stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Kill(); err != nil {
		select {
		case <-p.done:
			return nil
		default:
		}
		return fmt.Errorf("kill pid %d: %w", p.PID(), err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(stopGrace):
		return fmt.Errorf("pid %d did not exit within %s", p.PID(), stopGrace)
	}
}
