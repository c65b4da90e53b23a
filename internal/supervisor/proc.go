package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
)

// Proc is the handle the supervisor drives for one subprocess lifetime.
// The production implementation wraps exec.Cmd; tests substitute a scripted
// fake so no real subprocess is needed.
type Proc interface {
	// Stdin returns the subprocess input stream. Closing it signals the
	// wrapper that no further commands will arrive.
	Stdin() io.WriteCloser

	// Stdout returns the subprocess output stream. It yields bytes, not
	// discrete messages; line reassembly is the caller's job.
	Stdout() io.Reader

	// Terminate requests graceful termination.
	Terminate() error

	// Kill forcibly ends the subprocess.
	Kill() error

	// Wait blocks until the subprocess exits and returns its exit error,
	// nil for a clean exit.
	Wait() error
}

// SpawnFunc starts the subprocess for one task. It is the seam between the
// supervisor's state machine and the operating system.
type SpawnFunc func(ctx context.Context, req *domain.TaskRequest) (Proc, error)

// execProc adapts exec.Cmd to the Proc interface.
type execProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *execProc) Stdin() io.WriteCloser { return p.stdin }

func (p *execProc) Stdout() io.Reader { return p.stdout }

// Terminate sends SIGTERM, treating an already-exited process as success.
func (p *execProc) Terminate() error {
	return p.signal(syscall.SIGTERM)
}

// Kill sends SIGKILL, treating an already-exited process as success.
func (p *execProc) Kill() error {
	return p.signal(os.Kill)
}

func (p *execProc) Wait() error {
	return p.cmd.Wait()
}

func (p *execProc) signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// DefaultSpawn returns a SpawnFunc that runs the configured wrapper command
// with piped stdin/stdout. Stderr is inherited so wrapper diagnostics reach
// the worker's own log stream.
func DefaultSpawn(command string, args []string) SpawnFunc {
	return func(_ context.Context, req *domain.TaskRequest) (Proc, error) {
		// exec.Command rather than CommandContext: the supervisor owns the
		// full termination sequencing, including the escalation window.
		cmd := exec.Command(command, args...)
		if req.WorkingDirectory != "" {
			cmd.Dir = req.WorkingDirectory
		}
		cmd.Stderr = os.Stderr

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &execProc{cmd: cmd, stdin: stdin, stdout: stdout}, nil
	}
}
