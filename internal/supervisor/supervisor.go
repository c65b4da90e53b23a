// Package supervisor owns one coding-agent subprocess per task: it spawns the
// wrapper, writes exactly one prompt command once the wrapper signals
// readiness, reassembles and parses its line-delimited event stream, drives
// escalating termination, and enforces a wall-clock timeout. The stream of
// normalized events is reduced by the outcome policy into a single
// ExecutionResult, produced exactly once per task.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/clock"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/constants"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/outcome"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/protocol"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/sessionlog"
)

// Config holds the subprocess invocation settings shared by all tasks.
type Config struct {
	// Command is the wrapper executable.
	Command string

	// Args are fixed arguments passed to every invocation.
	Args []string

	// GracefulShutdown is the escalation window between the graceful
	// termination request and the forced kill.
	GracefulShutdown time.Duration
}

// Supervisor executes tasks against the coding-agent wrapper. It is safe for
// concurrent use: all per-task state lives in the per-call execution.
type Supervisor struct {
	cfg     Config
	spawn   SpawnFunc
	logger  zerolog.Logger
	clk     clock.Clock
	locator *sessionlog.Locator
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the supervisor logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithClock sets the clock used for result timestamps.
func WithClock(clk clock.Clock) Option {
	return func(s *Supervisor) { s.clk = clk }
}

// WithSpawn replaces the process spawner. Tests use this to script the
// subprocess without forking.
func WithSpawn(spawn SpawnFunc) Option {
	return func(s *Supervisor) { s.spawn = spawn }
}

// WithSessionLocator enables post-mortem transcript discovery on failures.
func WithSessionLocator(loc *sessionlog.Locator) Option {
	return func(s *Supervisor) { s.locator = loc }
}

// New creates a Supervisor for the given wrapper configuration.
func New(cfg Config, opts ...Option) *Supervisor {
	if cfg.Command == "" {
		cfg.Command = constants.DefaultAgentCommand
	}
	if cfg.GracefulShutdown <= 0 {
		cfg.GracefulShutdown = constants.DefaultGracefulShutdown
	}
	s := &Supervisor{
		cfg:    cfg,
		logger: zerolog.Nop(),
		clk:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.spawn == nil {
		s.spawn = DefaultSpawn(cfg.Command, cfg.Args)
	}
	return s
}

// execution is the per-task runtime state. Single-writer: only the read loop
// touches sentCommand and the policy; finalization from any goroutine is
// serialized by the completed flag.
type execution struct {
	req    *domain.TaskRequest
	proc   Proc
	policy *outcome.Policy
	logger zerolog.Logger

	sentCommand bool
	runState    protocol.RunState

	// sessionID and exitCode cross goroutines: the read loop writes them,
	// finalization (possibly on the timer or context goroutine) reads them.
	sessionID atomic.Pointer[string]
	exitCode  atomic.Pointer[int]

	completed atomic.Bool
	result    *domain.ExecutionResult
	done      chan struct{} // closed once result is set and termination requested
	exited    chan struct{} // closed once proc.Wait returned
	startTime time.Time
}

// Execute runs one task to its terminal state and resolves exactly once.
//
// The returned error is non-nil only for pre-protocol failures (invalid
// request, spawn failure). Every failure observed through the protocol,
// including timeouts and unclean exits, is reported in the ExecutionResult
// so the queue layer can apply its own retry policy uniformly.
func (s *Supervisor) Execute(ctx context.Context, req *domain.TaskRequest) (*domain.ExecutionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger := s.logger.With().Str("task_id", req.TaskID).Logger()
	start := s.clk.Now()

	proc, err := s.spawn(ctx, req)
	if err != nil {
		logger.Error().Err(err).Str("command", s.cfg.Command).Msg("subprocess spawn failed")
		return nil, cctmerrors.Wrapf(cctmerrors.ErrSpawnFailed, "spawn %s: %v", s.cfg.Command, err)
	}

	e := &execution{
		req:       req,
		proc:      proc,
		policy:    outcome.NewPolicy(outcome.WithLogger(logger), outcome.WithClock(s.clk)),
		logger:    logger,
		runState:  protocol.RunPending,
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
		startTime: start,
	}

	// Exactly one timeout per task, armed at acceptance. A fired timer that
	// lost the finalization race is a no-op behind the completed flag.
	timeout := req.Timeout()
	timer := time.AfterFunc(timeout, func() {
		s.finalize(e, &outcome.Verdict{
			State:   domain.TaskStateTimeout,
			Message: "task exceeded wall-clock timeout of " + timeout.String(),
		})
	})
	defer timer.Stop()

	go s.readLoop(e)
	go s.watchContext(ctx, e)

	<-e.done
	return e.result, nil
}

// readLoop is the single-threaded reducer for one subprocess: it reassembles
// stdout into lines, parses and normalizes each one in arrival order, feeds
// the outcome policy, and handles process exit after the stream drains.
func (s *Supervisor) readLoop(e *execution) {
	scanner := bufio.NewScanner(e.proc.Stdout())
	scanner.Buffer(make([]byte, 64*1024), constants.MaxLineSize)

	for scanner.Scan() {
		s.handleLine(e, scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		e.logger.Warn().Err(err).Msg("subprocess output stream error")
	}

	// The stream is fully drained; now observe the exit. Wait must come
	// after reading to avoid losing buffered output.
	waitErr := e.proc.Wait()
	close(e.exited)
	s.handleExit(e, waitErr)
}

// handleLine processes one complete output line.
func (s *Supervisor) handleLine(e *execution, line []byte) {
	ev, ok := protocol.ParseLine(line)
	if !ok {
		// Not valid structured data: incidental log output, never an error.
		if len(line) > 0 {
			e.logger.Debug().Str("line", string(line)).Msg("subprocess log output")
		}
		return
	}

	if e.sessionID.Load() == nil {
		if id := sessionlog.ExtractSessionID(ev); id != "" {
			e.sessionID.Store(&id)
		}
	}
	e.runState = e.runState.Advance(ev.Event)

	norm := protocol.Normalize(ev)
	e.logger.Debug().
		Str("event", string(ev.Event)).
		Str("status", norm.Status).
		Str("run_state", string(e.runState)).
		Msg("subprocess event")

	if e.completed.Load() {
		// Already finalized; keep draining so the pipe can reach EOF.
		return
	}

	// One prompt command per subprocess lifetime, no matter how many
	// ready-like events the wrapper re-announces.
	if norm.Status == protocol.StatusReady && !e.sentCommand {
		if err := s.sendPrompt(e); err != nil {
			e.logger.Error().Err(err).Msg("failed to write prompt command")
			s.finalize(e, &outcome.Verdict{
				State:   domain.TaskStateTerminated,
				Message: "failed to write prompt command: " + err.Error(),
			})
			return
		}
		e.sentCommand = true
	}

	if verdict := e.policy.Observe(ev, norm); verdict != nil {
		s.finalize(e, verdict)
	}
}

// sendPrompt serializes the task parameters into the prompt command and
// writes it to the wrapper's stdin.
func (s *Supervisor) sendPrompt(e *execution) error {
	cmd := protocol.NewPromptCommand(e.req.Prompt, &protocol.PromptOptions{
		Model:            e.req.Options.Model,
		MaxTokens:        e.req.Options.MaxTokens,
		Temperature:      e.req.Options.Temperature,
		PermissionMode:   e.req.Options.PermissionMode,
		WorkingDirectory: e.req.WorkingDirectory,
		SessionName:      e.req.SessionName,
	})
	line, err := cmd.MarshalLine()
	if err != nil {
		return err
	}
	if _, err := e.proc.Stdin().Write(line); err != nil {
		return err
	}
	e.logger.Info().Msg("prompt command sent")
	return nil
}

// handleExit finalizes tasks whose subprocess exited before any terminal
// event was observed.
func (s *Supervisor) handleExit(e *execution, waitErr error) {
	if e.completed.Load() {
		return
	}

	switch {
	case waitErr == nil && e.sentCommand:
		// The wrapper is allowed to exit on its own after finishing.
		s.finalize(e, &outcome.Verdict{
			State:   domain.TaskStateCompleted,
			Success: true,
			Message: "subprocess exited cleanly after completing its work",
		})
	case waitErr == nil:
		s.finalize(e, &outcome.Verdict{
			State:   domain.TaskStateTerminated,
			Message: "subprocess exited before accepting a command",
		})
	default:
		if code := exitCode(waitErr); code != nil {
			e.exitCode.Store(code)
		}
		s.finalize(e, &outcome.Verdict{
			State:   domain.TaskStateTerminated,
			Message: "subprocess exited uncleanly: " + waitErr.Error(),
		})
	}
}

// watchContext converts caller cancellation into a cancel command plus the
// normal termination sequencing.
func (s *Supervisor) watchContext(ctx context.Context, e *execution) {
	select {
	case <-ctx.Done():
	case <-e.done:
		return
	}
	if e.completed.Load() {
		return
	}

	// Best-effort: give the wrapper the chance to acknowledge before the
	// graceful-then-forced sequencing tears it down.
	if line, err := protocol.NewCancelCommand().MarshalLine(); err == nil {
		_, _ = e.proc.Stdin().Write(line)
	}
	s.finalize(e, &outcome.Verdict{
		State:   domain.TaskStateCancelled,
		Message: "task cancelled: " + context.Cause(ctx).Error(),
	})
}

// finalize produces the ExecutionResult and starts termination sequencing.
// It runs exactly once per task even when multiple triggers (terminal event,
// timer, exit notification, cancellation) fire concurrently; the completed
// flag is the mutual-exclusion device.
func (s *Supervisor) finalize(e *execution, v *outcome.Verdict) {
	if !e.completed.CompareAndSwap(false, true) {
		return
	}

	result := &domain.ExecutionResult{
		TaskID:       e.req.TaskID,
		State:        v.State,
		Success:      v.State.Success(),
		StartTime:    e.startTime,
		EndTime:      s.clk.Now(),
		Message:      v.Message,
		LimitReached: e.policy.LimitReached(),
		LimitDetails: e.policy.LimitDetails(),
		ExitCode:     e.exitCode.Load(),
	}
	if !result.Success {
		result.EventLog = e.policy.EventLog()
	}
	e.result = result

	e.logger.Info().
		Str("state", string(v.State)).
		Bool("success", result.Success).
		Bool("limit_reached", result.LimitReached).
		Msg("task finalized")

	s.terminate(e)
	close(e.done)

	if !result.Success {
		s.logTranscriptTail(e)
	}
}

// terminate runs the escalating termination sequence: close stdin, request
// graceful termination, then force-kill if the subprocess outlives the
// escalation window. The kill watchdog runs in the background so Execute can
// resolve as soon as termination has been requested.
func (s *Supervisor) terminate(e *execution) {
	_ = e.proc.Stdin().Close()
	if err := e.proc.Terminate(); err != nil {
		e.logger.Warn().Err(err).Msg("graceful termination request failed")
	}

	go func() {
		select {
		case <-e.exited:
		case <-time.After(s.cfg.GracefulShutdown):
			e.logger.Warn().
				Dur("grace", s.cfg.GracefulShutdown).
				Msg("subprocess outlived escalation window, killing")
			_ = e.proc.Kill()
		}
	}()
}

// logTranscriptTail is best-effort failure forensics; it never affects the
// result.
func (s *Supervisor) logTranscriptTail(e *execution) {
	id := e.sessionID.Load()
	if s.locator == nil || id == nil {
		return
	}
	path := s.locator.Locate(*id, e.req.WorkingDirectory)
	lines, err := sessionlog.Tail(path, constants.SessionTailLines)
	if err != nil {
		e.logger.Debug().Err(err).Str("path", path).Msg("session transcript unavailable")
		return
	}
	e.logger.Debug().
		Str("path", path).
		Strs("tail", lines).
		Msg("session transcript tail")
}

// exitCode extracts the exit code from a Wait error when available.
func exitCode(err error) *int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return &code
	}
	return nil
}
