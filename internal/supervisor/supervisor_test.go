package supervisor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/protocol"
)

var errFakeExit = errors.New("exit status 1")

// captureCloser records everything written to the fake subprocess stdin.
type captureCloser struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (c *captureCloser) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	return c.buf.Write(p)
}

func (c *captureCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureCloser) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw := strings.TrimSpace(c.buf.String())
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

func (c *captureCloser) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeProc scripts a wrapper subprocess: the test emits protocol lines and
// controls when and how the process exits.
type fakeProc struct {
	stdin *captureCloser
	pr    *io.PipeReader
	pw    *io.PipeWriter

	exitOnTerminate bool
	waitErr         error
	exitOnce        sync.Once
	exited          chan struct{}

	terminates atomic.Int32
	kills      atomic.Int32
}

func newFakeProc(exitOnTerminate bool) *fakeProc {
	pr, pw := io.Pipe()
	return &fakeProc{
		stdin:           &captureCloser{},
		pr:              pr,
		pw:              pw,
		exitOnTerminate: exitOnTerminate,
		exited:          make(chan struct{}),
	}
}

func (p *fakeProc) Stdin() io.WriteCloser { return p.stdin }
func (p *fakeProc) Stdout() io.Reader     { return p.pr }

func (p *fakeProc) Terminate() error {
	p.terminates.Add(1)
	if p.exitOnTerminate {
		p.exit(nil)
	}
	return nil
}

func (p *fakeProc) Kill() error {
	p.kills.Add(1)
	p.exit(errFakeExit)
	return nil
}

func (p *fakeProc) Wait() error {
	<-p.exited
	return p.waitErr
}

// emit writes one protocol line to the fake stdout.
func (p *fakeProc) emit(line string) {
	_, _ = p.pw.Write([]byte(line + "\n"))
}

// emitRaw writes bytes without a trailing newline, for partial-line tests.
func (p *fakeProc) emitRaw(raw string) {
	_, _ = p.pw.Write([]byte(raw))
}

// exit ends the subprocess: stdout reaches EOF and Wait returns err.
func (p *fakeProc) exit(err error) {
	p.exitOnce.Do(func() {
		p.waitErr = err
		_ = p.pw.Close()
		close(p.exited)
	})
}

func newTestSupervisor(proc Proc) *Supervisor {
	return New(
		Config{Command: "fake-wrapper", GracefulShutdown: 100 * time.Millisecond},
		WithSpawn(func(context.Context, *domain.TaskRequest) (Proc, error) { return proc, nil }),
	)
}

func testRequest() *domain.TaskRequest {
	return &domain.TaskRequest{
		TaskID:           "task-1",
		Prompt:           "fix the tests",
		WorkingDirectory: "/work/repo",
		TimeoutMs:        5000,
	}
}

func TestExecuteCompletion(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	go func() {
		proc.emit(`{"event":"ready"}`)
		proc.emit(`{"event":"run_started"}`)
		proc.emit(`{"event":"stream","message":"working"}`)
		proc.emit(`{"event":"run_completed","outcome":"completed"}`)
	}()

	res, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.TaskStateCompleted, res.State)
	assert.Equal(t, "task-1", res.TaskID)
	assert.False(t, res.LimitReached)
	assert.Empty(t, res.EventLog, "successful results carry no diagnostic log")

	// Finalization must have requested termination before Execute returned.
	assert.True(t, proc.stdin.Closed())
	assert.GreaterOrEqual(t, proc.terminates.Load(), int32(1))
}

func TestExecuteSendsPromptExactlyOnce(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	go func() {
		proc.emit(`{"event":"ready"}`)
		proc.emit(`{"event":"ready"}`)
		proc.emit(`{"status":"ready"}`)
		proc.emit(`{"event":"run_completed","outcome":"completed"}`)
	}()

	_, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	lines := proc.stdin.Lines()
	require.Len(t, lines, 1, "exactly one command per subprocess lifetime")

	cmd, ok := protocol.ParseCommand([]byte(lines[0]))
	require.True(t, ok)
	assert.Equal(t, protocol.ActionPrompt, cmd.Action)
	assert.Equal(t, "fix the tests", cmd.Prompt)
	require.NotNil(t, cmd.Options)
	assert.Equal(t, "/work/repo", cmd.Options.WorkingDirectory)
}

func TestExecuteLimitReclassification(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	go func() {
		proc.emit(`{"event":"ready"}`)
		proc.emit(`{"event":"run_started"}`)
		proc.emit(`{"event":"limit_notice","message":"Usage limit reached"}`)
		proc.emit(`{"event":"run_failed","outcome":"failed"}`)
	}()

	res, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.TaskStateLimitReached, res.State)
	assert.True(t, res.LimitReached)
	require.NotNil(t, res.LimitDetails)
	assert.Equal(t, "Usage limit reached", res.LimitDetails.Notice)
}

func TestExecuteFailure(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	go func() {
		proc.emit(`{"event":"ready"}`)
		proc.emit(`{"event":"run_started"}`)
		proc.emit(`{"event":"run_failed","outcome":"failed","reason":"exception"}`)
	}()

	res, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.TaskStateFailed, res.State)
	assert.Equal(t, "exception", res.Message)
	assert.NotEmpty(t, res.EventLog, "failures carry the rolling event log")
}

func TestExecuteTimeout(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	req := testRequest()
	req.TimeoutMs = 0
	req.Options.TimeoutMs = 100 // per-task value wins

	go func() {
		proc.emit(`{"event":"ready"}`)
		// No terminal event ever arrives.
	}()

	start := time.Now()
	res, err := sup.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.TaskStateTimeout, res.State)
	assert.Less(t, time.Since(start), 3*time.Second, "timeout must not hang")
	assert.True(t, proc.stdin.Closed())
}

func TestExecuteEscalatesToKill(t *testing.T) {
	proc := newFakeProc(false) // ignores graceful termination
	sup := newTestSupervisor(proc)

	go func() {
		proc.emit(`{"event":"ready"}`)
		proc.emit(`{"event":"run_failed","outcome":"failed"}`)
	}()

	res, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateFailed, res.State)

	// The subprocess outlives the grace window; the watchdog must kill it.
	require.Eventually(t, func() bool {
		return proc.kills.Load() == 1
	}, 2*time.Second, 10*time.Millisecond, "no orphaned subprocesses")
}

func TestExecuteImplicitCompletionOnCleanExit(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	go func() {
		proc.emit(`{"event":"ready"}`)
		proc.emit(`{"event":"run_started"}`)
		proc.exit(nil) // clean exit, no terminal event
	}()

	res, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.TaskStateCompleted, res.State)
}

func TestExecuteUncleanExit(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	go func() {
		proc.emit(`{"event":"ready"}`)
		proc.exit(errFakeExit)
	}()

	res, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.TaskStateTerminated, res.State)
	assert.Contains(t, res.Message, "exited uncleanly")
}

func TestExecuteCleanExitBeforeCommand(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	go func() {
		proc.exit(nil) // exits before ever signaling readiness
	}()

	res, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.TaskStateTerminated, res.State)
}

func TestExecuteSpawnFailure(t *testing.T) {
	sup := New(
		Config{Command: "fake-wrapper"},
		WithSpawn(func(context.Context, *domain.TaskRequest) (Proc, error) {
			return nil, errors.New("no such file or directory")
		}),
	)

	res, err := sup.Execute(context.Background(), testRequest())
	require.ErrorIs(t, err, cctmerrors.ErrSpawnFailed)
	assert.Nil(t, res)
}

func TestExecuteRejectsInvalidRequest(t *testing.T) {
	sup := newTestSupervisor(newFakeProc(true))

	_, err := sup.Execute(context.Background(), &domain.TaskRequest{TaskID: "t", Prompt: " "})
	require.ErrorIs(t, err, cctmerrors.ErrInvalidTask)
}

func TestExecuteFinalizationIsIdempotent(t *testing.T) {
	proc := newFakeProc(false)
	sup := newTestSupervisor(proc)

	go func() {
		proc.emit(`{"event":"ready"}`)
		proc.emit(`{"event":"run_completed","outcome":"completed"}`)
	}()

	res, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateCompleted, res.State)

	// Late failure events and the exit notification must not change the
	// produced result or re-trigger termination.
	proc.emit(`{"event":"run_failed","outcome":"failed"}`)
	proc.emit(`{"event":"fatal","message":"late noise"}`)
	proc.exit(nil)

	require.Eventually(t, func() bool {
		select {
		case <-proc.exited:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.TaskStateCompleted, res.State)
	assert.True(t, res.Success)
	assert.Equal(t, int32(1), proc.terminates.Load())
}

func TestExecuteContextCancellation(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		proc.emit(`{"event":"ready"}`)
		cancel()
	}()

	res, err := sup.Execute(ctx, testRequest())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.TaskStateCancelled, res.State)

	// A cancel command should have been offered before termination.
	require.Eventually(t, func() bool {
		for _, line := range proc.stdin.Lines() {
			if cmd, ok := protocol.ParseCommand([]byte(line)); ok && cmd.Action == protocol.ActionCancel {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestExecuteReassemblesPartialLines(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	go func() {
		proc.emit(`{"event":"ready"}`)
		proc.emitRaw(`{"event":"run_comp`)
		time.Sleep(20 * time.Millisecond)
		proc.emitRaw("leted\",\"outcome\":\"completed\"}\n")
	}()

	res, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateCompleted, res.State)
}

func TestExecuteIgnoresOpaqueLogLines(t *testing.T) {
	proc := newFakeProc(true)
	sup := newTestSupervisor(proc)

	go func() {
		proc.emit("booting wrapper v2.1")
		proc.emit(`{"event":"ready"}`)
		proc.emit("[debug] some internal chatter")
		proc.emit(`{"event": malformed`)
		proc.emit(`{"event":"run_completed","outcome":"completed"}`)
	}()

	res, err := sup.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
}
