package bridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sandevgo/termbridge/pkg/log"
)

// Config describes the child process a Supervisor owns.
type Config struct {
	Command string
	Args    []string
	Dir     string
	Env     []string

	// Prompt is the framing sentinel the child emits when ready.
	Prompt string

	// RunTimeout bounds one command/response cycle. Expiry force-kills
	// the child and is treated as stream closure, so the session
	// registry restarts it on next use. Zero disables the bound; a hung
	// child then blocks its session (and only its session) forever.
	RunTimeout time.Duration
}

// Supervisor owns exactly one child terminal process: it spawns it,
// serializes command/response cycles against its stdin/stdout pair and
// tears it down. It never restarts the child on its own; that is the
// session registry's job.
type Supervisor struct {
	cfg    Config
	framer *Framer

	// runMu serializes Run cycles. The child is single-threaded: a
	// second command written before the first response is fully
	// consumed would desynchronize framing irrecoverably, so exclusion
	// is enforced here rather than detected after the fact.
	runMu sync.Mutex

	// procMu guards the process handle fields below.
	procMu sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	done   chan struct{}

	activeMu   sync.Mutex
	lastActive time.Time
}

func New(cfg Config) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		framer: NewFramer(cfg.Prompt),
	}
}

// Start spawns the child with redirected stdin/stdout and drains its
// startup banner up to the first sentinel. Spawn failure is returned to
// the caller; there is no retry. Starting an already-live supervisor is
// a no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	if s.aliveLocked() {
		return nil
	}

	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn %s: %w", s.cfg.Command, err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	s.done = done
	s.touch()

	// Consume the startup banner; its payload is discarded. The drain
	// honors the run deadline: a child that spawns but never emits the
	// sentinel is a spawn failure, not a permanent stall.
	bannerCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		bannerCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	if _, err := s.readFrame(bannerCtx, s.stdout, cmd.Process); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("child closed stream during startup banner")
		s.stopLocked()
		return fmt.Errorf("failed to read startup banner: %w", err)
	}

	log.FromCtx(ctx).Debug().Str("command", s.cfg.Command).Int("pid", cmd.Process.Pid).Msg("terminal process started")
	return nil
}

// Run writes one command line to the child and returns the framed
// response with surrounding whitespace trimmed. Concurrent callers
// queue on the run lock; within one supervisor commands observe program
// order.
//
// Stream closure (the child exited, the pipe broke, or the run deadline
// expired) is not an error here: the partial payload is returned and
// the supervisor reports itself dead, so the next GetOrCreate through
// the session registry spawns a fresh child.
func (s *Supervisor) Run(ctx context.Context, command string) (string, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.procMu.Lock()
	stdin := s.stdin
	stdout := s.stdout
	var proc *os.Process
	if s.cmd != nil {
		proc = s.cmd.Process
	}
	s.procMu.Unlock()

	if stdin == nil || stdout == nil {
		return "", ErrNotStarted
	}
	s.touch()

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	if _, err := io.WriteString(stdin, command+"\n"); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("write to terminal process failed")
		return "", nil
	}

	payload, err := s.readFrame(ctx, stdout, proc)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("command", command).Msg("terminal stream closed mid-run")
	}
	return s.trim(payload), nil
}

// readFrame performs one framed read, honoring ctx: on cancellation or
// deadline the child is force-killed, which unblocks the pending read
// with EOF. Either way the goroutine below is always reaped before
// returning, so no two readers ever touch stdout concurrently.
func (s *Supervisor) readFrame(ctx context.Context, stdout *bufio.Reader, proc *os.Process) (string, error) {
	type frame struct {
		payload string
		err     error
	}

	ch := make(chan frame, 1)
	go func() {
		payload, err := s.framer.ReadFrame(stdout)
		ch <- frame{payload: payload, err: err}
	}()

	select {
	case <-ctx.Done():
		if proc != nil {
			_ = proc.Kill()
		}
		res := <-ch
		if res.err == nil {
			res.err = ErrStreamClosed
		}
		return res.payload, res.err
	case res := <-ch:
		return res.payload, res.err
	}
}

func (s *Supervisor) trim(payload string) string {
	payload = strings.TrimSpace(payload)
	// Defensive: a stray prompt echoed at the head of a frame is noise,
	// never content.
	payload = strings.TrimPrefix(payload, s.framer.Prompt())
	return strings.TrimSpace(payload)
}

// Stop closes stdin, signals the child to terminate and awaits its
// exit, then clears the handle. It is idempotent and never fails for an
// already-dead or never-started process.
func (s *Supervisor) Stop() error {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	s.stopLocked()
	return nil
}

func (s *Supervisor) stopLocked() {
	if s.cmd == nil {
		return
	}
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd.Process != nil {
		// "process already finished" is a stop race, not a failure.
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
	}
	<-s.done

	s.cmd = nil
	s.stdin = nil
	s.stdout = nil
	s.done = nil
}

// Alive reports whether the child process is currently running.
func (s *Supervisor) Alive() bool {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	return s.aliveLocked()
}

func (s *Supervisor) aliveLocked() bool {
	if s.cmd == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Supervisor) touch() {
	s.activeMu.Lock()
	s.lastActive = time.Now()
	s.activeMu.Unlock()
}

// LastActive returns the time of the most recent Start or Run.
func (s *Supervisor) LastActive() time.Time {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.lastActive
}
