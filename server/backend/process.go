package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const maxLineSize = 16 * 1024 * 1024

// Process is a backend running as a child process speaking JSON-RPC over stdin and stdout
type Process struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	output    chan []byte
	writes    chan *write
	stopping  chan struct{}
	done      chan struct{}
	grace     time.Duration
	logger    zerolog.Logger
	closeOnce sync.Once
	err       error
}

// write is a line queued for the stdin writer
type write struct {
	line   []byte
	result chan error
}

// Option represents process option
type Option func(p *Process)

// WithGrace sets how long to wait for exit after closing stdin and again after SIGTERM
func WithGrace(grace time.Duration) Option {
	return func(p *Process) {
		if grace > 0 {
			p.grace = grace
		}
	}
}

// WithEnv appends environment variables
func WithEnv(env ...string) Option {
	return func(p *Process) {
		p.cmd.Env = append(p.cmd.Env, env...)
	}
}

// WithDir sets the working directory
func WithDir(dir string) Option {
	return func(p *Process) {
		p.cmd.Dir = dir
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Process) {
		p.logger = logger
	}
}

// Send writes line followed by a newline. It returns when the line is written, ctx ends or the
// backend stops; a backend that stopped reading its input blocks only the caller.
func (p *Process) Send(ctx context.Context, line []byte) error {
	w := &write{line: append(append(make([]byte, 0, len(line)+1), line...), '\n'), result: make(chan error, 1)}
	select {
	case p.writes <- w:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopping:
		return ErrClosed
	case <-p.done:
		return ErrClosed
	}
	select {
	case err := <-w.result:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrClosed
	}
}

// writeInput serializes writes to stdin; closing stdin unblocks a pending write
func (p *Process) writeInput() {
	for {
		select {
		case <-p.stopping:
			return
		case <-p.done:
			return
		case w := <-p.writes:
			_, err := p.stdin.Write(w.line)
			w.result <- err
		}
	}
}

func (p *Process) Output() <-chan []byte {
	return p.output
}

func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error once the process exited
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Close closes stdin, then escalates to SIGTERM and SIGKILL if the process does not exit within grace.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopping)
		_ = p.stdin.Close()
		if p.wait(p.grace) {
			return
		}
		p.signal(syscall.SIGTERM)
		if p.wait(p.grace) {
			return
		}
		p.logger.Warn().Msg("killing backend")
		p.signal(syscall.SIGKILL)
		p.wait(p.grace)
	})
	return nil
}

// signal delivers sig to the backend process group so helpers it spawned stop too
func (p *Process) signal(sig syscall.Signal) {
	if err := syscall.Kill(-p.cmd.Process.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Debug().Err(err).Str("signal", sig.String()).Msg("failed to signal backend")
	}
}

func (p *Process) wait(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *Process) readOutput(stdout io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(p.output)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := append([]byte{}, scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		p.output <- line
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn().Err(err).Msg("backend output failed")
	}
}

func (p *Process) readErrors(stderr io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		p.logger.Debug().Str("stream", "stderr").Msg(scanner.Text())
	}
}

// Start starts name with args
func Start(name string, args []string, options ...Option) (*Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	ret := &Process{
		cmd:      cmd,
		output:   make(chan []byte, 64),
		writes:   make(chan *write),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
		grace:    2 * time.Second,
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(ret)
	}
	var err error
	if ret.stdin, err = cmd.StdinPipe(); err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start backend %v: %w", name, err)
	}
	ret.logger = ret.logger.With().Int("pid", cmd.Process.Pid).Logger()
	wg := &sync.WaitGroup{}
	wg.Add(2)
	go ret.writeInput()
	go ret.readOutput(stdout, wg)
	go ret.readErrors(stderr, wg)
	go func() {
		wg.Wait()
		ret.err = cmd.Wait()
		ret.logger.Debug().Err(ret.err).Msg("backend exited")
		close(ret.done)
	}()
	return ret, nil
}

// Command returns a factory starting a dedicated process per session
func Command(name string, args []string, options ...Option) Factory {
	return func(ctx context.Context, sessionID string) (Backend, error) {
		return Start(name, args, append(options, WithEnv("MCP_SESSION_ID="+sessionID))...)
	}
}
