package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/halidom/internal/cache"
	"github.com/dshills/halidom/internal/logging"
)

const (
	// DiffPlaceholder in Bridge.Args is replaced by the staged file path.
	DiffPlaceholder = "{diff}"
	// DiffFileEnv names the staged file path in the engine's environment.
	DiffFileEnv = "HALIDOM_DIFF_FILE"

	defaultReadSize = 4096
	maxStderrBytes  = 64 << 10
	waitDelay       = 5 * time.Second
)

// Chunk is one piece of engine output, in production order.
type Chunk struct {
	Seq  int
	Text string
}

// Result is the complete output of a successful engine run.
type Result struct {
	Text     string
	Chunks   int
	Duration time.Duration
	Cached   bool
}

// Bridge launches an analysis engine for each diff. A Bridge holds no mutable
// state, so one value may serve concurrent calls.
type Bridge struct {
	// Command and Args name the engine. Every DiffPlaceholder in Args is
	// replaced by the staged file path; if none is present the path is
	// appended as the last argument.
	Command string
	Args    []string
	// Dir is the engine's working directory; empty means the current one.
	Dir string
	// Env adds variables to the inherited environment.
	Env map[string]string
	// StagingDir holds staged diffs; empty means os.TempDir().
	StagingDir string
	// Timeout bounds one engine run; zero disables it.
	Timeout time.Duration
	// ReadSize is the largest chunk read from the engine at once.
	ReadSize int

	Cache  *cache.Cache
	Logger logging.Logger
}

// Stream is one running analysis. Receive from Chunks until it is closed,
// then call Wait. Abandoning a stream requires cancelling the context passed
// to Bridge.Stream.
type Stream struct {
	chunks chan Chunk
	done   chan struct{}
	result Result
	err    error
}

// Chunks delivers engine output in the order it was produced. The channel is
// closed once the engine's standard output is exhausted.
func (s *Stream) Chunks() <-chan Chunk { return s.chunks }

// Wait blocks until the engine has exited and the staged input is removed.
func (s *Stream) Wait() (Result, error) {
	<-s.done
	return s.result, s.err
}

// Analyze runs the engine over diff, writing every chunk to sink as it
// arrives, and returns the accumulated result. A nil sink only accumulates.
// If writing to sink fails the engine is stopped and the write error returned.
func (b *Bridge) Analyze(ctx context.Context, diff string, sink io.Writer) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := b.Stream(ctx, diff)
	if err != nil {
		return Result{}, err
	}
	var sinkErr error
	for c := range s.Chunks() {
		if sink == nil || sinkErr != nil {
			continue
		}
		if _, err := io.WriteString(sink, c.Text); err != nil {
			sinkErr = err
			cancel()
		}
	}
	res, err := s.Wait()
	if sinkErr != nil {
		return Result{}, fmt.Errorf("relay engine output: %w", sinkErr)
	}
	return res, err
}

// Stream stages diff and starts the engine. Staging and spawn failures are
// returned directly; everything after spawn is reported by Stream.Wait.
func (b *Bridge) Stream(ctx context.Context, diff string) (*Stream, error) {
	log := b.logger()
	if strings.TrimSpace(b.Command) == "" {
		return nil, fmt.Errorf("spawn engine: %w: no engine command configured", ErrSpawnFailed)
	}

	var key string
	if b.Cache.Enabled() {
		key = cache.BuildCacheKey(b.Command, b.Args, diff)
		if text, ok := b.Cache.Get(key); ok {
			log.Debug("engine result served from cache")
			return cachedStream(text), nil
		}
	}

	staged, err := stage(b.StagingDir, diff)
	if err != nil {
		return nil, fmt.Errorf("stage input: %w: %w", ErrStagingFailed, err)
	}
	log.Debug("diff staged", "path", staged.path, "bytes", len(diff))

	// The deadline covers the engine run only, not staging.
	parent := ctx
	var cancel context.CancelFunc
	if b.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, b.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	cmd := exec.CommandContext(ctx, b.Command, b.expandArgs(staged.path)...)
	cmd.Dir = b.Dir
	cmd.Env = b.environ(staged.path)
	cmd.WaitDelay = waitDelay
	bindLifetime(cmd)

	var pipes []*os.File
	closePipes := func() {
		for _, f := range pipes {
			f.Close()
		}
	}
	fail := func(err error) (*Stream, error) {
		timedOut := parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded)
		cancel()
		closePipes()
		b.cleanup(staged)
		if timedOut {
			return nil, fmt.Errorf("spawn engine: %w after %s", ErrEngineTimeout, b.Timeout)
		}
		return nil, fmt.Errorf("spawn engine: %w: %w", ErrSpawnFailed, err)
	}
	// Plain pipes rather than StdoutPipe: Wait must return when the engine
	// exits, even if something it started still holds the write ends.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return fail(err)
	}
	pipes = append(pipes, stdout, stdoutW)
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		return fail(err)
	}
	pipes = append(pipes, stderr, stderrW)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fail(err)
	}
	stdoutW.Close()
	stderrW.Close()
	log.Debug("engine started", "pid", cmd.Process.Pid, "command", b.Command)

	s := &Stream{
		chunks: make(chan Chunk),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer cancel()
		s.result, s.err = b.drain(ctx, parent, cmd, stdout, stderr, s.chunks)
		b.cleanup(staged)
		if s.err != nil {
			log.Debug("engine failed", "error", s.err)
			return
		}
		s.result.Duration = time.Since(start)
		log.Debug("engine completed", "chunks", s.result.Chunks, "duration", s.result.Duration)
		if key != "" {
			if err := b.Cache.Put(key, s.result.Text); err != nil {
				log.Warn("caching engine result", "error", err)
			}
		}
	}()
	return s, nil
}

// drain relays stdout as chunks and captures stderr until the engine exits
// and its output is exhausted.
func (b *Bridge) drain(ctx, parent context.Context, cmd *exec.Cmd, stdout, stderr *os.File, out chan<- Chunk) (Result, error) {
	defer stdout.Close()
	defer stderr.Close()
	var (
		acc     bytes.Buffer
		errTail = &tailBuffer{max: maxStderrBytes}
		count   int
		g       errgroup.Group
	)
	g.Go(func() error {
		defer close(out)
		n, err := relay(ctx, stdout, b.readSize(), out, &acc)
		count = n
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(errTail, stderr)
		return err
	})
	read := make(chan error, 1)
	go func() { read <- g.Wait() }()

	waitErr := cmd.Wait()
	// Anything the engine left running in its group would keep the pipes
	// open forever.
	_ = killGroup(cmd.Process.Pid)

	var readErr error
	select {
	case readErr = <-read:
	case <-time.After(waitDelay):
		// A process outside the group still holds the write ends.
		stdout.Close()
		stderr.Close()
		<-read
		readErr = exec.ErrWaitDelay
	}

	switch {
	case parent.Err() != nil:
		return Result{}, fmt.Errorf("engine exit: %w", parent.Err())
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Result{}, fmt.Errorf("engine exit: %w after %s", ErrEngineTimeout, b.Timeout)
	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return Result{}, fmt.Errorf("engine exit: %w", &EngineError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(errTail.String()),
				Err:      waitErr,
			})
		}
		return Result{}, fmt.Errorf("engine exit: %w", waitErr)
	case readErr != nil:
		return Result{}, fmt.Errorf("read engine output: %w", readErr)
	}

	if !utf8.Valid(acc.Bytes()) {
		return Result{}, fmt.Errorf("engine exit: %w", ErrEncodingFailed)
	}
	return Result{Text: acc.String(), Chunks: count}, nil
}

// relay reads r until EOF, sending each read as one chunk and appending it to
// acc. Reads block; there is no polling.
func relay(ctx context.Context, r io.Reader, size int, out chan<- Chunk, acc *bytes.Buffer) (int, error) {
	buf := make([]byte, size)
	seq := 0
	for {
		n, err := r.Read(buf)
		if n > 0 {
			text := string(buf[:n])
			acc.WriteString(text)
			select {
			case out <- Chunk{Seq: seq, Text: text}:
				seq++
			case <-ctx.Done():
				return seq, ctx.Err()
			}
		}
		if errors.Is(err, io.EOF) {
			return seq, nil
		}
		if err != nil {
			return seq, err
		}
	}
}

func (b *Bridge) cleanup(staged *stagedInput) {
	if err := staged.remove(); err != nil {
		b.logger().Warn("removing staged diff", "path", staged.path, "error", err)
	}
}

func (b *Bridge) expandArgs(path string) []string {
	args := make([]string, 0, len(b.Args)+1)
	replaced := false
	for _, a := range b.Args {
		if strings.Contains(a, DiffPlaceholder) {
			a = strings.ReplaceAll(a, DiffPlaceholder, path)
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, path)
	}
	return args
}

func (b *Bridge) environ(path string) []string {
	env := append([]string{}, os.Environ()...)
	for k, v := range b.Env {
		env = append(env, k+"="+v)
	}
	return append(env, DiffFileEnv+"="+path)
}

func (b *Bridge) readSize() int {
	if b.ReadSize > 0 {
		return b.ReadSize
	}
	return defaultReadSize
}

func (b *Bridge) logger() logging.Logger {
	if b.Logger == nil {
		return logging.Nop()
	}
	return b.Logger
}

func cachedStream(text string) *Stream {
	s := &Stream{
		chunks: make(chan Chunk, 1),
		done:   make(chan struct{}),
		result: Result{Text: text, Chunks: 1, Cached: true},
	}
	s.chunks <- Chunk{Seq: 0, Text: text}
	close(s.chunks)
	close(s.done)
	return s
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
