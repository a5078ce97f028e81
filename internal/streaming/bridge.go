package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"shelfcast/internal/config"
	"shelfcast/internal/logging"
)

// UnknownLength is reported by Open: the transcoded size cannot be known in
// advance.
const UnknownLength int64 = -1

const (
	fifoName      = "audio.aac"
	waitDelay     = 2 * time.Second
	stderrTailLen = 4096
)

// ErrNotOpen is returned by Read when no session has been opened.
var ErrNotOpen = errors.New("stream not open")

// Bridge exposes a live transcode as an io.ReadCloser.
type Bridge struct {
	ffmpeg        string
	token         string
	bitrate       int64
	stallRetries  int
	stallInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	session *session
	url     string
}

// New builds a Bridge from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Bridge {
	return &Bridge{
		ffmpeg:        cfg.FFmpegBinary(),
		token:         strings.TrimSpace(cfg.Server.Token),
		bitrate:       int64(cfg.Streaming.BitrateBps),
		stallRetries:  cfg.Streaming.StallRetries,
		stallInterval: cfg.StallInterval(),
		logger:        logging.NewComponentLogger(logger, "streaming"),
	}
}

// Bitrate returns the assumed constant output bitrate in bits per second.
func (b *Bridge) Bitrate() int64 {
	return b.bitrate
}

// Opened reports whether a session is active.
func (b *Bridge) Opened() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session != nil
}

// Open tears down any previous session and starts streaming url from the
// time offset matching byte position. It returns UnknownLength once ffmpeg
// has connected to the pipe. ctx bounds startup and, when cancelled later,
// closes the session.
func (b *Bridge) Open(ctx context.Context, url string, position int64) (int64, error) {
	if err := b.Close(); err != nil {
		return 0, err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return 0, errors.New("stream open: empty url")
	}

	offsetMS := SeekOffsetMS(position, b.bitrate)
	logger := logging.WithContext(ctx, b.logger).With(
		logging.String("url", redact(url)),
		logging.Int64("position", position),
		logging.Int64("offset_ms", offsetMS),
	)

	s, err := b.start(ctx, logger, url, offsetMS)
	if err != nil {
		return 0, err
	}

	stop := context.AfterFunc(ctx, func() {
		b.closeSession(s)
	})
	b.mu.Lock()
	prev := b.session
	s.stopWatch = stop
	b.session = s
	b.url = url
	b.mu.Unlock()
	// A concurrent Open may have registered its session after our Close.
	if prev != nil {
		if prev.stopWatch != nil {
			prev.stopWatch()
		}
		prev.teardown()
	}

	logger.Info("stream opened")
	return UnknownLength, nil
}

// Seek reopens the current stream at position.
func (b *Bridge) Seek(ctx context.Context, position int64) (int64, error) {
	b.mu.Lock()
	url := b.url
	b.mu.Unlock()
	if url == "" {
		return 0, ErrNotOpen
	}
	return b.Open(ctx, url, position)
}

// Read reads transcoded bytes. It returns io.EOF when ffmpeg has finished or
// the session was closed. An empty pipe while ffmpeg is still running is
// retried a bounded number of times before being treated as end of stream.
func (b *Bridge) Read(p []byte) (int, error) {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()
	if s == nil {
		return 0, ErrNotOpen
	}
	if len(p) == 0 {
		return 0, nil
	}

	stalls := 0
	for {
		n, err := s.fifo.Read(p)
		if n > 0 {
			return n, nil
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, os.ErrClosed):
			return 0, io.EOF
		case !errors.Is(err, io.EOF):
			return 0, fmt.Errorf("stream read: %w", err)
		}

		if !s.running() {
			return 0, io.EOF
		}
		if stalls == 0 {
			logging.WarnWithContext(s.logger, "stream pipe empty while encoder still running", "stream_stall",
				logging.Int("max_retries", b.stallRetries),
				logging.Duration("retry_interval", b.stallInterval),
				logging.String(logging.FieldImpact, "playback may pause briefly"),
			)
		}
		if stalls >= b.stallRetries {
			logging.WarnWithContext(s.logger, "stream stall exceeded retry budget; ending stream", "stream_stall_exhausted",
				logging.Int("retries", stalls),
				logging.Alert("stream_truncated"),
				logging.String(logging.FieldImpact, "playback stops at the current position"),
			)
			return 0, io.EOF
		}
		stalls++
		timer := time.NewTimer(b.stallInterval)
		select {
		case <-timer.C:
		case <-s.exited:
			timer.Stop()
		case <-s.closing:
			timer.Stop()
			return 0, io.EOF
		}
	}
}

// Close ends the current session. It is idempotent and safe to call
// concurrently with Read.
func (b *Bridge) Close() error {
	b.mu.Lock()
	s := b.session
	b.session = nil
	var stop func() bool
	if s != nil {
		stop = s.stopWatch
	}
	b.mu.Unlock()
	if stop != nil {
		stop()
	}
	if s != nil {
		s.teardown()
	}
	return nil
}

// closeSession closes s only if it is still the active session.
func (b *Bridge) closeSession(s *session) {
	s.teardown()
	b.mu.Lock()
	if b.session == s {
		b.session = nil
	}
	b.mu.Unlock()
}

// start creates the pipe, launches ffmpeg, and waits for it to open the
// write end.
func (b *Bridge) start(ctx context.Context, logger *slog.Logger, url string, offsetMS int64) (*session, error) {
	dir, err := os.MkdirTemp("", "shelfcast-stream-")
	if err != nil {
		return nil, fmt.Errorf("stream open: create pipe dir: %w", err)
	}
	fifoPath := filepath.Join(dir, fifoName)
	if err := unix.Mkfifo(fifoPath, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("stream open: mkfifo: %w", err)
	}

	s := &session{
		dir:     dir,
		path:    fifoPath,
		exited:  make(chan struct{}),
		closing: make(chan struct{}),
		stderr:  &tailBuffer{limit: stderrTailLen},
		logger:  logger,
	}
	cmd := exec.Command(b.ffmpeg, b.Args(url, fifoPath, offsetMS)...) //nolint:gosec
	cmd.Stderr = s.stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("stream open: start %s: %w", filepath.Base(b.ffmpeg), err)
	}
	s.cmd = cmd
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	type openResult struct {
		file *os.File
		err  error
	}
	opened := make(chan openResult, 1)
	go func() {
		// Blocks until ffmpeg opens the write end. The returned file is
		// poller-backed, so Close interrupts a pending Read.
		f, err := os.OpenFile(fifoPath, os.O_RDONLY, 0)
		opened <- openResult{file: f, err: err}
	}()

	// unblock releases the pending open when ffmpeg never connects.
	unblock := func() openResult {
		if fd, err := unix.Open(fifoPath, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0); err == nil {
			defer unix.Close(fd)
		}
		return <-opened
	}

	var result openResult
	select {
	case result = <-opened:
	case <-s.exited:
		result = unblock()
		if result.err == nil && s.waitErr != nil {
			_ = result.file.Close()
			result = openResult{err: fmt.Errorf("%s exited before streaming: %w: %s", filepath.Base(b.ffmpeg), s.waitErr, s.stderr.String())}
		}
	case <-ctx.Done():
		result = unblock()
		if result.err == nil {
			_ = result.file.Close()
		}
		result = openResult{err: ctx.Err()}
	}
	if result.err != nil {
		s.teardown()
		logging.WarnWithContext(logger, "stream open failed", "stream_open_failed",
			logging.Error(result.err),
			logging.String(logging.FieldErrorHint, "check that ffmpeg is installed and the url is reachable"),
			logging.String(logging.FieldImpact, "remote playback unavailable"),
		)
		return nil, fmt.Errorf("stream open: %w", result.err)
	}
	s.fifo = result.file
	return s, nil
}

func redact(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 && isRemote(url) {
		return url[:i]
	}
	return url
}
