package streaming

import (
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"shelfcast/internal/logging"
)

// session is one ffmpeg process and its pipe. It is never reused: seeking
// replaces it.
type session struct {
	dir     string
	path    string
	cmd     *exec.Cmd
	fifo    *os.File
	stderr  *tailBuffer
	logger  *slog.Logger
	exited  chan struct{}
	waitErr error
	closing chan struct{}

	// stopWatch is guarded by Bridge.mu.
	stopWatch func() bool
	once      sync.Once
}

func (s *session) running() bool {
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// teardown closes the pipe, kills and reaps ffmpeg, and removes the pipe
// directory. Only the first call has any effect.
func (s *session) teardown() {
	s.once.Do(func() {
		close(s.closing)
		if s.fifo != nil {
			_ = s.fifo.Close()
		}
		if s.cmd != nil && s.cmd.Process != nil {
			if s.running() {
				_ = s.cmd.Process.Kill()
			}
			<-s.exited
		}
		if err := os.RemoveAll(s.dir); err != nil {
			s.logger.Debug("stream pipe cleanup failed", logging.Error(err))
		}
		s.logger.Debug("stream closed")
	})
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
