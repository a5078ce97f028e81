package streaming

import (
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"shelfcast/internal/testsupport"
)

const (
	lastArg      = "for last; do :; done\n"
	writeScript  = lastArg + "printf 'AUDIO-BYTES' > \"$last\"\n"
	argsScript   = lastArg + "printf '%s\\n' \"$@\" > \"$last\"\n"
	failScript   = "echo 'bad input' >&2\nexit 1\n"
	holdScript   = lastArg + "exec 3>\"$last\"\nexec sleep 30\n"
	stallScript  = lastArg + "printf 'data' > \"$last\"\nexec sleep 30\n"
	ignoreScript = "exec sleep 30\n"
)

func newTestBridge(t *testing.T, script string) *Bridge {
	t.Helper()
	t.Setenv("TMPDIR", t.TempDir())
	cfg := testsupport.NewConfig(t,
		testsupport.WithFFmpegScript(script),
		testsupport.WithServer("https://server.test", "tok"),
	)
	cfg.Streaming.StallRetries = 3
	cfg.Streaming.StallIntervalMS = 10
	b := New(cfg, nil)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func assertNoPipeDirs(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "shelfcast-stream-") {
			t.Fatalf("leaked pipe dir %s", entry.Name())
		}
	}
}

func TestSeekOffsetMS(t *testing.T) {
	tests := []struct {
		position, bitrate, want int64
	}{
		{2_400_000, 192_000, 100_000},
		{0, 192_000, 0},
		{24_000, 192_000, 1_000},
		{1, 192_000, 0},
		{-5, 192_000, 0},
		{1_000, 0, 0},
	}
	for _, tt := range tests {
		if got := SeekOffsetMS(tt.position, tt.bitrate); got != tt.want {
			t.Errorf("SeekOffsetMS(%d, %d) = %d, want %d", tt.position, tt.bitrate, got, tt.want)
		}
	}
}

func TestArgs(t *testing.T) {
	b := &Bridge{token: "tok", bitrate: 192000}

	remote := b.Args("https://server.test/a", "/tmp/p", 100_000)
	for _, want := range []string{"-reconnect", "-reconnect_streamed", "-headers", "-ss"} {
		if !slices.Contains(remote, want) {
			t.Fatalf("remote args missing %s: %v", want, remote)
		}
	}
	if i := slices.Index(remote, "-ss"); remote[i+1] != "100.000" {
		t.Fatalf("seek value = %q", remote[i+1])
	}
	if i := slices.Index(remote, "-headers"); remote[i+1] != "Authorization: Bearer tok\r\n" {
		t.Fatalf("header value = %q", remote[i+1])
	}
	if slices.Index(remote, "-ss") > slices.Index(remote, "-i") {
		t.Fatal("-ss must precede -i for input seeking")
	}

	local := b.Args("/books/a.m4b", "/tmp/p", 0)
	for _, unwanted := range []string{"-reconnect", "-headers", "-ss"} {
		if slices.Contains(local, unwanted) {
			t.Fatalf("local args should not contain %s: %v", unwanted, local)
		}
	}
	joined := strings.Join(local, " ")
	for _, want := range []string{"-vn", "-ac 2", "-c:a aac", "-b:a 192000", "-f adts", "-y /tmp/p"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestCloseWithoutOpen(t *testing.T) {
	b := newTestBridge(t, writeScript)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := b.Read(make([]byte, 8)); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Read before Open = %v, want ErrNotOpen", err)
	}
	assertNoPipeDirs(t)
}

func TestOpenReadClose(t *testing.T) {
	b := newTestBridge(t, writeScript)

	length, err := b.Open(context.Background(), "/books/a.m4b", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if length != UnknownLength {
		t.Fatalf("length = %d, want unknown", length)
	}
	data, err := io.ReadAll(b)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "AUDIO-BYTES" {
		t.Fatalf("data = %q", data)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if b.Opened() {
		t.Fatal("bridge should report closed")
	}
	assertNoPipeDirs(t)
}

func TestOpenFailsWhenEncoderExits(t *testing.T) {
	b := newTestBridge(t, failScript)

	_, err := b.Open(context.Background(), "/books/a.m4b", 0)
	if err == nil {
		t.Fatal("expected open error")
	}
	if !strings.Contains(err.Error(), "bad input") {
		t.Fatalf("error should carry ffmpeg stderr: %v", err)
	}
	if b.Opened() {
		t.Fatal("failed open must not leave a session")
	}
	assertNoPipeDirs(t)
}

func TestOpenHonorsContext(t *testing.T) {
	b := newTestBridge(t, ignoreScript)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := b.Open(ctx, "/books/a.m4b", 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Open err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Open took %v", elapsed)
	}
	assertNoPipeDirs(t)
}

func TestCloseUnblocksRead(t *testing.T) {
	b := newTestBridge(t, holdScript)
	if _, err := b.Open(context.Background(), "/books/a.m4b", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := b.Read(make([]byte, 16))
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("Read after Close = %v, want EOF", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not unblock Read")
	}
	assertNoPipeDirs(t)
}

func TestEmptyPipeWhileRunningEndsAfterRetries(t *testing.T) {
	b := newTestBridge(t, stallScript)
	if _, err := b.Open(context.Background(), "/books/a.m4b", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}

	start := time.Now()
	data, err := io.ReadAll(b)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "data" {
		t.Fatalf("data = %q", data)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("stall handling took %v", elapsed)
	}

	b.mu.Lock()
	s := b.session
	b.mu.Unlock()
	if s == nil || !s.running() {
		t.Fatal("encoder should still be running after the stall gave up")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.running() {
		t.Fatal("Close must reap the encoder")
	}
}

func TestSeekReopensAtOffset(t *testing.T) {
	b := newTestBridge(t, argsScript)

	if _, err := b.Open(context.Background(), "https://server.test/api/a", 2_400_000); err != nil {
		t.Fatalf("Open: %v", err)
	}
	b.mu.Lock()
	firstDir := b.session.dir
	b.mu.Unlock()

	args := readArgs(t, b)
	if i := slices.Index(args, "-ss"); i < 0 || args[i+1] != "100.000" {
		t.Fatalf("expected -ss 100.000 in %v", args)
	}
	if !slices.Contains(args, "-reconnect") {
		t.Fatalf("remote stream should reconnect: %v", args)
	}

	if _, err := b.Seek(context.Background(), 4_800_000); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := os.Stat(firstDir); !os.IsNotExist(err) {
		t.Fatalf("previous session dir should be removed, err=%v", err)
	}
	args = readArgs(t, b)
	if i := slices.Index(args, "-ss"); i < 0 || args[i+1] != "200.000" {
		t.Fatalf("expected -ss 200.000 in %v", args)
	}
}

func TestSeekWithoutOpen(t *testing.T) {
	b := newTestBridge(t, writeScript)
	if _, err := b.Seek(context.Background(), 100); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Seek = %v, want ErrNotOpen", err)
	}
}

func TestContextCancelClosesSession(t *testing.T) {
	b := newTestBridge(t, holdScript)
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := b.Open(ctx, "/books/a.m4b", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for b.Opened() {
		if time.Now().After(deadline) {
			t.Fatal("session still open after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
	assertNoPipeDirs(t)
}

func readArgs(t *testing.T, b *Bridge) []string {
	t.Helper()
	data, err := io.ReadAll(b)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestConcurrentOpenLeavesOneSession(t *testing.T) {
	b := newTestBridge(t, holdScript)

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := b.Open(context.Background(), "/books/a.m4b", 0)
			errs <- err
		}()
	}
	for range 2 {
		if err := <-errs; err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
	if !b.Opened() {
		t.Fatal("expected an active session")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	assertNoPipeDirs(t)
}
