package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shelfcast/internal/queue"
	"shelfcast/internal/testsupport"
)

func newLibraryServer(t *testing.T) *httptest.Server {
	t.Helper()
	audio := testsupport.Pattern(48_000)
	ebook := testsupport.Pattern(9_000)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/books/7", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"7","title":"Ancillary Justice","authors":[{"name":"Ann Leckie"}],`+
			`"audio_url":"/files/7.m4b","ebook_url":"/files/7.epub"}`)
	})
	mux.HandleFunc("/files/7.m4b", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "7.m4b", time.Time{}, bytes.NewReader(audio))
	})
	mux.HandleFunc("/files/7.epub", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "7.epub", time.Time{}, bytes.NewReader(ebook))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestFetchDownloadsAndRecordsHistory(t *testing.T) {
	srv := newLibraryServer(t)
	env := setupCLITestEnv(t, testsupport.WithServer(srv.URL, "tok"))

	out, _, err := runCLI(t, []string{"fetch", "7"}, env.configPath)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	requireContains(t, out, "completed")

	dir := filepath.Join(env.cfg.Paths.FilesRoot, "Ann Leckie")
	for name, size := range map[string]int64{"Ancillary Justice.m4b": 48_000, "Ancillary Justice.epub": 9_000} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
		if info.Size() != size {
			t.Fatalf("%s size = %d, want %d", name, info.Size(), size)
		}
	}

	out, _, err = runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var records []queue.JobRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(records) != 1 || records[0].BookID != "7" || records[0].Status != queue.StatusCompleted || records[0].FilesDone != 2 {
		t.Fatalf("unexpected history: %+v", records)
	}

	out, _, err = runCLI(t, []string{"status", "7"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Ancillary Justice by Ann Leckie")
	requireContains(t, out, "Last transfer: completed")
}

func TestFetchPublishesNotification(t *testing.T) {
	srv := newLibraryServer(t)
	titles := make(chan string, 4)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles <- r.Header.Get("Title")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ntfy.Close)
	env := setupCLITestEnv(t, testsupport.WithServer(srv.URL, "tok"), testsupport.WithNtfyTopic(ntfy.URL))

	if _, _, err := runCLI(t, []string{"fetch", "--audio", "7"}, env.configPath); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	select {
	case title := <-titles:
		if title != "Shelfcast - Download Complete" {
			t.Fatalf("unexpected notification title %q", title)
		}
	default:
		t.Fatal("expected a completion notification")
	}

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
}

func TestFetchUnknownBookFails(t *testing.T) {
	srv := newLibraryServer(t)
	env := setupCLITestEnv(t, testsupport.WithServer(srv.URL, ""))

	_, _, err := runCLI(t, []string{"fetch", "404"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "did not complete") {
		t.Fatalf("expected fetch failure, got %v", err)
	}
}

func TestFetchWithoutServerURL(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"fetch", "1"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "server url") {
		t.Fatalf("expected missing server error, got %v", err)
	}
}

func TestRemoveDeletesLocalAssets(t *testing.T) {
	srv := newLibraryServer(t)
	env := setupCLITestEnv(t, testsupport.WithServer(srv.URL, ""))
	if _, _, err := runCLI(t, []string{"fetch", "7", "--ebook"}, env.configPath); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	epub := filepath.Join(env.cfg.Paths.FilesRoot, "Ann Leckie", "Ancillary Justice.epub")
	if _, err := os.Stat(epub); err != nil {
		t.Fatalf("expected ebook: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.FilesRoot, "Ann Leckie", "Ancillary Justice.m4b")); err == nil {
		t.Fatal("audio should not be fetched with --ebook")
	}

	out, _, err := runCLI(t, []string{"remove", "7"}, env.configPath)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "Removed "+epub)
	if _, err := os.Stat(epub); !os.IsNotExist(err) {
		t.Fatalf("ebook still present: %v", err)
	}
}

func TestProbeUsesConfiguredFFprobe(t *testing.T) {
	report := "[STREAM]\ncodec_name=eac3\ncodec_type=audio\nduration=65.0\n[/STREAM]\n"
	env := setupCLITestEnv(t)
	env.cfg.Transcode.FFprobeBinary = testsupport.StubBinary(t, "ffprobe", "printf '"+strings.ReplaceAll(report, "\n", `\n`)+"'\n")
	writeTestConfig(t, env.configPath, env.cfg)

	source := filepath.Join(t.TempDir(), "book.m4b")
	testsupport.WriteFile(t, source, 10)

	out, _, err := runCLI(t, []string{"probe", source}, env.configPath)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	requireContains(t, out, "Codec:        eac3")
	requireContains(t, out, "Duration:     0:01:05")
	requireContains(t, out, "needs transcode")
}

func TestDepsReportsMissingTools(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Transcode.FFmpegBinary = filepath.Join(env.baseDir, "missing", "ffmpeg")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err == nil {
		t.Fatal("expected deps to fail with missing ffmpeg")
	}
	requireContains(t, out, "missing")
}

func TestDepsWithStubbedBinaries(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v\n%s", err, out)
	}
	requireContains(t, out, "FFprobe")
}

func TestCacheStatsAndClearOnEmptyCache(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"cache", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, "Entries: 0")
	requireContains(t, out, "Cached conversions: none")

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Removed 0 cached conversions")
}

func TestHistoryEmptyAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No transfer history")

	out, _, err = runCLI(t, []string{"history", "--clear"}, env.configPath)
	if err != nil {
		t.Fatalf("history --clear: %v", err)
	}
	requireContains(t, out, "Removed 0 history records")
}

func TestLogsFiltersByBook(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")

	content := "2026-01-01 00:00:00 INFO transfer[7]: transfer_started\n" +
		"2026-01-01 00:00:01 INFO transfer[8]: transfer_started\n" +
		"2026-01-01 00:00:02 ERROR transfer[7]: transfer_failed\n"
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	if err := os.WriteFile(env.cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err = runCLI(t, []string{"logs", "--book", "7", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --book: %v", err)
	}
	if strings.TrimSpace(out) != "2026-01-01 00:00:02 ERROR transfer[7]: transfer_failed" {
		t.Fatalf("unexpected logs output: %q", out)
	}
}

func TestFormatMillis(t *testing.T) {
	tests := map[int64]string{0: "-", 65_000: "0:01:05", 3_601_250: "1:00:01"}
	for in, want := range tests {
		if got := formatMillis(in); got != want {
			t.Errorf("formatMillis(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestConfigShowRedactsToken(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithServer("http://books.example.invalid", "s3cret"))

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "<redacted>")
	requireContains(t, out, "books.example.invalid")
	if strings.Contains(out, "s3cret") {
		t.Fatalf("token leaked: %s", out)
	}

	out, _, err = runCLI(t, []string{"config", "show", "--show-secrets"}, env.configPath)
	if err != nil {
		t.Fatalf("config show --show-secrets: %v", err)
	}
	requireContains(t, out, "s3cret")
}
