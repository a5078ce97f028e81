package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shelfcast/internal/config"
	"shelfcast/internal/fileutil"
	"shelfcast/internal/logging"
)

// Version is reported in the User-Agent header.
var Version = "dev"

// ErrCancelled marks a download stopped by its context.
var ErrCancelled = errors.New("transfer cancelled")

// StatusError reports an HTTP status the download contract does not accept.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %s for %s", e.Status, e.URL)
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithHTTPClient injects the HTTP client (primarily for tests).
func WithHTTPClient(client *http.Client) WorkerOption {
	return func(w *Worker) {
		if client != nil {
			w.client = client
		}
	}
}

// Worker downloads single files.
type Worker struct {
	client     *http.Client
	token      string
	chunkBytes int
	logger     *slog.Logger
}

// NewWorker builds a Worker from configuration.
func NewWorker(cfg *config.Config, logger *slog.Logger, opts ...WorkerOption) *Worker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.RequestTimeout()
	w := &Worker{
		client:     &http.Client{Transport: transport},
		token:      strings.TrimSpace(cfg.Server.Token),
		chunkBytes: cfg.Transfer.ChunkBytes,
		logger:     logging.NewComponentLogger(logger, "transfer-worker"),
	}
	if w.chunkBytes <= 0 {
		w.chunkBytes = 64 * 1024
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Fetch downloads url into dest, resuming from any bytes already present.
// onProgress receives the completed fraction once the response headers are
// known and after every chunk written. On error the partial file is left in
// place for a later resume.
func (w *Worker) Fetch(ctx context.Context, url, dest string, onProgress func(float64)) error {
	if onProgress == nil {
		onProgress = func(float64) {}
	}
	logger := logging.WithContext(ctx, w.logger).With(logging.String("dest", dest))

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	existing := fileutil.FileSize(dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "shelfcast/"+Version)
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}
	if existing > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(existing, 10)+"-")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	total := int64(-1)
	switch resp.StatusCode {
	case http.StatusRequestedRangeNotSatisfiable:
		if existing == 0 {
			return &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
		}
		logger.Debug("range not satisfiable; file already complete", logging.Int64("bytes", existing))
		onProgress(1)
		return nil
	case http.StatusPartialContent:
		start, size, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || start != existing {
			return fmt.Errorf("resume %s: content range %q does not start at %d", url, resp.Header.Get("Content-Range"), existing)
		}
		flags |= os.O_APPEND
		switch {
		case resp.ContentLength >= 0:
			total = existing + resp.ContentLength
		case size >= 0:
			total = size
		}
		logger.Debug("resuming download", logging.Int64("offset", existing))
	case http.StatusOK:
		if existing > 0 {
			logger.Debug("server ignored range; restarting download", logging.Int64("discarded_bytes", existing))
		}
		existing = 0
		flags |= os.O_TRUNC
		total = resp.ContentLength
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	file, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer file.Close()

	report := func(written int64) {
		if total > 0 {
			onProgress(min(float64(existing+written)/float64(total), 1))
		}
	}
	report(0)

	buf := make([]byte, w.chunkBytes)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return fmt.Errorf("write %s: %w", filepath.Base(dest), err)
			}
			written += int64(n)
			report(written)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			}
			return fmt.Errorf("read %s: %w", url, readErr)
		}
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	if total >= 0 && existing+written != total {
		return fmt.Errorf("download %s: got %d of %d bytes: %w", url, existing+written, total, io.ErrUnexpectedEOF)
	}
	onProgress(1)
	logger.Debug("download complete", logging.Int64("bytes", existing+written))
	return nil
}

// parseContentRange reads "bytes start-end/size". size is -1 when the server
// sends "*".
func parseContentRange(value string) (start, size int64, ok bool) {
	value = strings.TrimSpace(value)
	rest, found := strings.CutPrefix(value, "bytes ")
	if !found {
		return 0, 0, false
	}
	span, sizeText, found := strings.Cut(rest, "/")
	if !found {
		return 0, 0, false
	}
	startText, _, found := strings.Cut(span, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(strings.TrimSpace(startText), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	size = -1
	if sizeText = strings.TrimSpace(sizeText); sizeText != "*" {
		if size, err = strconv.ParseInt(sizeText, 10, 64); err != nil {
			return 0, 0, false
		}
	}
	return start, size, true
}
