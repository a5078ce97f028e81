package ffprobe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"shelfcast/internal/logging"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Output(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures a Prober.
type Option func(*Prober)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(p *Prober) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// WithToken sets the bearer token forwarded to ffprobe for remote targets.
func WithToken(token string) Option {
	return func(p *Prober) {
		p.token = strings.TrimSpace(token)
	}
}

// WithLogger attaches a logger for probe failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = logging.NewComponentLogger(logger, "ffprobe")
	}
}

// Prober runs ffprobe.
type Prober struct {
	binary string
	token  string
	exec   Executor
	logger *slog.Logger
}

// New constructs a Prober for the given ffprobe binary.
func New(binary string, opts ...Option) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	p := &Prober{
		binary: binary,
		exec:   commandExecutor{},
		logger: logging.NewComponentLogger(nil, "ffprobe"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Args returns the ffprobe argument list for target.
func (p *Prober) Args(target string) []string {
	args := []string{"-v", "error", "-hide_banner", "-show_streams", "-show_format", "-show_chapters"}
	if p.token != "" && IsRemote(target) {
		args = append(args, "-headers", AuthHeader(p.token))
	}
	return append(args, "--", target)
}

// Inspect runs ffprobe on target. A non-nil error means ffprobe did not
// complete; the metadata then holds whatever partial output parsed.
func (p *Prober) Inspect(ctx context.Context, target string) (Metadata, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Empty(), errors.New("ffprobe: empty target")
	}
	output, err := p.exec.Output(ctx, p.binary, p.Args(target))
	if err != nil {
		meta := Empty()
		if len(output) > 0 {
			meta = Parse(string(output))
		}
		return meta, fmt.Errorf("ffprobe %s: %w", redact(target), err)
	}
	return Parse(string(output)), nil
}

// Probe inspects target and returns whatever could be parsed. Failures are
// logged and yield Empty() or the partial result.
func (p *Prober) Probe(ctx context.Context, target string) Metadata {
	target = strings.TrimSpace(target)
	if target == "" {
		return Empty()
	}
	logger := logging.WithContext(ctx, p.logger)
	meta, err := p.Inspect(ctx, target)
	if err != nil {
		logging.WarnWithContext(logger, "ffprobe failed; using defaults", "probe_failed",
			logging.String("target", redact(target)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that ffprobe is installed and the resource is reachable"),
			logging.String(logging.FieldImpact, "codec treated as unknown"),
		)
		return meta
	}
	logger.Debug("probe complete",
		logging.String("target", redact(target)),
		logging.String("codec", meta.Codec),
		logging.Bool("object_based", meta.ObjectBased),
		logging.Int64("duration_ms", meta.DurationMS),
		logging.Int("chapters", len(meta.Chapters)),
	)
	return meta
}

// IsRemote reports whether target is an http(s) URL.
func IsRemote(target string) bool {
	lower := strings.ToLower(strings.TrimSpace(target))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// AuthHeader formats a bearer token for ffmpeg's -headers option.
func AuthHeader(token string) string {
	return "Authorization: Bearer " + token + "\r\n"
}

// redact drops query strings, which may carry credentials.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 && IsRemote(target) {
		return target[:i]
	}
	return target
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, fmt.Errorf("ffprobe exit %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return output, fmt.Errorf("run ffprobe: %w", err)
	}
	return output, nil
}
