package transcode

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"shelfcast/internal/config"
	"shelfcast/internal/fileutil"
	"shelfcast/internal/logging"
	"shelfcast/internal/media/ffprobe"
)

const lockRetryDelay = 100 * time.Millisecond

// Prober inspects a media file. A non-nil error means the inspection did not
// complete, which is distinct from a completed inspection that found no audio.
type Prober interface {
	Inspect(ctx context.Context, target string) (ffprobe.Metadata, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(e *Engine) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// WithNativeCommand overrides the platform-native converter; "" disables it.
func WithNativeCommand(command string) Option {
	return func(e *Engine) {
		e.native = strings.TrimSpace(command)
	}
}

// Engine converts incompatible audio into the cache.
type Engine struct {
	prober        Prober
	exec          Executor
	cache         *Cache
	ffmpeg        string
	native        string
	compatible    map[string]struct{}
	minBytes      int64
	bitrateKbps   int
	nativeTimeout time.Duration
	budget        time.Duration
	logger        *slog.Logger
}

// New builds an Engine from configuration.
func New(cfg *config.Config, prober Prober, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		prober:        prober,
		exec:          commandExecutor{},
		cache:         NewCache(cfg.Paths.CacheDir, cfg.CacheMaxBytes(), logger),
		ffmpeg:        cfg.FFmpegBinary(),
		native:        cfg.NativeCommand(),
		compatible:    ffprobe.CodecSet(cfg.Transcode.CompatibleCodecs),
		minBytes:      cfg.Transcode.MinOutputBytes,
		bitrateKbps:   cfg.Transcode.BitrateKbps,
		nativeTimeout: cfg.NativeTimeout(),
		budget:        cfg.TranscodeBudget(),
		logger:        logging.NewComponentLogger(logger, "transcode"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache exposes the engine's cache for maintenance commands.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// EnsurePlayable returns a path the playback engine can decode: path itself
// when its codec is compatible, otherwise a cached conversion. When
// conversion is impossible the original path is returned.
func (e *Engine) EnsurePlayable(ctx context.Context, path string) string {
	source := strings.TrimSpace(path)
	if source == "" || !fileutil.Exists(source) {
		return path
	}
	logger := logging.WithContext(ctx, e.logger).With(logging.String("source", source))

	if HintsIncompatible(source) {
		logger.Debug("file name suggests incompatible codec; skipping probe")
	} else {
		meta, err := e.prober.Inspect(ctx, source)
		if err != nil {
			logger.Debug("source probe incomplete", logging.Error(err))
		}
		if !meta.NeedsTranscode(e.compatible) {
			return path
		}
		logger.Info("incompatible codec detected",
			logging.String("codec", meta.Codec),
			logging.Bool("object_based", meta.ObjectBased),
		)
	}

	if err := e.cache.ensureDir(); err != nil {
		logging.WarnWithContext(logger, "transcode cache unavailable", "transcode_cache_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.cache_dir"),
			logging.String(logging.FieldImpact, "original file will be played"),
		)
		return path
	}

	cachePath := e.cache.Path(source)
	if e.validCached(ctx, cachePath) {
		_ = fileutil.Touch(cachePath)
		logger.Debug("transcode cache hit", logging.String("cache_path", cachePath))
		return cachePath
	}

	if e.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.budget)
		defer cancel()
	}

	if lock, err := e.cache.lockFor(cachePath); err != nil {
		logger.Debug("transcode lock unavailable; converting unlocked", logging.Error(err))
	} else if locked, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil || !locked {
		logger.Debug("transcode lock not acquired; converting unlocked", logging.Error(err))
	} else {
		defer func() { _ = lock.Unlock() }()
		// Another caller may have finished while we waited.
		if e.validCached(ctx, cachePath) {
			return cachePath
		}
	}

	tmp := e.cache.tempPath(cachePath)
	defer func() { _ = os.Remove(tmp) }()

	start := time.Now()
	tier, ok := e.convert(ctx, logger, source, tmp)
	if !ok {
		return path
	}
	if verdict, _ := e.checkOutput(ctx, tmp); verdict != outputValid {
		logging.WarnWithContext(logger, "transcode output failed validation", "transcode_invalid_output",
			logging.String("tier", tier),
			logging.Int64("output_bytes", fileutil.FileSize(tmp)),
			logging.Int64("min_bytes", e.minBytes),
			logging.String(logging.FieldImpact, "original file will be played"),
		)
		return path
	}
	// A racing conversion that landed first wins.
	if e.validCached(ctx, cachePath) {
		return cachePath
	}
	if err := fileutil.Publish(tmp, cachePath); err != nil {
		logging.WarnWithContext(logger, "transcode publish failed", "transcode_publish_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "original file will be played"),
		)
		return path
	}
	logger.Info("transcode complete",
		logging.String("tier", tier),
		logging.String("cache_path", cachePath),
		logging.Int64("output_bytes", fileutil.FileSize(cachePath)),
		logging.Duration("elapsed", time.Since(start)),
	)
	e.cache.enforceLimit(ctx, cachePath)
	return cachePath
}

// convert runs the native tier then ffmpeg. It returns the tier that
// produced output.
func (e *Engine) convert(ctx context.Context, logger *slog.Logger, source, tmp string) (string, bool) {
	if e.native != "" {
		nativeCtx := ctx
		if e.nativeTimeout > 0 {
			var cancel context.CancelFunc
			nativeCtx, cancel = context.WithTimeout(ctx, e.nativeTimeout)
			defer cancel()
		}
		err := e.exec.Run(nativeCtx, e.native, nativeArgs(e.native, source, tmp, e.bitrateKbps))
		if err == nil && fileutil.FileSize(tmp) > 0 {
			return "native", true
		}
		if err == nil {
			err = errors.New("no output produced")
		}
		logging.WarnWithContext(logger, "native transcode failed; falling back to ffmpeg", "transcode_native_failed",
			logging.String("command", e.native),
			logging.Error(err),
			logging.String(logging.FieldImpact, "slower ffmpeg conversion will be used"),
		)
		_ = os.Remove(tmp)
	}

	if err := ctx.Err(); err != nil {
		e.logFailure(logger, err)
		return "", false
	}
	if err := e.exec.Run(ctx, e.ffmpeg, ffmpegArgs(source, tmp, e.bitrateKbps)); err != nil {
		e.logFailure(logger, err)
		return "", false
	}
	return "ffmpeg", true
}

func (e *Engine) logFailure(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "transcode failed", "transcode_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check that ffmpeg is installed and the source is readable"),
		logging.String(logging.FieldImpact, "original file will be played"),
	)
}

type outputVerdict int

const (
	outputInvalid outputVerdict = iota
	outputValid
	// outputUnverified means the probe did not complete.
	outputUnverified
)

// validCached reports whether the cache entry can be served. Entries that are
// undersized or probe without audio are deleted; entries whose probe did not
// complete stay on disk and are not served.
func (e *Engine) validCached(ctx context.Context, cachePath string) bool {
	if _, err := os.Stat(cachePath); errors.Is(err, fs.ErrNotExist) {
		return false
	}
	verdict, err := e.checkOutput(ctx, cachePath)
	switch verdict {
	case outputValid:
		return true
	case outputUnverified:
		e.logger.Debug("transcode cache entry kept unverified",
			logging.String("cache_path", cachePath),
			logging.Error(err),
		)
		return false
	}
	if err := os.Remove(cachePath); err == nil {
		e.logger.Info("removed invalid transcode cache entry", logging.String("cache_path", cachePath))
	}
	return false
}

func (e *Engine) checkOutput(ctx context.Context, path string) (outputVerdict, error) {
	if fileutil.FileSize(path) < max(e.minBytes, 1) {
		return outputInvalid, nil
	}
	meta, err := e.prober.Inspect(ctx, path)
	if err != nil {
		return outputUnverified, err
	}
	if !meta.HasAudio() {
		return outputInvalid, nil
	}
	return outputValid, nil
}
