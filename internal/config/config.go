package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	FilesRoot string `toml:"files_root"`
	CacheDir  string `toml:"cache_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Server describes the remote book server.
type Server struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Transfer contains download pool settings.
type Transfer struct {
	MaxConcurrent int `toml:"max_concurrent"`
	ChunkBytes    int `toml:"chunk_bytes"`
}

// Transcode contains settings for codec conversion and its cache.
type Transcode struct {
	FFmpegBinary     string   `toml:"ffmpeg_binary"`
	FFprobeBinary    string   `toml:"ffprobe_binary"`
	NativeCommand    string   `toml:"native_command"`
	CompatibleCodecs []string `toml:"compatible_codecs"`
	MinOutputBytes   int64    `toml:"min_output_bytes"`
	BitrateKbps      int      `toml:"bitrate_kbps"`
	NativeTimeout    int      `toml:"native_timeout"`
	Budget           int      `toml:"budget"`
	CacheMaxMiB      int      `toml:"cache_max_mib"`
}

// Streaming contains settings for the live transcode bridge.
type Streaming struct {
	BitrateBps      int `toml:"bitrate_bps"`
	StallRetries    int `toml:"stall_retries"`
	StallIntervalMS int `toml:"stall_interval_ms"`
}

// Notifications configures ntfy delivery of transfer outcomes.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shelfcast.
//
// Configuration sections by subsystem:
//   - Paths: downloaded files, transcode cache, logs, and state database
//   - Server: remote book server location and bearer token
//   - Transfer: download pool size and read chunking
//   - Transcode: ffmpeg/ffprobe binaries, compatibility set, cache limits
//   - Streaming: live transcode bitrate and stall handling
//   - Notifications: optional ntfy topic for transfer outcomes
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Transfer      Transfer      `toml:"transfer"`
	Transcode     Transcode     `toml:"transcode"`
	Streaming     Streaming     `toml:"streaming"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shelfcast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shelfcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories shelfcast writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.FilesRoot, c.Paths.CacheDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable used for codec inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Transcode.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// FFmpegBinary returns the ffmpeg executable used for conversion and streaming.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Transcode.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// NativeCommand returns the platform-native converter, or "" when none applies.
func (c *Config) NativeCommand() string {
	if cmd := strings.TrimSpace(c.Transcode.NativeCommand); cmd != "" {
		return cmd
	}
	if runtime.GOOS == "darwin" {
		return "afconvert"
	}
	return ""
}

// RequestTimeout returns the per-request timeout for catalog calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// TranscodeBudget returns the total wall-clock budget shared by both transcode tiers.
func (c *Config) TranscodeBudget() time.Duration {
	return time.Duration(c.Transcode.Budget) * time.Second
}

// NativeTimeout returns the timeout applied to the platform-native transcode tier.
func (c *Config) NativeTimeout() time.Duration {
	return time.Duration(c.Transcode.NativeTimeout) * time.Second
}

// StallInterval returns the pause between FIFO reads while the encoder is idle.
func (c *Config) StallInterval() time.Duration {
	return time.Duration(c.Streaming.StallIntervalMS) * time.Millisecond
}

// CacheMaxBytes returns the transcode cache ceiling in bytes; 0 means unbounded.
func (c *Config) CacheMaxBytes() int64 {
	return int64(c.Transcode.CacheMaxMiB) * 1024 * 1024
}

// QueueDBPath returns the location of the transfer history database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.StateDir, "queue.db")
}

// NotifyTimeout returns the ntfy request timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// LogPath returns the log file written alongside console output, or "" when
// file logging is disabled.
func (c *Config) LogPath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "shelfcast.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "shelfcast", "transcodes")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/shelfcast/transcodes"
	}
	return filepath.Join(home, ".cache", "shelfcast", "transcodes")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
