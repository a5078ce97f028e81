package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateStreaming(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.URL != "" {
		parsed, err := url.Parse(c.Server.URL)
		if err != nil {
			return fmt.Errorf("server.url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("server.url must use http or https, got %q", c.Server.URL)
		}
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateTransfer() error {
	if c.Transfer.MaxConcurrent <= 0 {
		return errors.New("transfer.max_concurrent must be positive")
	}
	if c.Transfer.ChunkBytes < 1024 {
		return errors.New("transfer.chunk_bytes must be at least 1024")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if err := ensurePositiveMap(map[string]int{
		"transcode.bitrate_kbps":   c.Transcode.BitrateKbps,
		"transcode.native_timeout": c.Transcode.NativeTimeout,
		"transcode.budget":         c.Transcode.Budget,
	}); err != nil {
		return err
	}
	if c.Transcode.MinOutputBytes < 0 {
		return errors.New("transcode.min_output_bytes must be >= 0")
	}
	if c.Transcode.CacheMaxMiB < 0 {
		return errors.New("transcode.cache_max_mib must be >= 0")
	}
	if c.Transcode.NativeTimeout > c.Transcode.Budget {
		return errors.New("transcode.native_timeout must not exceed transcode.budget")
	}
	return nil
}

func (c *Config) validateStreaming() error {
	if c.Streaming.BitrateBps <= 0 {
		return errors.New("streaming.bitrate_bps must be positive")
	}
	if c.Streaming.StallRetries < 0 {
		return errors.New("streaming.stall_retries must be >= 0")
	}
	if c.Streaming.StallIntervalMS <= 0 {
		return errors.New("streaming.stall_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" {
		parsed, err := url.Parse(c.Notifications.NtfyTopic)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be a full http(s) topic URL, got %q", c.Notifications.NtfyTopic)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", strings.TrimSpace(c.Logging.Level))
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
