package config

const (
	defaultFilesRoot            = "~/Books"
	defaultLogDir               = "~/.local/share/shelfcast/logs"
	defaultStateDir             = "~/.local/share/shelfcast"
	defaultRequestTimeout       = 30
	defaultMaxConcurrent        = 3
	defaultChunkBytes           = 64 * 1024
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultMinOutputBytes       = 100 * 1024
	defaultTranscodeBitrateKbps = 192
	defaultNativeTimeout        = 300
	defaultTranscodeBudget      = 900
	defaultCacheMaxMiB          = 4096
	defaultStreamBitrateBps     = 192000
	defaultStallRetries         = 20
	defaultStallIntervalMS      = 250
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

var defaultCompatibleCodecs = []string{"aac", "mp3", "alac", "flac", "opus", "vorbis", "pcm_s16le"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			FilesRoot: defaultFilesRoot,
			CacheDir:  defaultCacheDir(),
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Server: Server{
			RequestTimeout: defaultRequestTimeout,
		},
		Transfer: Transfer{
			MaxConcurrent: defaultMaxConcurrent,
			ChunkBytes:    defaultChunkBytes,
		},
		Transcode: Transcode{
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
			CompatibleCodecs: append([]string(nil), defaultCompatibleCodecs...),
			MinOutputBytes:   defaultMinOutputBytes,
			BitrateKbps:      defaultTranscodeBitrateKbps,
			NativeTimeout:    defaultNativeTimeout,
			Budget:           defaultTranscodeBudget,
			CacheMaxMiB:      defaultCacheMaxMiB,
		},
		Streaming: Streaming{
			BitrateBps:      defaultStreamBitrateBps,
			StallRetries:    defaultStallRetries,
			StallIntervalMS: defaultStallIntervalMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
