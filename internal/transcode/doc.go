// Package transcode makes local audio files playable by converting codecs
// the playback engine cannot decode.
//
// EnsurePlayable is the entry point. It probes the source (or trusts a file
// name hint), serves a validated cache entry when one exists, and otherwise
// converts into a temporary file using the platform-native converter first
// and ffmpeg second. Valid output is published into the cache by rename.
// Any failure returns the original path: callers always receive a path that
// exists.
//
// Cache maintains the converted files: stats, least-recently-used pruning,
// and clearing.
package transcode
