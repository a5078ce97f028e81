package transcode

import (
	"path/filepath"
	"strconv"
	"strings"
)

// incompatibleHints are file name substrings that identify codecs known to
// need conversion without running a probe.
var incompatibleHints = []string{"eac3", "ec3", "e-ac-3", "atmos"}

// HintsIncompatible reports whether the file name alone suggests an
// incompatible codec.
func HintsIncompatible(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, hint := range incompatibleHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

// ffmpegArgs builds the general-purpose conversion: audio only, first audio
// stream, AAC at a fixed bitrate, stereo downmix, overwrite.
func ffmpegArgs(input, output string, bitrateKbps int) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-vn",
		"-map", "0:a:0",
		"-c:a", "aac",
		"-b:a", strconv.Itoa(bitrateKbps) + "k",
		"-ac", "2",
		"-f", "mp4",
		output,
	}
}

// nativeArgs builds the platform-native invocation. afconvert receives its AAC
// flags; any other command is called as "<cmd> <input> <output>".
func nativeArgs(command, input, output string, bitrateKbps int) []string {
	if strings.TrimSuffix(filepath.Base(command), ".exe") == "afconvert" {
		return []string{"-f", "m4af", "-d", "aac", "-b", strconv.Itoa(bitrateKbps * 1000), input, output}
	}
	return []string{input, output}
}
