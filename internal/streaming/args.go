package streaming

import (
	"strconv"
	"strings"
)

// SeekOffsetMS converts a byte position into a time offset assuming a
// constant bitrate in bits per second.
func SeekOffsetMS(position, bitrateBps int64) int64 {
	if position <= 0 || bitrateBps <= 0 {
		return 0
	}
	return position * 8000 / bitrateBps
}

func isRemote(url string) bool {
	lower := strings.ToLower(strings.TrimSpace(url))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Args returns the ffmpeg arguments for streaming url into output starting
// at offsetMS.
func (b *Bridge) Args(url, output string, offsetMS int64) []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error"}
	if isRemote(url) {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
		if b.token != "" {
			args = append(args, "-headers", "Authorization: Bearer "+b.token+"\r\n")
		}
	}
	if offsetMS > 0 {
		args = append(args, "-ss", formatSeconds(offsetMS))
	}
	return append(args,
		"-i", url,
		"-vn",
		"-map", "0:a:0",
		"-ac", "2",
		"-c:a", "aac",
		"-b:a", strconv.FormatInt(b.bitrate, 10),
		"-f", "adts",
		"-y", output,
	)
}

func formatSeconds(ms int64) string {
	return strconv.FormatInt(ms/1000, 10) + "." + leftPad(strconv.FormatInt(ms%1000, 10), 3)
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
