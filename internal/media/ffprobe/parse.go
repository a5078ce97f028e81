package ffprobe

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// objectBasedMarkers indicate extended multichannel audio (Dolby Atmos over
// E-AC-3 JOC and friends). Matched case-insensitively anywhere in the report.
var objectBasedMarkers = []string{"atmos", "joc", "complexity_index", "ec+3"}

type section struct {
	name   string
	fields map[string]string
}

// Parse extracts Metadata from an ffprobe default-format report produced with
// -show_streams -show_format -show_chapters. Unrecognized lines are ignored.
func Parse(report string) Metadata {
	meta := Empty()
	if strings.TrimSpace(report) == "" {
		return meta
	}

	lowered := strings.ToLower(report)
	for _, marker := range objectBasedMarkers {
		if strings.Contains(lowered, marker) {
			meta.ObjectBased = true
			break
		}
	}

	var (
		current     *section
		firstCodec  string
		audioCodec  string
		maxDuration float64
	)

	finish := func(s *section) {
		if s == nil {
			return
		}
		switch s.name {
		case "STREAM":
			codec := normalizeCodec(s.fields["codec_name"])
			if codec != "" && firstCodec == "" {
				firstCodec = codec
			}
			if codec != "" && audioCodec == "" && strings.EqualFold(s.fields["codec_type"], "audio") {
				audioCodec = codec
			}
		case "CHAPTER":
			if chapter, ok := chapterFrom(s.fields, len(meta.Chapters)+1); ok {
				meta.Chapters = append(meta.Chapters, chapter)
			}
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(report))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[/") && strings.HasSuffix(line, "]") {
			finish(current)
			current = nil
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			finish(current)
			current = &section{name: strings.ToUpper(strings.Trim(line, "[]")), fields: map[string]string{}}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if key == "duration" {
			if seconds, ok := parseSeconds(value); ok && seconds > maxDuration {
				maxDuration = seconds
			}
		}
		if key == "codec_name" && firstCodec == "" && current == nil {
			firstCodec = normalizeCodec(value)
		}
		if current != nil {
			if _, seen := current.fields[key]; !seen {
				current.fields[key] = value
			}
		}
	}
	// Truncated reports may end inside a section.
	finish(current)

	switch {
	case audioCodec != "":
		meta.Codec = audioCodec
	case firstCodec != "":
		meta.Codec = firstCodec
	}
	meta.DurationMS = secondsToMS(maxDuration)
	return meta
}

func chapterFrom(fields map[string]string, ordinal int) (Chapter, bool) {
	start, ok := parseSeconds(fields["start_time"])
	if !ok {
		return Chapter{}, false
	}
	chapter := Chapter{StartMS: secondsToMS(start)}
	if end, ok := parseSeconds(fields["end_time"]); ok && end > start {
		chapter.DurationMS = secondsToMS(end) - chapter.StartMS
	}
	chapter.Title = strings.TrimSpace(fields["TAG:title"])
	if chapter.Title == "" {
		chapter.Title = fmt.Sprintf("Chapter %d", ordinal)
	}
	return chapter, true
}

func normalizeCodec(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "n/a" {
		return ""
	}
	return value
}

func parseSeconds(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, false
	}
	return seconds, true
}

func secondsToMS(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
