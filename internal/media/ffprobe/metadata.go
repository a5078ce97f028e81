package ffprobe

import "strings"

// UnknownCodec is reported when no codec could be read from the report.
const UnknownCodec = "unknown"

// Chapter is one chapter marker.
type Chapter struct {
	Title      string `json:"title"`
	StartMS    int64  `json:"start_ms"`
	DurationMS int64  `json:"duration_ms"`
}

// Metadata is the result of probing one audio resource.
type Metadata struct {
	Codec       string    `json:"codec"`
	ObjectBased bool      `json:"object_based"`
	DurationMS  int64     `json:"duration_ms"`
	Chapters    []Chapter `json:"chapters,omitempty"`
}

// Empty returns the safe default used when probing yields nothing.
func Empty() Metadata {
	return Metadata{Codec: UnknownCodec}
}

// HasAudio reports whether a codec was identified.
func (m Metadata) HasAudio() bool {
	codec := strings.TrimSpace(m.Codec)
	return codec != "" && codec != UnknownCodec
}

// NeedsTranscode reports whether the resource must be converted before
// playback. Object-based streams always need it; unknown codecs never do
// because there is nothing to convert from.
func (m Metadata) NeedsTranscode(compatible map[string]struct{}) bool {
	if m.ObjectBased {
		return true
	}
	if !m.HasAudio() {
		return false
	}
	_, ok := compatible[strings.ToLower(m.Codec)]
	return !ok
}

// CodecSet builds a lookup set from codec names.
func CodecSet(codecs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codecs))
	for _, codec := range codecs {
		codec = strings.ToLower(strings.TrimSpace(codec))
		if codec != "" {
			set[codec] = struct{}{}
		}
	}
	return set
}
