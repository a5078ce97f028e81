// Package ffprobe inspects audio resources with the ffprobe CLI and parses its
// default key=value report.
//
// All text handling lives in parse.go. The report format is unversioned, so
// Parse never fails: missing or malformed fields fall back to "unknown" codec,
// zero duration, and no chapters.
//
// Key types:
//   - Prober: runs ffprobe against a local path or remote URL
//   - Metadata: codec, object-based flag, duration, and chapters
//
// Primary entry points:
//   - Prober.Probe: invoke and parse; never returns an error
//   - Parse: parse a captured report
package ffprobe
