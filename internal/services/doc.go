// Package services defines shared utilities consumed by the transfer,
// transcode, and streaming layers.
//
// Key responsibilities:
//   - Context helpers that stamp book IDs, job IDs, operation names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (external tool, transient network, not found) with errors.Is.
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
