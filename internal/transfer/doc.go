// Package transfer downloads book assets.
//
// Worker performs one resumable HTTP download: it asks for the bytes past
// whatever is already on disk and appends them, restarts from zero when the
// server ignores the range, and treats 416 as "already complete".
//
// Coordinator owns the job registry. One dispatcher goroutine hands queued
// jobs to a fixed number of pool slots in FIFO order; a job holds its slot
// while it fetches its files one after another. Every state change is
// published to subscribers as an immutable Snapshot taken under the same
// mutex that guards the registry, so no subscriber sees a torn or reordered
// state.
package transfer
