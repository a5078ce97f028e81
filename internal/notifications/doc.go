// Package notifications posts transfer outcomes to an ntfy topic.
//
// NewService returns a no-op notifier when no topic is configured, so callers
// publish unconditionally. Each Event maps to a fixed title, tag set, and
// message template filled from a Payload.
package notifications
