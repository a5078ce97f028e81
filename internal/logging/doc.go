// Package logging builds the slog loggers shelfcast writes to stderr and to
// shelfcast.log.
//
// Console lines lead with level, an optional alert tag and component[book_id]
// so `shelfcast logs --book` can filter them; JSON lines use ts/level/msg keys.
// WithContext copies book, job and correlation IDs from a context onto a
// logger, and WarnWithContext/ErrorWithContext guarantee every warning names
// its event type, a hint and its impact.
package logging
