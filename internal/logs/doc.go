// Package logs reads the shelfcast log file for `shelfcast logs`.
//
// Tail returns the last N matching lines together with the byte offset at
// which reading stopped; Follow polls from that offset and hands new lines to
// a callback until its context ends. Partial trailing lines are held back so
// a line that is still being written is never split across two reads.
package logs
