// Package textutil provides small text helpers shared by the library layout
// and the CLI.
//
// Path segments are sanitized deterministically: the same input always yields
// the same output, and sanitizing an already sanitized value is a no-op. The
// download writer and the "already downloaded" check both rely on that.
package textutil
