// Package preflight provides readiness checks for the filesystem paths and
// the book server that shelfcast depends on.
//
// The CLI "deps" command runs RunAll next to the external tool checks so a
// misconfigured library root or an unreachable server shows up before a
// transfer is attempted.
package preflight
