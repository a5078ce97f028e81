// Package library maps book metadata onto the on-disk layout of downloaded
// assets.
//
// Every function is deterministic: the transfer layer uses Path to decide
// where bytes land, and Downloaded uses the same Path to decide whether a
// book is already local. Both must agree bit for bit.
package library
