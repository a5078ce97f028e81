// Package catalog fetches book metadata from the remote book server.
//
// The server exposes books as JSON under /api/books. Asset links in the
// payload may be absolute or relative to the server URL; the client resolves
// them so callers always receive absolute URLs ready for transfer.
package catalog
