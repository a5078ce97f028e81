// Package main hosts the shelfcast CLI entrypoint and command graph.
//
// Commands resolve configuration once, build the internal components they
// need (catalog client, transfer coordinator, transcode engine, streaming
// bridge), and render results as tables or JSON. Heavy lifting lives in the
// internal packages; commands here only wire and present.
package main
