// Package streaming bridges a live ffmpeg transcode into a pull-based byte
// stream for remote playback.
//
// A Bridge owns at most one session: an ffmpeg process writing ADTS AAC into
// a named pipe, and the pipe's read end. The stream is forward only. Seeking
// is emulated by closing the session and opening a new one with ffmpeg's -ss
// set from the requested byte position and the assumed constant bitrate, so
// positions are approximate and the stream length is always unknown.
//
// Close may be called from any goroutine, any number of times, with or
// without an open session. It unblocks pending reads, kills and reaps the
// process, and removes the pipe.
package streaming
