// Package protocol owns the wire contract shared by the device link.
//
// Ownership boundary:
// - error taxonomy (no data, framing, unexpected response, semantic)
// - frame codec (frame)
// - unit scanning (scanner)
// - channel demultiplexing (channel)
// - debug console extraction (console)
// - file/directory request and response codec (fileop)
package protocol
