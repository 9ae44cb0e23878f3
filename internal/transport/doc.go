// Package transport owns the byte-stream endpoint to the device.
//
// Ownership boundary:
// - Port abstraction (satisfied by go.bug.st/serial ports and test fakes)
// - Link: buffered read-with-timeout, line reads, writes, flush
// - wire tap mirroring every read/write to an append-only log
//
// A Link is not safe for concurrent use. The command link and the console
// link are separate Links and may be driven from separate goroutines.
package transport
