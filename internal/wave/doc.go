// Package wave drives a bada handset over its command link.
//
// Ownership boundary:
// - AT command exchange and derived property queries
// - binary status queries (install condition, install, terminate, run)
// - file and directory transfer built on the fileop codec
// - debug console echo to pluggable sinks
//
// A Device issues one request at a time and is not safe for concurrent use.
// The console link may be drained by a separate goroutine through Console.
package wave
