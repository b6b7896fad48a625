package tunnel

import (
	"bufio"
	"strings"
	"time"
)

// Wire protocol on the FRP port: one command line, newline-terminated,
// then either raw bytes (DATA) or server command lines (CONTROL).
const (
	CmdControl       = "CONTROL:"
	CmdData          = "DATA:"
	CmdNewConnection = "NEW_CONNECTION:"

	// A first line longer than this is malformed and the connection is dropped.
	MaxCommandLine = 1024
)

const (
	// Cap on the buffered HTTP request head.
	maxHeaderBytes = 16 * 1024
	// A public connection gets this long to produce its request head.
	headReadTimeout = 10 * time.Second

	// Unclaimed rendezvous entries are reaped after this long.
	pendingTTL    = 30 * time.Second
	sweepInterval = 5 * time.Second
)

// readCommandLine reads one newline-terminated command line. The reader's
// buffer size bounds the line: ReadSlice fails with ErrBufferFull when no
// newline shows up in time, which callers treat as a malformed peer.
func readCommandLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}
