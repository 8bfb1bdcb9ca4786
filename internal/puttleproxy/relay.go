package puttleproxy

import (
	"io"
	"net"
)

// relayBufferSize is the fixed read buffer size used in both relay
// directions.
const relayBufferSize = 8192

// relay copies bytes full-duplex between client and upstream until
// either side errors or reaches EOF, then closes both sockets. Each
// direction reads at most relayBufferSize bytes at a time and writes
// them in full to the opposite socket before posting another read,
// giving natural backpressure: exactly one outstanding read and at
// most one outstanding write per direction.
func relay(client, upstream net.Conn) (bytesUp, bytesDown int64) {
	upDone := make(chan int64, 1)
	downDone := make(chan int64, 1)

	go func() {
		n, _ := copyBuffered(upstream, client)
		_ = upstream.Close()
		_ = client.Close()
		upDone <- n
	}()
	go func() {
		n, _ := copyBuffered(client, upstream)
		_ = client.Close()
		_ = upstream.Close()
		downDone <- n
	}()

	bytesUp = <-upDone
	bytesDown = <-downDone
	return bytesUp, bytesDown
}

// copyBuffered copies from src to dst using a fixed relayBufferSize
// buffer, returning the total bytes copied.
func copyBuffered(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, relayBufferSize)
	// Wrapping hides ReaderFrom/WriterTo (as on *net.TCPConn) so that
	// io.CopyBuffer always copies through buf.
	return io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, buf)
}
