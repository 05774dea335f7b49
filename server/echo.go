package server

import (
	"fmt"
	"io"
	"log"
	"net"
)

// Echo writes every byte read from conn back to it, in order, until the peer
// closes its sending side. Closing conn is left to the caller.
func Echo(conn net.Conn) {
	peer := conn.RemoteAddr()
	log.Println("echoing connection from", peer)
	defer log.Println("connection closed:", peer)

	r, w, err := split(conn)
	if err != nil {
		log.Println(err)
		return
	}

	n, err := echo(r, w)
	if err != nil {
		log.Println(err)
		return
	}
	log.Println("bytes echoed:", n)
}

// split returns a read-only and a write-only view of the same connection.
// The views hide io.ReaderFrom and io.WriterTo so io.Copy cannot hand the
// socket to itself.
func split(conn net.Conn) (io.Reader, io.Writer, error) {
	if err := checkSocket(conn); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSplit, err)
	}
	return struct{ io.Reader }{conn}, struct{ io.Writer }{conn}, nil
}

func echo(r io.Reader, w io.Writer) (int64, error) {
	n, err := io.Copy(w, r)
	if err != nil {
		return n, fmt.Errorf("%w after %d bytes: %w", ErrEcho, n, err)
	}
	return n, nil
}
