//go:build !unix

package server

import "net"

func checkSocket(net.Conn) error {
	return nil
}

func temporaryErrno(error) bool {
	return false
}
