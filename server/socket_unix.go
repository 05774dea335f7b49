//go:build unix

package server

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// checkSocket fails if the descriptor behind conn has been closed or has a
// pending error. Connections without a descriptor always pass.
func checkSocket(conn net.Conn) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return err
	}

	var soErr int
	var sockErr error
	err = rc.Control(func(fd uintptr) {
		soErr, sockErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
	})
	if err != nil {
		return err
	}
	if sockErr != nil {
		return sockErr
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}

// temporaryErrno reports whether err carries an errno that accept can return
// while the listening socket itself is still fine.
func temporaryErrno(err error) bool {
	for _, errno := range []unix.Errno{
		unix.ECONNABORTED,
		unix.EINTR,
		unix.EMFILE,
		unix.ENFILE,
		unix.ENOBUFS,
		unix.ENOMEM,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
