//go:build unix

package tcp

import (
	"errors"
	"io"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// readNow reads whatever the kernel has already queued for conn without
// waiting. ok is false when conn does not expose its file descriptor, in
// which case the caller falls back to a deadline read.
func readNow(conn net.Conn, buf []byte) (n int, ok bool, err error) {
	sc, isSyscall := conn.(syscall.Conn)
	if !isSyscall {
		return 0, false, nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false, nil
	}

	var readErr error
	err = raw.Read(func(fd uintptr) bool {
		n, readErr = unix.Read(int(fd), buf)
		// returning true keeps the poller from parking on EAGAIN
		return true
	})
	if err != nil {
		return 0, true, err
	}

	switch {
	case errors.Is(readErr, unix.EAGAIN), errors.Is(readErr, unix.EWOULDBLOCK), errors.Is(readErr, unix.EINTR):
		return 0, true, nil
	case readErr != nil:
		return 0, true, readErr
	case n == 0 && len(buf) > 0:
		return 0, true, io.EOF
	}
	return n, true, nil
}
