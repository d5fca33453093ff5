//go:build !windows
// +build !windows

package pty

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// inputPollMillis bounds how long ForwardInput takes to notice done.
const inputPollMillis = 50

// ForwardInput copies src to dst until done is closed or src reaches end of
// input. src is polled rather than read blocking, so once ForwardInput
// returns no read is left pending on src and the next reader of the terminal
// sees every keystroke.
func ForwardInput(done <-chan struct{}, dst io.Writer, src *os.File) error {
	fd := int(src.Fd())
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	buf := make([]byte, 4096)

	for {
		select {
		case <-done:
			return nil
		default:
		}

		n, err := unix.Poll(fds, inputPollMillis)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}
		select {
		case <-done:
			return nil
		default:
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			// hangup or error without data
			return nil
		}

		r, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return err
		}
		if r == 0 {
			return nil
		}
		if _, err := dst.Write(buf[:r]); err != nil {
			return err
		}
	}
}
