package producer

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// newUnixSocketpair creates a connected pair of close-on-exec stream
// sockets, wrapped as net.Conn, for handing one half to a producer via
// descriptor transfer while the host keeps the other.
func newUnixSocketpair() (local, remote net.Conn, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("producer: socketpair: %w", err)
	}

	localFile := os.NewFile(uintptr(fds[0]), "subsegment-local")
	remoteFile := os.NewFile(uintptr(fds[1]), "subsegment-remote")

	local, err = net.FileConn(localFile)
	if err != nil {
		_ = localFile.Close()
		_ = remoteFile.Close()
		return nil, nil, fmt.Errorf("producer: wrap local half: %w", err)
	}
	_ = localFile.Close() // FileConn dup'd the descriptor

	remote, err = net.FileConn(remoteFile)
	if err != nil {
		_ = local.Close()
		_ = remoteFile.Close()
		return nil, nil, fmt.Errorf("producer: wrap remote half: %w", err)
	}
	_ = remoteFile.Close()

	return local, remote, nil
}
