package trigger

import (
	"net"

	"golang.org/x/sys/unix"
)

// setDSCP marks outgoing request packets with a DSCP code point, adapted
// from the teacher's dscp.Enable (IP_TOS for v4, IPV6_TCLASS for v6),
// applied directly to the connection's file descriptor.
func setDSCP(conn *net.UDPConn, ip net.IP, dscp int) error {
	if dscp <= 0 {
		return nil
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	tos := dscp << 2
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if ip.To4() != nil {
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, tos)
		} else {
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
