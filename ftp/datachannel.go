package ftp

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	errNoDataChannel = errors.New("no data channel selected, send PASV or PORT first")
	errDataAborted   = errors.New("data channel aborted")
	errNoIPv4        = errors.New("no IPv4 address to advertise for passive mode")
)

// dataChannel is the data-channel state of a session. Either the passive listener or
// the active target is selected, never both. The mutex lets the control watcher tear the
// sockets down while the session goroutine is blocked on them.
type dataChannel struct {
	mu       sync.Mutex
	listener net.Listener   // passive mode
	target   netip.AddrPort // active mode
	conn     net.Conn       // connection of the transfer in progress
	aborted  bool
}

// selected reports whether PASV or PORT has configured a channel
func (d *dataChannel) selected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listener != nil || d.target.IsValid()
}

// closeListener closes the passive listener, if any
func (d *dataChannel) closeListener() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeListenerLocked()
}

func (d *dataChannel) closeListenerLocked() {
	if d.listener != nil {
		_ = d.listener.Close()
		d.listener = nil
	}
}

// setPassive selects passive mode. The previous listener must already be closed.
func (d *dataChannel) setPassive(l net.Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeListenerLocked()
	d.target = netip.AddrPort{}
	d.listener = l
}

// setActive selects active mode and closes any passive listener
func (d *dataChannel) setActive(target netip.AddrPort) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeListenerLocked()
	d.target = target
}

// activeTarget returns the PORT coordinates, invalid in passive mode
func (d *dataChannel) activeTarget() netip.AddrPort {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

// passiveAddr returns the address of the passive listener, nil in active mode
func (d *dataChannel) passiveAddr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// open establishes the connection of one transfer: one accept from the passive listener
// or a fresh dial to the active target.
func (d *dataChannel) open(dialTimeout, acceptTimeout time.Duration) (net.Conn, error) {
	d.mu.Lock()
	if d.aborted {
		d.mu.Unlock()
		return nil, errDataAborted
	}
	listener, target := d.listener, d.target
	d.mu.Unlock()

	var conn net.Conn
	var err error
	switch {
	case listener != nil:
		if tl, ok := listener.(*net.TCPListener); ok && acceptTimeout > 0 {
			_ = tl.SetDeadline(time.Now().Add(acceptTimeout))
		}
		conn, err = listener.Accept()
		if err != nil {
			return nil, fmt.Errorf("error accepting data connection: %w", err)
		}
	case target.IsValid():
		conn, err = net.DialTimeout("tcp", target.String(), dialTimeout)
		if err != nil {
			return nil, fmt.Errorf("error connecting to data port: %w", err)
		}
	default:
		return nil, errNoDataChannel
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.aborted {
		_ = conn.Close()
		return nil, errDataAborted
	}
	d.conn = conn
	return conn, nil
}

// closeConn closes the connection of the finished transfer, the selection stays
func (d *dataChannel) closeConn() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

// abort closes every socket and refuses to open new ones
func (d *dataChannel) abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aborted = true
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
	d.closeListenerLocked()
	d.target = netip.AddrPort{}
}

// findAvailablePortInRange listens on the first free port of the range on host.
// A zero range picks any ephemeral port.
func findAvailablePortInRange(host string, start, end int) (net.Listener, error) {
	if start == 0 && end == 0 {
		listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
		if err != nil {
			return nil, fmt.Errorf("error listening for data connection: %w", err)
		}
		return listener, nil
	}
	for port := start; port <= end; port++ {
		listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return listener, nil
		}
	}
	return nil, fmt.Errorf("no available ports found in range %d-%d", start, end)
}

// FormatHostPort formats an IPv4 address and port as the six decimal octets
// "h1,h2,h3,h4,p1,p2" used by PASV and PORT.
func FormatHostPort(addr netip.AddrPort) (string, error) {
	ip := addr.Addr().Unmap()
	if !ip.Is4() {
		return "", fmt.Errorf("%w: %s", errNoIPv4, ip)
	}
	a := ip.As4()
	port := addr.Port()
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", a[0], a[1], a[2], a[3], port/256, port%256), nil
}

// ParseHostPort parses the argument of PORT, "h1,h2,h3,h4,p1,p2", port = p1*256+p2
func ParseHostPort(arg string) (netip.AddrPort, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != 6 {
		return netip.AddrPort{}, fmt.Errorf("%w: host-port %q", errBadParameter, arg)
	}

	var octets [6]byte
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 || v > 255 {
			return netip.AddrPort{}, fmt.Errorf("%w: host-port %q", errBadParameter, arg)
		}
		octets[i] = byte(v)
	}

	port := uint16(octets[4])<<8 | uint16(octets[5])
	if port == 0 {
		return netip.AddrPort{}, fmt.Errorf("%w: port 0", errBadParameter)
	}
	ip := netip.AddrFrom4([4]byte{octets[0], octets[1], octets[2], octets[3]})
	return netip.AddrPortFrom(ip, port), nil
}
