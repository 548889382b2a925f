package ftp

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHostPort(t *testing.T) {
	addr, err := ParseHostPort("127,0,0,1,7,224")
	require.NoError(t, err)
	assert.Equal(t, uint16(2016), addr.Port())
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), addr.Addr())

	addr, err = ParseHostPort("192, 168, 1, 2, 255, 255")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("192.168.1.2:65535"), addr)

	for _, arg := range []string{
		"127,0,0,1,7",
		"127,0,0,1,7,224,1",
		"256,0,0,1,7,224",
		"127,0,0,1,-1,224",
		"127,0,0,1,a,224",
		"127,0,0,1,0,0",
		"",
	} {
		_, err := ParseHostPort(arg)
		assert.ErrorIs(t, err, errBadParameter, arg)
	}
}

func TestFormatHostPort(t *testing.T) {
	s, err := FormatHostPort(netip.MustParseAddrPort("10.1.2.3:2016"))
	require.NoError(t, err)
	assert.Equal(t, "10,1,2,3,7,224", s)

	s, err = FormatHostPort(netip.MustParseAddrPort("[::ffff:10.1.2.3]:21"))
	require.NoError(t, err)
	assert.Equal(t, "10,1,2,3,0,21", s)

	_, err = FormatHostPort(netip.MustParseAddrPort("[::1]:21"))
	assert.ErrorIs(t, err, errNoIPv4)

	back, err := ParseHostPort("10,1,2,3,7,224")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("10.1.2.3:2016"), back)
}

func TestFindAvailablePortInRange(t *testing.T) {
	l, err := findAvailablePortInRange("127.0.0.1", 0, 0)
	require.NoError(t, err)
	defer l.Close()
	assert.NotZero(t, l.Addr().(*net.TCPAddr).Port)

	// the only port of the range is taken
	busy := l.Addr().(*net.TCPAddr).Port
	_, err = findAvailablePortInRange("127.0.0.1", busy, busy)
	assert.Error(t, err)
}

func TestDataChannel_PassiveReplacesListener(t *testing.T) {
	var d dataChannel
	assert.False(t, d.selected())

	first, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d.setPassive(first)
	assert.True(t, d.selected())

	second, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d.setPassive(second)
	assert.Equal(t, second.Addr(), d.passiveAddr())

	_, err = first.Accept()
	assert.ErrorIs(t, err, net.ErrClosed, "the replaced listener is closed")

	d.setActive(netip.MustParseAddrPort("127.0.0.1:2016"))
	assert.Nil(t, d.passiveAddr())
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.1:2016"), d.activeTarget())
	_, err = second.Accept()
	assert.ErrorIs(t, err, net.ErrClosed, "PORT closes the passive listener")
}

func TestDataChannel_OpenPassive(t *testing.T) {
	var d dataChannel
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d.setPassive(l)

	go func() {
		c, err := net.Dial("tcp", l.Addr().String())
		if err == nil {
			_, _ = c.Write([]byte("x"))
			_ = c.Close()
		}
	}()

	conn, err := d.open(time.Second, time.Second)
	require.NoError(t, err)
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "x", string(buf))
	d.closeConn()

	// the listener stays selected for the next transfer
	assert.True(t, d.selected())
	d.abort()
}

func TestDataChannel_OpenActive(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	var d dataChannel
	d.setActive(l.Addr().(*net.TCPAddr).AddrPort())

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn, err := d.open(time.Second, time.Second)
	require.NoError(t, err)
	peer := <-accepted
	defer peer.Close()
	assert.Equal(t, conn.LocalAddr().String(), peer.RemoteAddr().String())
	d.closeConn()
}

func TestDataChannel_AcceptTimeout(t *testing.T) {
	var d dataChannel
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d.setPassive(l)
	defer d.abort()

	_, err = d.open(time.Second, 50*time.Millisecond)
	assert.Error(t, err)
}

func TestDataChannel_Abort(t *testing.T) {
	var d dataChannel
	_, err := d.open(time.Second, time.Second)
	assert.ErrorIs(t, err, errNoDataChannel)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d.setPassive(l)

	errC := make(chan error, 1)
	go func() {
		_, err := d.open(time.Second, 10*time.Second)
		errC <- err
	}()

	// let open reach Accept
	time.Sleep(50 * time.Millisecond)
	d.abort()

	select {
	case err := <-errC:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("abort did not unblock the accept")
	}

	_, err = d.open(time.Second, time.Second)
	assert.ErrorIs(t, err, errDataAborted)
}
