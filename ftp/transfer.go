package ftp

import (
	"bufio"
	"errors"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// transferFunc moves the bytes of one transfer over the data connection
type transferFunc func(conn net.Conn) (int64, error)

// transfer runs one data transfer: 150, open the data connection, copy, then 226 on
// success, 425 if the connection can't be opened and 451 if the copy fails.
// The returned error is fatal for the session.
func (session *Session) transfer(cmd Command, name string, fn transferFunc) error {
	if err := session.reply(StatusFileStatusOK, ""); err != nil {
		return err
	}

	stop := session.watchControl()
	start := time.Now()
	conn, err := session.data.open(session.ftpServer.ActiveDialTimeout, session.ftpServer.PassiveAcceptTimeout)
	if err != nil {
		stop()
		if session.controlClosed.Load() {
			return errControlClosed
		}
		session.logger.Warn("Error opening data connection", "command", cmd, "error", err)
		return session.reply(StatusCantOpenDataConnection, "")
	}

	n, err := fn(conn)
	session.data.closeConn()
	stop()
	if session.controlClosed.Load() {
		return errControlClosed
	}

	logger := session.logger.With(
		"command", cmd,
		"path", name,
		"bytes", n,
		"size", humanize.IBytes(uint64(n)),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		logger.Error("Transfer failed", "error", err)
		return session.reply(StatusLocalProcessingError, "")
	}
	logger.Info("Transfer complete")
	return session.reply(StatusClosingDataConnection, "")
}

// watchControl watches the control connection while a transfer blocks the session
// goroutine. If the peer goes away the data channel is aborted so the blocked accept,
// dial or copy returns. stop ends the watch and must be called before the next read.
// Input sent meanwhile stays buffered for the command loop, the watch gives up only
// once the read buffer is full.
func (session *Session) watchControl() (stop func()) {
	_ = session.conn.SetReadDeadline(time.Time{})
	r := session.readWriter.Reader
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			n := r.Buffered() + 1
			if n > r.Size() {
				return
			}
			_, err := r.Peek(n)
			if err == nil {
				continue
			}
			if !errors.Is(err, os.ErrDeadlineExceeded) {
				session.controlClosed.Store(true)
				session.data.abort()
			}
			return
		}
	}()
	return func() {
		_ = session.conn.SetReadDeadline(time.Now())
		<-done
		_ = session.conn.SetReadDeadline(time.Time{})
	}
}

// writeListing writes one line per entry through a buffered writer
func writeListing(conn net.Conn, lines []string) (int64, error) {
	w := bufio.NewWriter(conn)
	var n int64
	for _, line := range lines {
		written, err := w.WriteString(line)
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, w.Flush()
}
