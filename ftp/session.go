package ftp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telebroad/ftpd/tools"
)

var (
	// errQuit ends the session after the 221 reply of QUIT
	errQuit = errors.New("client quit")
	// errControlClosed ends the session when the control connection dropped during a transfer
	errControlClosed = errors.New("control connection closed during transfer")
)

// Session is the state of one control connection. Only the goroutine running serve
// touches it, except for the data channel and controlClosed which the control watcher
// shares.
type Session struct {
	ftpServer  *Server                 // The server the session belongs to
	id         string                  // Remote address of the control connection
	conn       net.Conn                // The control connection
	readWriter *tools.BufLogReadWriter // Buffered reader and logging writer over conn
	logger     *slog.Logger

	isAuthenticated bool   // Authentication status
	anonymous       bool   // logged in as the anonymous user
	pendingUser     string // name accepted by USER, waiting for PASS
	username        string // authenticated user
	workingDir      string // Current working directory, always absolute

	representation Representation
	mode           TransferMode
	structure      DataStructure
	restartOffset  int64  // consumed by the next RETR or STOR
	renamingFile   string // set by RNFR, consumed by RNTO

	data          dataChannel
	controlClosed atomic.Bool
	closeOnce     sync.Once
}

func newSession(s *Server, conn net.Conn) *Session {
	id := conn.RemoteAddr().String()
	logger := s.Logger().With("session", id)
	workingDir := s.StartDir
	if workingDir == "" {
		workingDir = s.FsHandler.RootDir()
	}
	return &Session{
		ftpServer:      s,
		id:             id,
		conn:           conn,
		readWriter:     tools.NewBufLogReadWriter(conn, logger),
		logger:         logger,
		workingDir:     path.Clean(workingDir),
		representation: Representation{Type: TypeASCII, Form: FormNonPrint},
		mode:           ModeStream,
		structure:      StructureFile,
	}
}

// ID returns the remote address of the control connection
func (session *Session) ID() string {
	return session.id
}

// serve sends the greeting and runs the command loop until the client quits or the
// control connection fails.
func (session *Session) serve() {
	defer session.Close()
	session.logger.Info("Session started")
	defer session.logger.Info("Session ended")

	if err := session.reply(StatusServiceReadyForNewUser, session.ftpServer.WelcomeMessage); err != nil {
		session.logger.Error("Error sending welcome message", "error", err)
		return
	}

	for {
		if idle := session.ftpServer.IdleTimeout; idle > 0 {
			_ = session.conn.SetReadDeadline(time.Now().Add(idle))
		}
		req, err := ReadCommand(session.readWriter.Reader)
		if err != nil {
			switch {
			case errors.Is(err, errLineTooLong):
				if err := session.reply(StatusSyntaxError, "Command line too long."); err != nil {
					return
				}
				continue
			case errors.Is(err, os.ErrDeadlineExceeded):
				session.logger.Info("Idle timeout")
				_ = session.reply(StatusServiceNotAvailable, "Idle timeout, closing control connection.")
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				session.logger.Debug("Connection closed by peer")
			default:
				session.logger.Error("Error reading command", "error", err)
			}
			return
		}

		if err := session.dispatch(req); err != nil {
			switch {
			case errors.Is(err, errQuit):
			case errors.Is(err, errControlClosed):
				session.logger.Info("Control connection closed during transfer")
			default:
				session.logger.Error("Error handling command", "command", req.Verb, "error", err)
			}
			return
		}
	}
}

// Close tears down the data channel and the control connection, it is safe to call
// from any goroutine and more than once.
func (session *Session) Close() {
	session.closeOnce.Do(func() {
		session.data.abort()
		if session.conn != nil {
			_ = session.conn.Close()
		}
	})
}

// reply writes one reply line, an empty message uses the default text of the code.
// A write error is fatal for the session.
func (session *Session) reply(code StatusCode, message string) error {
	if _, err := NewReply(code, message).WriteTo(session.readWriter); err != nil {
		return fmt.Errorf("error writing reply: %w", err)
	}
	return nil
}

func (session *Session) replyf(code StatusCode, format string, args ...any) error {
	return session.reply(code, fmt.Sprintf(format, args...))
}

// abs resolves name against the working directory, an empty name is the working directory
func (session *Session) abs(name string) string {
	if name == "" {
		return session.workingDir
	}
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(session.workingDir, name)
}

// addrPort converts a TCP address to a netip.AddrPort
func addrPort(addr net.Addr) (netip.AddrPort, error) {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.AddrPort(), nil
	}
	return netip.ParseAddrPort(addr.String())
}

// SessionManager manages all active sessions.
type SessionManager struct {
	sessions map[string]*Session // Map of active sessions
	lock     sync.RWMutex        // Protects the sessions map
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// Add adds a new session for the client.
func (manager *SessionManager) Add(id string, session *Session) {
	manager.lock.Lock()
	defer manager.lock.Unlock()
	manager.sessions[id] = session
}

// Get retrieves a session by its ID.
func (manager *SessionManager) Get(id string) (*Session, bool) {
	manager.lock.RLock()
	defer manager.lock.RUnlock()
	session, exists := manager.sessions[id]
	return session, exists
}

// Remove removes a session by its ID.
func (manager *SessionManager) Remove(id string) {
	manager.lock.Lock()
	defer manager.lock.Unlock()
	delete(manager.sessions, id)
}

// Len returns the number of active sessions
func (manager *SessionManager) Len() int {
	manager.lock.RLock()
	defer manager.lock.RUnlock()
	return len(manager.sessions)
}

// Range calls f for every session until f returns false.
// f must not call Add or Remove.
func (manager *SessionManager) Range(f func(id string, session *Session) bool) {
	manager.lock.RLock()
	defer manager.lock.RUnlock()
	for id, session := range manager.sessions {
		if !f(id, session) {
			return
		}
	}
}
