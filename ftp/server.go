package ftp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telebroad/ftpd/filesystem"
	"github.com/telebroad/ftpd/users"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Close
var ErrServerClosed = errors.New("ftp: server closed")

const (
	DefaultAnonymousUser        = "anonymous"
	DefaultActiveDialTimeout    = 10 * time.Second
	DefaultPassiveAcceptTimeout = 30 * time.Second
)

type Server struct {
	// Addr is the TCP address of the control listener, "host:port"
	Addr string

	// FsHandler is the storage every session works on
	FsHandler filesystem.FS

	users users.Users

	// PublicServerIPv4 is advertised by PASV, the local address of the control
	// connection is used when it is not set
	PublicServerIPv4 netip.Addr

	// PasvMinPort and PasvMaxPort bound the passive ports, zero for any ephemeral port
	PasvMinPort int
	PasvMaxPort int

	// StrictMode rejects "LIST -a" with 501, otherwise the flag is ignored
	StrictMode bool

	// Anonymous allows AnonymousUser to log in without a password
	Anonymous     bool
	AnonymousUser string

	// StartDir is the working directory of new sessions
	StartDir string

	WelcomeMessage string

	ActiveDialTimeout    time.Duration
	PassiveAcceptTimeout time.Duration
	// IdleTimeout closes control connections idle for longer, zero disables it
	IdleTimeout time.Duration

	logger         *slog.Logger
	mu             sync.Mutex
	listener       net.Listener
	sessionManager *SessionManager
	sessionsWG     sync.WaitGroup
	inShutdown     atomic.Bool
}

// NewServer creates a server for addr serving fs to the users of u.
// u may be nil when only anonymous logins are wanted.
func NewServer(addr string, fs filesystem.FS, u users.Users) (*Server, error) {
	if fs == nil {
		return nil, errors.New("ftp: nil file system")
	}
	if u == nil {
		u = users.NewLocalUsers()
	}
	return &Server{
		Addr:                 addr,
		FsHandler:            fs,
		users:                u,
		AnonymousUser:        DefaultAnonymousUser,
		StartDir:             fs.RootDir(),
		WelcomeMessage:       StatusText(StatusServiceReadyForNewUser),
		ActiveDialTimeout:    DefaultActiveDialTimeout,
		PassiveAcceptTimeout: DefaultPassiveAcceptTimeout,
		sessionManager:       NewSessionManager(),
	}, nil
}

// SetPublicServerIPv4 sets the address advertised in PASV replies, empty clears it
func (s *Server) SetPublicServerIPv4(ip string) error {
	if ip == "" {
		s.PublicServerIPv4 = netip.Addr{}
		return nil
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return fmt.Errorf("error parsing public ip: %w", err)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return fmt.Errorf("public ip %q: %w", ip, errNoIPv4)
	}
	s.PublicServerIPv4 = addr
	return nil
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Logger returns the logger for the server.
func (s *Server) Logger() *slog.Logger {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("module", "ftp-server")
}

// Sessions returns the manager of the active sessions
func (s *Server) Sessions() *SessionManager {
	return s.sessionManager
}

// ListenAndServe listens on Addr and serves control connections until Close.
func (s *Server) ListenAndServe() error {
	if s.inShutdown.Load() {
		return ErrServerClosed
	}
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("error starting server: %w", err)
	}
	return s.Serve(listener)
}

// TryListenAndServe tries to start the FTP server if there isn't an error after a certain time it returns nil
func (s *Server) TryListenAndServe(d time.Duration) (err error) {
	errC := make(chan error, 1)

	go func() {
		errC <- s.ListenAndServe()
	}()

	select {
	case err = <-errC:
		return err
	case <-time.After(d):
		return nil
	}
}

// Serve accepts control connections on l, one goroutine per session.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		_ = l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	s.Logger().Info("FTP server listening", "addr", l.Addr().String())

	var tempDelay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else if tempDelay *= 2; tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.Logger().Warn("Error accepting connection", "error", err, "retry_in", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("error accepting connection: %w", err)
		}
		tempDelay = 0

		s.mu.Lock()
		if s.inShutdown.Load() {
			s.mu.Unlock()
			_ = conn.Close()
			return ErrServerClosed
		}
		s.sessionsWG.Add(1)
		s.mu.Unlock()
		go s.handleConnection(conn)
	}
}

// ListenerAddr returns the address of the control listener, nil before Serve
func (s *Server) ListenerAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting connections, closes every session with its data sockets and
// waits for the session goroutines to return.
func (s *Server) Close(cause error) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.Logger().Info("Closing FTP server", "cause", cause)

	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.mu.Unlock()

	s.sessionManager.Range(func(_ string, session *Session) bool {
		session.Close()
		return true
	})
	s.sessionsWG.Wait()
	return err
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.sessionsWG.Done()
	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("Recovered from panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	session := newSession(s, conn)
	s.sessionManager.Add(session.id, session)
	defer s.sessionManager.Remove(session.id)

	// Close may have run between Accept and Add
	if s.inShutdown.Load() {
		session.Close()
		return
	}
	session.serve()
}
