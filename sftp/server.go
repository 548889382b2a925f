// Package sftp serves the FTP storage and users over SFTP.
package sftp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/telebroad/ftpd/filesystem"
	"github.com/telebroad/ftpd/keys"
	"github.com/telebroad/ftpd/users"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Close
var ErrServerClosed = errors.New("sftp: server closed")

type Server struct {
	Addr       string
	PrivateKey []byte

	logger    *slog.Logger
	fs        filesystem.FS
	users     users.Users
	sshConfig *ssh.ServerConfig

	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]struct{}
	connsWG    sync.WaitGroup
	inShutdown atomic.Bool
}

// NewSFTPServer creates a server for addr serving fs to the users of u
func NewSFTPServer(addr string, fs filesystem.FS, u users.Users) (*Server, error) {
	if fs == nil {
		return nil, errors.New("sftp: nil file system")
	}
	if u == nil {
		return nil, errors.New("sftp: nil users")
	}
	return &Server{
		Addr:  addr,
		fs:    fs,
		users: u,
		conns: make(map[net.Conn]struct{}),
	}, nil
}

// SetPrivateKey sets the PEM private key for the server.
// if not called the server will generate a new key
func (s *Server) SetPrivateKey(pk []byte) {
	s.PrivateKey = pk
}

func (s *Server) SetPrivateKeyFile(pk string) error {
	file, err := os.ReadFile(pk)
	if err != nil {
		return fmt.Errorf("error reading private key file: %w", err)
	}
	s.PrivateKey = file
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
	return logger.With("module", "sftp-server")
}

// setupSSH parses the host key, generating one when none is set
func (s *Server) setupSSH() error {
	if s.PrivateKey == nil {
		pk, _, err := keys.GeneratesED25519Keys()
		if err != nil {
			return fmt.Errorf("error generating host key: %w", err)
		}
		s.PrivateKey = pk
		s.Logger().Warn("No host key configured, generated a temporary ED25519 key")
	}

	privateKey, err := ssh.ParsePrivateKey(s.PrivateKey)
	if err != nil {
		return fmt.Errorf("error parsing private key: %w", err)
	}
	s.sshConfig = &ssh.ServerConfig{
		PasswordCallback: s.AuthHandler,
	}
	s.sshConfig.AddHostKey(privateKey)
	return nil
}

func (s *Server) ListenAndServe() error {
	if s.inShutdown.Load() {
		return ErrServerClosed
	}
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(listener)
}

// TryListenAndServe tries to start the SFTP server if there isn't an error after a certain time it returns nil
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

// Serve accepts SSH connections on l until Close
func (s *Server) Serve(l net.Listener) error {
	if err := s.setupSSH(); err != nil {
		_ = l.Close()
		return err
	}

	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		_ = l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	s.Logger().Info("SFTP server listening", "addr", l.Addr().String())

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.Logger().Warn("Failed to accept incoming connection", "error", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return fmt.Errorf("error accepting connection: %w", err)
		}

		s.mu.Lock()
		if s.inShutdown.Load() {
			s.mu.Unlock()
			_ = conn.Close()
			return ErrServerClosed
		}
		s.conns[conn] = struct{}{}
		s.connsWG.Add(1)
		s.mu.Unlock()

		go s.sshHandler(conn)
	}
}

// ListenerAddr returns the address of the listener, nil before Serve
func (s *Server) ListenerAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener and every connection and waits for their goroutines.
func (s *Server) Close() error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.Logger().Info("Closing SFTP server")

	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.connsWG.Wait()
	return err
}

// AuthHandler is called by the SSH server when a client attempts to authenticate.
func (s *Server) AuthHandler(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
	if _, err := s.users.Find(c.User(), string(pass), c.RemoteAddr().String()); err != nil {
		s.Logger().Warn("Login failed", "user", c.User(), "remote", c.RemoteAddr().String(), "error", err)
		return nil, fmt.Errorf("password rejected for %q", c.User())
	}
	return nil, nil
}

func (s *Server) sshHandler(conn net.Conn) {
	defer s.connsWG.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()
	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("Recovered from panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	// Upgrade the connection to an SSH connection.
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig)
	if err != nil {
		s.Logger().Debug("Failed to handshake", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	defer sshConn.Close()

	logger := s.Logger().With("session", sshConn.RemoteAddr().String(), "user", sshConn.User())
	logger.Info("New SSH connection", "client_version", string(sshConn.ClientVersion()))

	// The incoming Request channel must be serviced.
	go ssh.DiscardRequests(reqs)

	var wg sync.WaitGroup
	defer wg.Wait()
	for newChannel := range chans {
		// an SFTP client opens a "session" channel and asks for the sftp subsystem on it
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			logger.Error("Could not accept channel", "error", err)
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer channel.Close()
			if !s.waitForSubsystem(requests, logger) {
				return
			}
			s.serveSFTP(channel, logger)
		}()
	}
}

// waitForSubsystem answers the channel requests until the client asks for the sftp
// subsystem, the remaining requests are discarded in the background.
func (s *Server) waitForSubsystem(in <-chan *ssh.Request, logger *slog.Logger) bool {
	for req := range in {
		logger.Debug("Request", "type", req.Type)

		ok := req.Type == "subsystem" && subsystemName(req.Payload) == "sftp"
		if err := req.Reply(ok, nil); err != nil {
			logger.Error("Failed to reply", "error", err)
			return false
		}
		if ok {
			go ssh.DiscardRequests(in)
			return true
		}
	}
	return false
}

// subsystemName decodes the ssh string of a subsystem request
func subsystemName(payload []byte) string {
	var msg struct{ Name string }
	if err := ssh.Unmarshal(payload, &msg); err != nil {
		return ""
	}
	return msg.Name
}

func (s *Server) serveSFTP(channel io.ReadWriteCloser, logger *slog.Logger) {
	server := sftp.NewRequestServer(channel, NewFileSys(s.fs, logger))
	defer server.Close()

	if err := server.Serve(); err != nil && !errors.Is(err, io.EOF) {
		logger.Error("sftp server completed with error", "error", err)
		return
	}
	logger.Info("sftp client exited session")
}
