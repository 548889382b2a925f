package ftp

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/netip"
	"path"
	"runtime"
	"strings"

	"github.com/telebroad/ftpd/filesystem"
)

// handler serves one verb. needsArg makes the dispatcher reply 501 to a bare verb.
// Handlers check authentication themselves, a returned error ends the session.
type handler struct {
	fn       func(session *Session, cmd Command, arg string) error
	needsArg bool
}

var handlers = map[Command]handler{
	USER: {(*Session).handleUser, false},
	PASS: {(*Session).handlePass, false},
	ACCT: {(*Session).handleAcct, true},
	QUIT: {(*Session).handleQuit, false},
	NOOP: {(*Session).handleNoop, false},
	SYST: {(*Session).handleSyst, false},
	SITE: {(*Session).handleSite, true},

	TYPE: {(*Session).handleType, true},
	MODE: {(*Session).handleMode, true},
	STRU: {(*Session).handleStru, true},
	REST: {(*Session).handleRest, true},
	PASV: {(*Session).handlePasv, false},
	PORT: {(*Session).handlePort, true},

	CWD:  {(*Session).handleCwd, true},
	XCWD: {(*Session).handleCwd, true},
	CDUP: {(*Session).handleCdup, false},
	XCUP: {(*Session).handleCdup, false},
	PWD:  {(*Session).handlePwd, false},
	XPWD: {(*Session).handlePwd, false},
	MKD:  {(*Session).handleMkd, true},
	XMKD: {(*Session).handleMkd, true},
	RMD:  {(*Session).handleRmd, true},
	XRMD: {(*Session).handleRmd, true},
	DELE: {(*Session).handleDele, true},
	RNFR: {(*Session).handleRnfr, true},
	RNTO: {(*Session).handleRnto, true},
	SIZE: {(*Session).handleSize, true},

	RETR: {(*Session).handleRetr, true},
	STOR: {(*Session).handleStor, true},
	APPE: {(*Session).handleStor, true},
	LIST: {(*Session).handleList, false},
	NLST: {(*Session).handleList, false},
}

// dispatch looks the verb up and runs its handler
func (session *Session) dispatch(req Request) error {
	h, ok := handlers[req.Verb]
	if !ok {
		session.logger.Debug("Command not implemented", "command", req.Verb)
		return session.reply(StatusCommandNotImplemented, "")
	}
	if h.needsArg && req.Argument == "" {
		return session.reply(StatusSyntaxErrorInParameters, "")
	}
	return h.fn(session, req.Verb, req.Argument)
}

// replyForFSError maps a storage error to 550 when it says something about the
// file itself and to fallback otherwise
func (session *Session) replyForFSError(cmd Command, err error, fallback StatusCode) error {
	session.logger.Warn("File action not taken", "command", cmd, "error", err)
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, filesystem.ErrIsDir),
		errors.Is(err, filesystem.ErrNotDir),
		errors.Is(err, filesystem.ErrDirNotEmpty),
		errors.Is(err, filesystem.ErrInvalidPath):
		return session.reply(StatusFileUnavailable, "")
	}
	return session.reply(fallback, "")
}

func (session *Session) handleUser(_ Command, arg string) error {
	session.isAuthenticated = false
	session.anonymous = false
	session.username = ""
	session.pendingUser = ""

	if arg == "" {
		return session.reply(StatusNeedAccountForLogin, "")
	}

	srv := session.ftpServer
	if srv.Anonymous && strings.EqualFold(arg, srv.AnonymousUser) {
		session.isAuthenticated = true
		session.anonymous = true
		session.username = arg
		session.logger.Info("Anonymous user logged in")
		return session.reply(StatusUserLoggedIn, "")
	}

	if _, err := srv.users.Get(arg); err != nil {
		session.logger.Warn("Unknown user", "username", arg)
		return session.reply(StatusNotLoggedIn, "")
	}
	session.pendingUser = arg
	return session.reply(StatusUserNameOK, "")
}

func (session *Session) handlePass(_ Command, arg string) error {
	if session.isAuthenticated {
		return session.reply(StatusUserLoggedIn, "")
	}
	if session.pendingUser == "" {
		return session.reply(StatusNotLoggedIn, "")
	}

	user, err := session.ftpServer.users.Find(session.pendingUser, arg, session.id)
	if err != nil {
		session.logger.Warn("Login failed", "username", session.pendingUser, "error", err)
		return session.reply(StatusNotLoggedIn, "")
	}
	session.isAuthenticated = true
	session.username = user.Username
	session.pendingUser = ""
	session.logger.Info("User logged in", "username", user.Username)
	return session.reply(StatusUserLoggedIn, "")
}

func (session *Session) handleAcct(_ Command, _ string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	return session.reply(StatusCommandNotImplementedSuperfluous, "")
}

func (session *Session) handleQuit(_ Command, _ string) error {
	if err := session.reply(StatusServiceClosingControlConnection, ""); err != nil {
		return err
	}
	return errQuit
}

func (session *Session) handleNoop(_ Command, _ string) error {
	return session.reply(StatusCommandOK, "")
}

func (session *Session) handleSyst(_ Command, _ string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	return session.reply(StatusNameSystemType, SystemType())
}

// SystemType returns the text of the SYST reply for the running OS
func SystemType() string {
	switch goos := runtime.GOOS; goos {
	case "windows":
		return "WINDOWS Type: L8"
	case "linux", "darwin", "freebsd", "openbsd", "netbsd":
		return "UNIX Type: L8"
	default:
		return "OS Type: " + goos
	}
}

func (session *Session) handleSite(_ Command, _ string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	return session.reply(StatusCommandNotImplementedSuperfluous, "")
}

func (session *Session) handleType(_ Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	rep, err := ParseType(arg)
	if err != nil {
		return session.reply(StatusSyntaxErrorInParameters, "")
	}
	session.representation = rep
	return session.replyf(StatusCommandOK, "Type set to %s.", rep)
}

func (session *Session) handleMode(_ Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	mode, err := ParseMode(arg)
	if err != nil {
		return session.reply(StatusSyntaxErrorInParameters, "")
	}
	session.mode = mode
	return session.replyf(StatusCommandOK, "Mode set to %s.", mode)
}

func (session *Session) handleStru(_ Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	structure, err := ParseStructure(arg)
	if err != nil {
		return session.reply(StatusSyntaxErrorInParameters, "")
	}
	session.structure = structure
	return session.replyf(StatusCommandOK, "Structure set to %s.", structure)
}

func (session *Session) handleRest(_ Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	offset, err := ParseRestartOffset(arg)
	if err != nil {
		return session.reply(StatusSyntaxErrorInParameters, "")
	}
	session.restartOffset = offset
	return session.replyf(StatusFileActionPending, "Restarting at %d. Send STORE or RETRIEVE.", offset)
}

func (session *Session) handlePasv(_ Command, _ string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	// the old listener is gone before the new port is advertised
	session.data.closeListener()

	srv := session.ftpServer
	local, err := addrPort(session.conn.LocalAddr())
	if err != nil {
		session.logger.Error("Error reading control connection address", "error", err)
		return session.reply(StatusCantOpenDataConnection, "")
	}
	localIP := local.Addr().Unmap()

	advertised := srv.PublicServerIPv4
	bindHost := ""
	if localIP.Is4() {
		bindHost = localIP.String()
		if !advertised.IsValid() {
			advertised = localIP
		}
	}
	if !advertised.IsValid() {
		session.logger.Warn("Passive mode unavailable", "error", errNoIPv4)
		return session.reply(StatusCantOpenDataConnection, "")
	}

	listener, err := findAvailablePortInRange(bindHost, srv.PasvMinPort, srv.PasvMaxPort)
	if err != nil {
		session.logger.Error("Error opening passive listener", "error", err)
		return session.reply(StatusCantOpenDataConnection, "")
	}
	listenAddr, err := addrPort(listener.Addr())
	if err != nil {
		_ = listener.Close()
		return session.reply(StatusCantOpenDataConnection, "")
	}
	hostPort, err := FormatHostPort(netip.AddrPortFrom(advertised, listenAddr.Port()))
	if err != nil {
		_ = listener.Close()
		return session.reply(StatusCantOpenDataConnection, "")
	}

	session.data.setPassive(listener)
	session.logger.Debug("Passive mode", "listen", listener.Addr().String(), "advertised", hostPort)
	return session.reply(StatusEnteringPassiveMode, "="+hostPort)
}

func (session *Session) handlePort(_ Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	target, err := ParseHostPort(arg)
	if err != nil {
		return session.reply(StatusSyntaxErrorInParameters, "")
	}
	session.data.setActive(target)
	session.logger.Debug("Active mode", "target", target.String())
	return session.reply(StatusCommandOK, "PORT command successful.")
}

func (session *Session) handleCwd(cmd Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	dir := session.abs(arg)
	// a missing directory is accepted, only an existing regular file is refused
	if info, err := session.ftpServer.FsHandler.Stat(dir); err == nil && !info.IsDir() {
		return session.replyForFSError(cmd, fmt.Errorf("%q: %w", dir, filesystem.ErrNotDir), StatusFileUnavailable)
	}
	session.workingDir = dir
	return session.reply(StatusFileActionOK, "")
}

func (session *Session) handleCdup(_ Command, _ string) error {
	return session.handleCwd(CWD, "..")
}

func (session *Session) handlePwd(_ Command, _ string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	return session.replyf(StatusPathnameCreated, "%s is the current directory.", quotePath(session.workingDir))
}

// quotePath quotes a pathname for a 257 reply, embedded quotes are doubled
func quotePath(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (session *Session) handleMkd(cmd Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	if err := session.ftpServer.FsHandler.MakeDir(session.abs(arg)); err != nil {
		return session.replyForFSError(cmd, err, StatusFileUnavailable)
	}
	return session.replyf(StatusPathnameCreated, "%s created.", quotePath(arg))
}

func (session *Session) handleRmd(cmd Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	if err := session.ftpServer.FsHandler.RemoveDir(session.abs(arg)); err != nil {
		return session.replyForFSError(cmd, err, StatusFileUnavailable)
	}
	return session.reply(StatusFileActionOK, "")
}

func (session *Session) handleDele(cmd Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	name := session.abs(arg)
	if _, err := session.ftpServer.FsHandler.Stat(name); err != nil {
		return session.replyForFSError(cmd, err, StatusFileUnavailable)
	}
	if err := session.ftpServer.FsHandler.Remove(name); err != nil {
		return session.replyForFSError(cmd, err, StatusRequestedFileActionNotTaken)
	}
	return session.reply(StatusFileActionOK, "")
}

func (session *Session) handleRnfr(cmd Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	name := session.abs(arg)
	if _, err := session.ftpServer.FsHandler.Stat(name); err != nil {
		session.renamingFile = ""
		return session.replyForFSError(cmd, err, StatusFileUnavailable)
	}
	session.renamingFile = name
	return session.reply(StatusFileActionPending, "")
}

func (session *Session) handleRnto(cmd Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	from := session.renamingFile
	session.renamingFile = ""
	if from == "" {
		return session.reply(StatusBadSequenceOfCommands, "")
	}
	if err := session.ftpServer.FsHandler.Rename(from, session.abs(arg)); err != nil {
		return session.replyForFSError(cmd, err, StatusFileUnavailable)
	}
	return session.reply(StatusFileActionOK, "")
}

func (session *Session) handleSize(cmd Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	name := session.abs(arg)
	info, err := session.ftpServer.FsHandler.Stat(name)
	if err != nil {
		return session.replyForFSError(cmd, err, StatusFileUnavailable)
	}
	if info.IsDir() {
		return session.replyForFSError(cmd, fmt.Errorf("%q: %w", name, filesystem.ErrIsDir), StatusFileUnavailable)
	}
	return session.replyf(StatusFileStatus, "%d", info.Size())
}

func (session *Session) handleRetr(cmd Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	offset := session.restartOffset
	session.restartOffset = 0

	if !session.data.selected() {
		return session.reply(StatusBadSequenceOfCommands, "")
	}
	name := session.abs(arg)
	file, err := session.ftpServer.FsHandler.OpenRead(name, offset)
	if err != nil {
		return session.replyForFSError(cmd, err, StatusFileUnavailable)
	}
	defer file.Close()

	return session.transfer(cmd, name, func(conn net.Conn) (int64, error) {
		return io.Copy(conn, file)
	})
}

// handleStor serves STOR and APPE. STOR honors the restart offset, APPE always
// writes at the end of the file. The file is opened once the data connection is up,
// so a transfer that never starts leaves it untouched.
func (session *Session) handleStor(cmd Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	offset := session.restartOffset
	session.restartOffset = 0

	if !session.data.selected() {
		return session.reply(StatusBadSequenceOfCommands, "")
	}
	name := session.abs(arg)
	if err := session.checkWritable(name); err != nil {
		return session.replyForFSError(cmd, err, StatusFileUnavailable)
	}
	appendOnly := cmd == APPE
	if appendOnly {
		offset = 0
	}

	return session.transfer(cmd, name, func(conn net.Conn) (int64, error) {
		file, err := session.ftpServer.FsHandler.OpenWrite(name, offset, appendOnly)
		if err != nil {
			return 0, err
		}
		// a partial upload stays as written
		n, err := io.Copy(file, conn)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		return n, err
	})
}

// checkWritable refuses an upload target that is a directory or whose parent is not one
func (session *Session) checkWritable(name string) error {
	fsys := session.ftpServer.FsHandler
	if info, err := fsys.Stat(name); err == nil && info.IsDir() {
		return fmt.Errorf("%q: %w", name, filesystem.ErrIsDir)
	}
	parent, err := fsys.Stat(path.Dir(name))
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return fmt.Errorf("%q: %w", path.Dir(name), filesystem.ErrNotDir)
	}
	return nil
}

// handleList serves LIST (EPLF lines) and NLST (names only). "-a" is rejected in
// strict mode and ignored otherwise, any other argument lists that directory without
// changing the working directory.
func (session *Session) handleList(cmd Command, arg string) error {
	if !session.isAuthenticated {
		return session.reply(StatusNotLoggedIn, "")
	}
	dir := session.workingDir
	if arg == "-a" {
		if session.ftpServer.StrictMode {
			return session.reply(StatusSyntaxErrorInParameters, "")
		}
	} else if arg != "" {
		dir = session.abs(arg)
	}

	if !session.data.selected() {
		return session.reply(StatusBadSequenceOfCommands, "")
	}
	entries, err := session.ftpServer.FsHandler.Dir(dir)
	if err != nil {
		return session.replyForFSError(cmd, err, StatusFileUnavailable)
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		if cmd == NLST {
			lines = append(lines, filesystem.NameList(entry))
		} else {
			lines = append(lines, filesystem.EPLF(dir, entry))
		}
	}
	return session.transfer(cmd, dir, func(conn net.Conn) (int64, error) {
		return writeListing(conn, lines)
	})
}
