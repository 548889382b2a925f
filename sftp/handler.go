package sftp

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"

	"github.com/telebroad/ftpd/filesystem"
	"github.com/telebroad/ftpd/tools"
)

// FileSys serves the sftp requests of one session on the shared storage
type FileSys struct {
	fs     filesystem.FS
	logger *slog.Logger
}

var (
	_ sftp.PosixRenameFileCmder = &FileSys{}
	_ sftp.StatVFSFileCmder     = &FileSys{}
	_ sftp.OpenFileWriter       = &FileSys{}
)

func NewFileSys(fsys filesystem.FS, logger *slog.Logger) sftp.Handlers {
	v := &FileSys{fs: fsys, logger: logger}
	return sftp.Handlers{
		FileGet:  v,
		FilePut:  v,
		FileCmd:  v,
		FileList: v,
	}
}

func (s *FileSys) logRequest(request *sftp.Request) {
	s.logger.Debug("Request",
		"method", request.Method,
		"path", request.Filepath,
		"target", request.Target,
		"flags", request.Flags,
		"attrs", tools.IsPrintable(request.Attrs),
	)
}

func (s *FileSys) Fileread(request *sftp.Request) (io.ReaderAt, error) {
	s.logRequest(request)
	file, err := s.fs.OpenRead(request.Filepath, 0)
	if err != nil {
		s.logger.Warn("error opening file", "path", request.Filepath, "error", err)
		return nil, statusError(err)
	}
	return file, nil
}

// Filewrite opens the file for writing, without O_TRUNC the content is kept so
// interrupted uploads can resume
func (s *FileSys) Filewrite(request *sftp.Request) (io.WriterAt, error) {
	s.logRequest(request)
	return s.openWrite(request)
}

// OpenFile serves opens asking for read and write access
func (s *FileSys) OpenFile(request *sftp.Request) (sftp.WriterAtReaderAt, error) {
	s.logRequest(request)
	return s.openWrite(request)
}

func (s *FileSys) openWrite(request *sftp.Request) (afero.File, error) {
	pflags := request.Pflags()
	flag := os.O_RDWR
	if pflags.Creat {
		flag |= os.O_CREATE
	}
	if pflags.Trunc {
		flag |= os.O_TRUNC
	}
	if pflags.Excl {
		flag |= os.O_EXCL
	}
	// WriteAt always carries the offset, O_APPEND would make it fail
	file, err := s.fs.OpenFile(request.Filepath, flag)
	if err != nil {
		s.logger.Warn("error opening file", "path", request.Filepath, "error", err)
		return nil, statusError(err)
	}
	return file, nil
}

func (s *FileSys) Filecmd(request *sftp.Request) error {
	s.logRequest(request)
	return statusError(s.filecmd(request))
}

func (s *FileSys) filecmd(request *sftp.Request) error {
	switch request.Method {
	case MethodSetstat:
		if !request.AttrFlags().Permissions {
			// size and times are not stored, accept them silently
			return nil
		}
		return s.fs.SetStat(request.Filepath, request.Attributes().FileMode().Perm())

	case MethodRename:
		// SFTP-v2: "It is an error if there already exists a file with the name specified by newpath."
		if _, err := s.fs.Stat(request.Target); err == nil {
			return fs.ErrExist
		}
		return s.fs.Rename(request.Filepath, request.Target)

	case MethodRmdir:
		return s.fs.RemoveDir(request.Filepath)

	case MethodRemove:
		// unlink semantics, directories go through Rmdir
		return s.fs.Remove(request.Filepath)

	case MethodMkdir:
		return s.fs.MakeDir(request.Filepath)
	}
	return sftp.ErrSSHFxOpUnsupported
}

// PosixRename replaces an existing target, used by the posix-rename@openssh.com extension
func (s *FileSys) PosixRename(request *sftp.Request) error {
	s.logRequest(request)
	if info, err := s.fs.Stat(request.Target); err == nil && !info.IsDir() {
		if err := s.fs.Remove(request.Target); err != nil {
			return statusError(err)
		}
	}
	return statusError(s.fs.Rename(request.Filepath, request.Target))
}

func (s *FileSys) StatVFS(request *sftp.Request) (*sftp.StatVFS, error) {
	s.logRequest(request)
	stat, err := s.fs.StatFS(request.Filepath)
	if err != nil {
		return nil, statusError(err)
	}
	return stat, nil
}

type ListerAt []os.FileInfo

// ListAt Modeled after strings.Reader's ReadAt() implementation
func (f ListerAt) ListAt(ls []os.FileInfo, offset int64) (int, error) {
	if offset >= int64(len(f)) {
		return 0, io.EOF
	}
	n := copy(ls, f[offset:])
	if n < len(ls) {
		return n, io.EOF
	}
	return n, nil
}

func (s *FileSys) Filelist(request *sftp.Request) (sftp.ListerAt, error) {
	s.logRequest(request)

	switch request.Method {
	case MethodList:
		entries, err := s.fs.Dir(request.Filepath)
		if err != nil {
			s.logger.Warn("Filelist error", "path", request.Filepath, "error", err)
			return nil, statusError(err)
		}
		return ListerAt(entries), nil
	case MethodStat, MethodLstat:
		// no symlinks in the storage, Lstat is Stat
		entry, err := s.fs.Stat(request.Filepath)
		if err != nil {
			return nil, statusError(err)
		}
		return ListerAt([]os.FileInfo{entry}), nil
	}
	return nil, sftp.ErrSSHFxOpUnsupported
}

// statusError tags a storage error with the sftp status code the client should see,
// the request server only recognizes unwrapped os errors on its own
func statusError(err error) error {
	if err == nil {
		return nil
	}
	var code error
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = sftp.ErrSSHFxNoSuchFile
	case errors.Is(err, fs.ErrPermission):
		code = sftp.ErrSSHFxPermissionDenied
	case errors.Is(err, filesystem.ErrUnsupported), errors.Is(err, sftp.ErrSSHFxOpUnsupported):
		code = sftp.ErrSSHFxOpUnsupported
	default:
		code = sftp.ErrSSHFxFailure
	}
	if errors.Is(err, code) {
		return err
	}
	return fmt.Errorf("%w: %v", code, err)
}
