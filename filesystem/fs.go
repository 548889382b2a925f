package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
)

var (
	// ErrInvalidPath is returned for names that can't be mapped into the virtual root
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotDir is returned when a directory operation targets a regular file
	ErrNotDir = errors.New("not a directory")
	// ErrIsDir is returned when a file operation targets a directory
	ErrIsDir = errors.New("is a directory")
	// ErrDirNotEmpty is returned by RemoveDir for a directory that still has entries
	ErrDirNotEmpty = errors.New("directory not empty")
	// ErrUnsupported is returned by StatFS for storages without a backing disk
	ErrUnsupported = errors.New("operation not supported")
)

// FS is the storage the FTP and SFTP servers share.
// Every name is a virtual absolute path ("/dir/file") rooted at RootDir.
type FS interface {
	// RootDir returns the virtual root, normally "/"
	RootDir() string
	// Dir returns the entries of the given directory sorted by name
	Dir(dirName string) ([]os.FileInfo, error)
	// CheckDir returns nil if the given directory exists
	CheckDir(dirName string) error
	// MakeDir creates a directory, failing with fs.ErrExist if anything is already there
	MakeDir(dirName string) error
	// RemoveDir removes an empty directory
	RemoveDir(dirName string) error
	// Stat returns the file info
	Stat(fileName string) (os.FileInfo, error)
	// OpenRead opens a regular file for reading positioned at offset
	OpenRead(fileName string, offset int64) (afero.File, error)
	// OpenWrite opens a file for writing.
	// appendOnly positions at the end of the file, a positive offset positions at offset
	// without truncating, otherwise the file is truncated.
	OpenWrite(fileName string, offset int64, appendOnly bool) (afero.File, error)
	// OpenFile opens a regular file with the os.O_* flags, for random access clients
	OpenFile(fileName string, flag int) (afero.File, error)
	// Remove removes a regular file
	Remove(fileName string) error
	// Rename renames the file/folder or moves it to a different directory
	Rename(original string, target string) error
	// SetStat changes the file permissions
	SetStat(fileName string, mode os.FileMode) error
	// StatFS returns the status of the disk backing the storage
	StatFS(fileName string) (*sftp.StatVFS, error)
}

// Ensure that AferoFS implements the FS interface
var _ FS = &AferoFS{}

// AferoFS implements FS on top of an afero.Fs
type AferoFS struct {
	fs          afero.Fs
	localDir    string // local directory backing the virtual root, empty for in-memory storage
	virtualRoot string
}

// NewLocalFS serves localDir as the virtual root.
func NewLocalFS(localDir string) (*AferoFS, error) {
	info, err := os.Stat(localDir)
	if err != nil {
		return nil, fmt.Errorf("error checking storage root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %q: %w", localDir, ErrNotDir)
	}
	return &AferoFS{
		fs:          afero.NewBasePathFs(afero.NewOsFs(), localDir),
		localDir:    localDir,
		virtualRoot: "/",
	}, nil
}

// NewMemFS returns an empty in-memory storage.
func NewMemFS() *AferoFS {
	return NewAferoFS(afero.NewMemMapFs())
}

// NewAferoFS wraps any afero.Fs. The Fs root is the virtual root.
func NewAferoFS(fsys afero.Fs) *AferoFS {
	return &AferoFS{
		fs:          fsys,
		virtualRoot: "/",
	}
}

// Afero exposes the underlying afero.Fs
func (FS *AferoFS) Afero() afero.Fs {
	return FS.fs
}

// RootDir returns the Root directory of the file system
func (FS *AferoFS) RootDir() string {
	return FS.virtualRoot
}

// CheckDir checks if the given directory exists
func (FS *AferoFS) CheckDir(dirName string) error {
	dirName, err := FS.cleanPath(dirName)
	if err != nil {
		return err
	}
	info, err := FS.fs.Stat(dirName)
	if err != nil {
		return fmt.Errorf("error checking directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("error checking directory %q: %w", dirName, ErrNotDir)
	}
	return nil
}

// Dir returns a list of files in the given directory
func (FS *AferoFS) Dir(dirName string) ([]os.FileInfo, error) {
	dirName, err := FS.cleanPath(dirName)
	if err != nil {
		return nil, err
	}
	if err = FS.CheckDir(dirName); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(FS.fs, dirName)
	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// MakeDir creates a new directory with the given name
func (FS *AferoFS) MakeDir(dirName string) error {
	dirName, err := FS.cleanPath(dirName)
	if err != nil {
		return err
	}
	if _, err = FS.fs.Stat(dirName); err == nil {
		return fmt.Errorf("error creating directory %q: %w", dirName, fs.ErrExist)
	}

	if err = FS.fs.MkdirAll(dirName, 0o755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	return nil
}

// RemoveDir removes the directory if it is empty
func (FS *AferoFS) RemoveDir(dirName string) error {
	dirName, err := FS.cleanPath(dirName)
	if err != nil {
		return err
	}
	if dirName == FS.virtualRoot {
		return fmt.Errorf("error removing directory %q: %w", dirName, fs.ErrPermission)
	}
	if err = FS.CheckDir(dirName); err != nil {
		return err
	}
	empty, err := afero.IsEmpty(FS.fs, dirName)
	if err != nil {
		return fmt.Errorf("error reading directory: %w", err)
	}
	if !empty {
		return fmt.Errorf("error removing directory %q: %w", dirName, ErrDirNotEmpty)
	}
	if err = FS.fs.Remove(dirName); err != nil {
		return fmt.Errorf("error removing directory: %w", err)
	}
	return nil
}

// Stat returns the file info
func (FS *AferoFS) Stat(fileName string) (os.FileInfo, error) {
	fileName, err := FS.cleanPath(fileName)
	if err != nil {
		return nil, err
	}
	info, err := FS.fs.Stat(fileName)
	if err != nil {
		return nil, fmt.Errorf("error getting file info: %w", err)
	}
	return info, nil
}

// OpenRead opens the file for reading at the given offset
func (FS *AferoFS) OpenRead(fileName string, offset int64) (afero.File, error) {
	info, err := FS.Stat(fileName)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("error opening file %q: %w", fileName, ErrIsDir)
	}

	fileName, _ = FS.cleanPath(fileName)
	file, err := FS.fs.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	if offset > 0 {
		if _, err = file.Seek(offset, io.SeekStart); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("error seeking file: %w", err)
		}
	}
	return file, nil
}

// OpenWrite opens the file for writing
func (FS *AferoFS) OpenWrite(fileName string, offset int64, appendOnly bool) (afero.File, error) {
	var flag int
	switch {
	case appendOnly:
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case offset > 0:
		flag = os.O_WRONLY | os.O_CREATE
	default:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	file, err := FS.OpenFile(fileName, flag)
	if err != nil {
		return nil, err
	}
	if offset > 0 && !appendOnly {
		if _, err = file.Seek(offset, io.SeekStart); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("error seeking file: %w", err)
		}
	}
	return file, nil
}

// OpenFile opens a regular file, directories are refused with ErrIsDir
func (FS *AferoFS) OpenFile(fileName string, flag int) (afero.File, error) {
	fileName, err := FS.cleanPath(fileName)
	if err != nil {
		return nil, err
	}
	if info, err := FS.fs.Stat(fileName); err == nil && info.IsDir() {
		return nil, fmt.Errorf("error opening file %q: %w", fileName, ErrIsDir)
	}

	file, err := FS.fs.OpenFile(fileName, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	return file, nil
}

// Remove removes the file
func (FS *AferoFS) Remove(fileName string) error {
	info, err := FS.Stat(fileName)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("error removing file %q: %w", fileName, ErrIsDir)
	}

	fileName, _ = FS.cleanPath(fileName)
	if err = FS.fs.Remove(fileName); err != nil {
		return fmt.Errorf("error removing file: %w", err)
	}
	return nil
}

// Rename renames the file or moves it to a different directory
func (FS *AferoFS) Rename(fileName, newName string) error {
	fileName, err := FS.cleanPath(fileName)
	if err != nil {
		return err
	}
	newName, err = FS.cleanPath(newName)
	if err != nil {
		return err
	}
	if fileName == FS.virtualRoot || newName == FS.virtualRoot {
		return fmt.Errorf("error renaming %q: %w", fileName, fs.ErrPermission)
	}

	if err = FS.fs.Rename(fileName, newName); err != nil {
		return fmt.Errorf("error renaming file: %w", err)
	}
	return nil
}

// SetStat changes the file permissions
func (FS *AferoFS) SetStat(fileName string, mode os.FileMode) error {
	fileName, err := FS.cleanPath(fileName)
	if err != nil {
		return err
	}
	if mode == 0 {
		return errors.New("invalid permissions")
	}
	if err = FS.fs.Chmod(fileName, mode); err != nil {
		return fmt.Errorf("error changing file permissions: %w", err)
	}
	return nil
}

// StatFS returns the file system status of the disk containing the file
func (FS *AferoFS) StatFS(fileName string) (*sftp.StatVFS, error) {
	if FS.localDir == "" {
		return nil, ErrUnsupported
	}
	fileName, err := FS.cleanPath(fileName)
	if err != nil {
		return nil, err
	}
	return statFS(filepath.Join(FS.localDir, filepath.FromSlash(fileName)))
}

// cleanPath maps a virtual path to a clean absolute path under the virtual root.
// ".." segments can't climb above the root.
func (FS *AferoFS) cleanPath(pathName string) (string, error) {
	if strings.ContainsRune(pathName, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, pathName)
	}
	if pathName == "" || pathName == "." {
		return FS.virtualRoot, nil
	}
	return path.Clean(path.Join(FS.virtualRoot, pathName)), nil
}
