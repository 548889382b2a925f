//go:build windows

package filesystem

import (
	"fmt"

	"github.com/pkg/sftp"
	"golang.org/x/sys/windows"
)

// statFS returns the disk usage of the volume containing realPath.
// Windows has no inode counters so only the block fields are filled.
func statFS(realPath string) (*sftp.StatVFS, error) {
	var freeBytesAvailable, totalNumberOfBytes, totalNumberOfFreeBytes uint64

	drive, err := windows.UTF16PtrFromString(realPath)
	if err != nil {
		return nil, fmt.Errorf("error getting file system info: %w", err)
	}
	err = windows.GetDiskFreeSpaceEx(drive, &freeBytesAvailable, &totalNumberOfBytes, &totalNumberOfFreeBytes)
	if err != nil {
		return nil, fmt.Errorf("error getting file system info: %w", err)
	}

	const bsize = 4096
	return &sftp.StatVFS{
		Bsize:   bsize,
		Frsize:  bsize,
		Blocks:  totalNumberOfBytes / bsize,
		Bfree:   totalNumberOfFreeBytes / bsize,
		Bavail:  freeBytesAvailable / bsize,
		Namemax: 255,
	}, nil
}
