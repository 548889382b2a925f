package sftp

// Request.Method values the request server hands to the handlers:
//
// Get (OPEN for reading): served by Fileread.
// Put (OPEN for writing): served by Filewrite.
// Open (OPEN for reading and writing): served by OpenFile.
// Setstat, Rename, Rmdir, Remove, Mkdir, Link, Symlink: served by Filecmd.
// PosixRename: the posix-rename@openssh.com extension, replaces the target.
// StatVFS: the statvfs@openssh.com extension, disk usage of the storage.
// List (READDIR), Stat, Lstat, Readlink: served by Filelist.
const (
	MethodGet         = "Get"
	MethodPut         = "Put"
	MethodOpen        = "Open"
	MethodSetstat     = "Setstat"
	MethodRename      = "Rename"
	MethodRmdir       = "Rmdir"
	MethodRemove      = "Remove"
	MethodMkdir       = "Mkdir"
	MethodLink        = "Link"
	MethodSymlink     = "Symlink"
	MethodPosixRename = "PosixRename"
	MethodStatVFS     = "StatVFS"
	MethodList        = "List"
	MethodStat        = "Stat"
	MethodLstat       = "Lstat"
	MethodReadlink    = "Readlink"
)
