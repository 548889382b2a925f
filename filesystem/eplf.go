package filesystem

import (
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// EPLF formats one entry of a directory listing in the Easily Parsed LIST Format
// (https://cr.yp.to/ftp/list/eplf.html):
//
//	+i<id>,m<mtime>,r,s<size>,\t<name>\r\n    regular file
//	+i<id>,m<mtime>,/,\t<name>\r\n            directory
//
// dir is the virtual directory holding the entry; the identifier fact is derived
// from the full virtual path so it stays stable across listings.
func EPLF(dir string, info os.FileInfo) string {
	facts := make([]string, 0, 4)
	facts = append(facts, "i"+EntryID(path.Join(dir, info.Name())))
	facts = append(facts, "m"+strconv.FormatInt(info.ModTime().Unix(), 10))
	if info.IsDir() {
		facts = append(facts, "/")
	} else {
		facts = append(facts, "r", "s"+strconv.FormatInt(info.Size(), 10))
	}

	return "+" + strings.Join(facts, ",") + ",\t" + info.Name() + "\r\n"
}

// EntryID returns the identifier fact of the entry at the virtual path name.
func EntryID(name string) string {
	return strconv.FormatUint(xxhash.Sum64String(path.Clean(name)), 16)
}

// NameList formats one entry of an NLST reply.
func NameList(info os.FileInfo) string {
	return info.Name() + "\r\n"
}
