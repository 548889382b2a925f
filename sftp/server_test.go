package sftp

import (
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/telebroad/ftpd/filesystem"
	"github.com/telebroad/ftpd/users"
)

func startServer(t *testing.T) (string, *filesystem.AferoFS) {
	t.Helper()
	fsys := filesystem.NewMemFS()
	u := users.NewLocalUsers()
	_, err := u.Add("alice", "secret")
	require.NoError(t, err)

	srv, err := NewSFTPServer("127.0.0.1:0", fsys, u)
	require.NoError(t, err)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errC := make(chan error, 1)
	go func() { errC <- srv.Serve(l) }()
	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		assert.ErrorIs(t, <-errC, ErrServerClosed)
	})
	return l.Addr().String(), fsys
}

func dial(t *testing.T, addr, user, pass string) (*ssh.Client, error) {
	t.Helper()
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
}

func newClient(t *testing.T, addr string) *sftp.Client {
	t.Helper()
	conn, err := dial(t, addr, "alice", "secret")
	require.NoError(t, err)
	client, err := sftp.NewClient(conn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
		_ = conn.Close()
	})
	return client
}

func TestServer_BadPassword(t *testing.T) {
	addr, _ := startServer(t)
	_, err := dial(t, addr, "alice", "wrong")
	assert.Error(t, err)
	_, err = dial(t, addr, "mallory", "secret")
	assert.Error(t, err)
}

func TestServer_Files(t *testing.T) {
	addr, fsys := startServer(t)
	client := newClient(t, addr)

	require.NoError(t, client.Mkdir("/docs"))
	f, err := client.Create("/docs/a.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello sftp"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// the upload is visible to the shared storage
	file, err := fsys.OpenRead("/docs/a.txt", 6)
	require.NoError(t, err)
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	assert.Equal(t, "sftp", string(body))

	f, err = client.Open("/docs/a.txt")
	require.NoError(t, err)
	body, err = io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "hello sftp", string(body))

	entries, err := client.ReadDir("/docs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name())
	assert.EqualValues(t, 10, entries[0].Size())

	info, err := client.Stat("/docs")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = client.Stat("/missing")
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, client.Rename("/docs/a.txt", "/docs/b.txt"))
	_, err = client.Stat("/docs/a.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Error(t, client.RemoveDirectory("/docs"), "the directory is not empty")
	require.NoError(t, client.Remove("/docs/b.txt"))
	require.NoError(t, client.RemoveDirectory("/docs"))
	_, err = fsys.Stat("/docs")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestServer_ResumeUpload(t *testing.T) {
	addr, fsys := startServer(t)
	client := newClient(t, addr)

	f, err := client.Create("/r.bin")
	require.NoError(t, err)
	_, err = f.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// opening without O_TRUNC keeps the existing bytes
	f, err = client.OpenFile("/r.bin", os.O_WRONLY)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("ab"), 8)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	info, err := fsys.Stat("/r.bin")
	require.NoError(t, err)
	assert.EqualValues(t, 10, info.Size())
}

func TestServer_StatVFSUnsupported(t *testing.T) {
	addr, _ := startServer(t)
	client := newClient(t, addr)

	_, err := client.StatVFS("/")
	assert.Error(t, err)
}

func TestListerAt(t *testing.T) {
	fsys := filesystem.NewMemFS()
	require.NoError(t, fsys.MakeDir("/a"))
	require.NoError(t, fsys.MakeDir("/b"))
	entries, err := fsys.Dir("/")
	require.NoError(t, err)

	buf := make([]os.FileInfo, 1)
	n, err := ListerAt(entries).ListAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	buf = make([]os.FileInfo, 5)
	n, err = ListerAt(entries).ListAt(buf, 1)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, n)

	_, err = ListerAt(entries).ListAt(buf, 2)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStatusError(t *testing.T) {
	assert.NoError(t, statusError(nil))
	assert.ErrorIs(t, statusError(os.ErrNotExist), sftp.ErrSSHFxNoSuchFile)
	assert.ErrorIs(t, statusError(os.ErrPermission), sftp.ErrSSHFxPermissionDenied)
	assert.ErrorIs(t, statusError(filesystem.ErrUnsupported), sftp.ErrSSHFxOpUnsupported)
	assert.ErrorIs(t, statusError(filesystem.ErrDirNotEmpty), sftp.ErrSSHFxFailure)
}
