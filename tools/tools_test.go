package tools

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPrintable(t *testing.T) {
	assert.Equal(t, "USER bob", IsPrintable("USER bob\r\n"))
	assert.Equal(t, "ab", IsPrintable([]byte("a\x00b\x1b")))
	assert.Equal(t, "héllo", IsPrintable([]rune("h\téllo")))
}

func TestRedactPassword(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PASS secret\r\n", "PASS ****\r\n"},
		{"pass secret", "PASS ****"},
		{"USER bob\r\nPASS secret\r\nPWD\r\n", "USER bob\r\nPASS ****\r\nPWD\r\n"},
		{"PASV\r\n", "PASV\r\n"},
		{"RETR password.txt\r\n", "RETR password.txt\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactPassword(tt.in))
		})
	}
}

type rwBuffer struct {
	in  *strings.Reader
	out bytes.Buffer
}

func (b *rwBuffer) Read(p []byte) (int, error)  { return b.in.Read(p) }
func (b *rwBuffer) Write(p []byte) (int, error) { return b.out.Write(p) }

func TestBufLogReadWriter(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	conn := &rwBuffer{in: strings.NewReader("USER bob\r\nPASS hunter2\r\n")}
	rw := NewBufLogReadWriter(conn, logger)

	line, err := rw.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "USER bob\r\n", line)
	line, err = rw.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PASS hunter2\r\n", line)

	_, err = rw.Write([]byte("230 User logged in, proceed.\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "230 User logged in, proceed.\r\n", conn.out.String())

	assert.Contains(t, logs.String(), "PASS ****")
	assert.NotContains(t, logs.String(), "hunter2")
	assert.Contains(t, logs.String(), "230 User logged in")
}
