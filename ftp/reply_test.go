package ftp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReply(t *testing.T) {
	tests := []struct {
		name    string
		code    StatusCode
		message string
		want    string
	}{
		{"default text", StatusCommandNotImplemented, "", "502 Command not implemented.\r\n"},
		{"not logged in", StatusNotLoggedIn, "", "530 Not logged in.\r\n"},
		{"logged in", StatusUserLoggedIn, "", "230 User logged in, proceed.\r\n"},
		{"file action", StatusFileActionOK, "", "250 Requested file action okay, completed.\r\n"},
		{"custom text", StatusEnteringPassiveMode, "=127,0,0,1,7,224", "227 =127,0,0,1,7,224\r\n"},
		{"line breaks flattened", StatusCommandOK, "one\r\ntwo\nthree", "200 one two three\r\n"},
		{"unknown code", 299, "", "299 .\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewReply(tt.code, tt.message).String())
		})
	}
}

func TestReply_WriteTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := NewReply(StatusServiceClosingControlConnection, "").WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "221 Service closing control connection.\r\n", buf.String())
}

func TestStatusText(t *testing.T) {
	for _, code := range []StatusCode{150, 200, 202, 220, 221, 226, 227, 230, 250, 257, 331, 332, 350, 450, 451, 501, 502, 503, 530, 550} {
		assert.NotEmpty(t, StatusText(code), "code %d", code)
	}
	assert.Empty(t, StatusText(999))
}
