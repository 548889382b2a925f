package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_CheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	tests := []struct {
		name     string
		stored   string
		password string
		want     bool
	}{
		{"plain match", "s3cret", "s3cret", true},
		{"plain mismatch", "s3cret", "secret", false},
		{"bcrypt match", hash, "s3cret", true},
		{"bcrypt mismatch", hash, "secret", false},
		{"hash is not a password", hash, hash, false},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{Username: "u", Password: tt.stored}
			assert.Equal(t, tt.want, u.CheckPassword(tt.password))
		})
	}
}

func TestUser_FindIP(t *testing.T) {
	u := &User{Username: "u"}
	assert.True(t, u.FindIP("203.0.113.9"), "empty allow-list allows everything")

	require.NoError(t, u.AddIP("10.0.0.0/8"))
	require.NoError(t, u.AddIP("192.168.1.10"))
	require.NoError(t, u.AddIP("::1"))

	assert.True(t, u.FindIP("10.1.2.3"))
	assert.True(t, u.FindIP("10.1.2.3:4567"))
	assert.True(t, u.FindIP("192.168.1.10"))
	assert.False(t, u.FindIP("192.168.1.11"))
	assert.True(t, u.FindIP("[::1]:21"))
	assert.False(t, u.FindIP("not an ip"))

	u.RemoveIP("192.168.1.10")
	assert.False(t, u.FindIP("192.168.1.10"))

	assert.ErrorIs(t, u.AddIP("10.0.0.0/99"), ErrInvalidIPPrefix)
}

func TestLocalUsers(t *testing.T) {
	table := NewLocalUsers()
	_, err := table.Add("alice", "pw", "127.0.0.1")
	require.NoError(t, err)

	u, err := table.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = table.Get("bob")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = table.Find("alice", "pw", "127.0.0.1:50000")
	require.NoError(t, err)
	_, err = table.Find("alice", "nope", "127.0.0.1:50000")
	assert.ErrorIs(t, err, ErrBadPassword)
	_, err = table.Find("alice", "pw", "10.0.0.1:50000")
	assert.ErrorIs(t, err, ErrAddressNotAllowed)

	assert.Len(t, table.List(), 1)
	assert.NotNil(t, table.Remove("alice"))
	assert.Empty(t, table.List())

	_, err = table.Add("bad", "pw", "300.1.1.1")
	assert.ErrorIs(t, err, ErrInvalidIPPrefix)
}
