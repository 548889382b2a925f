package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telebroad/ftpd/config"
)

func TestNewStorage(t *testing.T) {
	fsys, err := newStorage(config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "/", fsys.RootDir())

	_, err = newStorage(config.StorageConfig{Type: "local", Root: t.TempDir()})
	require.NoError(t, err)

	_, err = newStorage(config.StorageConfig{Type: "local", Root: "/does/not/exist"})
	assert.Error(t, err)

	_, err = newStorage(config.StorageConfig{Type: "s3"})
	assert.Error(t, err)
}

func TestNewUsers(t *testing.T) {
	u, err := newUsers([]config.UserConfig{
		{Username: "alice", Password: "secret", IPs: []string{"127.0.0.1", "10.0.0.0/8"}},
		{Username: "bob", Password: "hunter2"},
	})
	require.NoError(t, err)
	assert.Len(t, u.List(), 2)

	_, err = u.Find("alice", "secret", "10.1.1.1:2000")
	assert.NoError(t, err)

	_, err = newUsers([]config.UserConfig{{Username: "x", IPs: []string{"bogus"}}})
	assert.Error(t, err)
}

func TestNewFTPServer(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.FTP.PublicIPv4 = "203.0.113.7"
	cfg.FTP.PasvMinPort, cfg.FTP.PasvMaxPort = 30000, 30010
	cfg.FTP.StrictMode = true
	cfg.FTP.IdleTimeout = time.Minute

	fsys, err := newStorage(cfg.Storage)
	require.NoError(t, err)
	u, err := newUsers(nil)
	require.NoError(t, err)

	s, err := newFTPServer(cfg.FTP, fsys, u)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", s.PublicServerIPv4.String())
	assert.Equal(t, 30000, s.PasvMinPort)
	assert.Equal(t, 30010, s.PasvMaxPort)
	assert.True(t, s.StrictMode)
	assert.Equal(t, time.Minute, s.IdleTimeout)
	assert.Equal(t, cfg.FTP.WelcomeMessage, s.WelcomeMessage)
}

func TestSetupLogger(t *testing.T) {
	assert.NotNil(t, setupLogger(config.LoggingConfig{Level: "DEBUG", Format: "text"}))
	assert.NotNil(t, setupLogger(config.LoggingConfig{Level: "WARN", Format: "json"}))
}
