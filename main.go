// Command ftpd runs the FTP server, and optionally the SFTP server, on one storage
// and one user table.
//
//	ftpd --config /etc/ftpd.yaml
//	ftpd --hash-password 's3cret'   prints a bcrypt hash for the users table
//
// Every setting can be overridden with FTPD_* environment variables, e.g.
// FTPD_FTP_ADDR=:2121 or FTPD_LOGGING_LEVEL=debug.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"

	"github.com/telebroad/ftpd/config"
	"github.com/telebroad/ftpd/filesystem"
	"github.com/telebroad/ftpd/ftp"
	"github.com/telebroad/ftpd/sftp"
	"github.com/telebroad/ftpd/users"
)

func main() {
	configPath := flag.StringP("config", "c", os.Getenv("FTPD_CONFIG"), "configuration file (YAML or TOML)")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of the password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := users.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading configuration:", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	fsys, err := newStorage(cfg.Storage)
	if err != nil {
		return err
	}
	logger.Info("Storage ready", "type", cfg.Storage.Type, "root", cfg.Storage.Root)

	u, err := newUsers(cfg.Users)
	if err != nil {
		return err
	}
	logger.Info("Users loaded", "count", len(cfg.Users))

	ftpServer, err := newFTPServer(cfg.FTP, fsys, u)
	if err != nil {
		return err
	}
	ftpServer.SetLogger(logger)
	// try is the same of listen and serve but with a timeout if no error is returned it returns nil
	if err = ftpServer.TryListenAndServe(time.Second); err != nil {
		return fmt.Errorf("error starting ftp server: %w", err)
	}
	logger.Info("FTP server started", "addr", ftpServer.ListenerAddr())

	var sftpServer *sftp.Server
	if cfg.SFTP.Enabled {
		sftpServer, err = sftp.NewSFTPServer(cfg.SFTP.Addr, fsys, u)
		if err != nil {
			return err
		}
		sftpServer.SetLogger(logger)
		if cfg.SFTP.HostKeyFile != "" {
			if err = sftpServer.SetPrivateKeyFile(cfg.SFTP.HostKeyFile); err != nil {
				return err
			}
		}
		if err = sftpServer.TryListenAndServe(time.Second); err != nil {
			_ = ftpServer.Close(err)
			return fmt.Errorf("error starting sftp server: %w", err)
		}
		logger.Info("SFTP server started", "addr", sftpServer.ListenerAddr())
	}

	// graceful shutdown all servers
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-stopChan

	var errs []error
	errs = append(errs, ftpServer.Close(fmt.Errorf("ftp server closed by signal %s", sig)))
	if sftpServer != nil {
		errs = append(errs, sftpServer.Close())
	}
	return errors.Join(errs...)
}

func newStorage(cfg config.StorageConfig) (filesystem.FS, error) {
	switch cfg.Type {
	case "local":
		fsys, err := filesystem.NewLocalFS(cfg.Root)
		if err != nil {
			return nil, err
		}
		return fsys, nil
	case "memory":
		return filesystem.NewMemFS(), nil
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

func newUsers(list []config.UserConfig) (*users.LocalUsers, error) {
	u := users.NewLocalUsers()
	for _, user := range list {
		if _, err := u.Add(user.Username, user.Password, user.IPs...); err != nil {
			return nil, fmt.Errorf("error adding user %q: %w", user.Username, err)
		}
	}
	return u, nil
}

func newFTPServer(cfg config.FTPConfig, fsys filesystem.FS, u users.Users) (*ftp.Server, error) {
	s, err := ftp.NewServer(cfg.Addr, fsys, u)
	if err != nil {
		return nil, err
	}
	if err = s.SetPublicServerIPv4(cfg.PublicIPv4); err != nil {
		return nil, err
	}
	// setting the passive ports range
	s.PasvMinPort = cfg.PasvMinPort
	s.PasvMaxPort = cfg.PasvMaxPort
	s.StrictMode = cfg.StrictMode
	s.Anonymous = cfg.Anonymous
	s.AnonymousUser = cfg.AnonymousUser
	s.StartDir = cfg.StartDir
	s.WelcomeMessage = cfg.WelcomeMessage
	s.ActiveDialTimeout = cfg.ActiveDialTimeout
	s.PassiveAcceptTimeout = cfg.PassiveAcceptTimeout
	s.IdleTimeout = cfg.IdleTimeout
	return s, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.Level)); err != nil {
		logLevel = slog.LevelInfo
	}
	addSource := logLevel == slog.LevelDebug

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:  addSource,
			Level:      logLevel,
			TimeFormat: time.DateTime,
		})
	}

	logger := slog.New(handler).With("app", "ftpd")
	logger.Info("Logger initialized", "level", logLevel)
	return logger
}
