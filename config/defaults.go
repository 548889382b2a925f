package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultFTPAddr              = ":21"
	DefaultSFTPAddr             = ":2022"
	DefaultAnonymousUser        = "anonymous"
	DefaultStartDir             = "/"
	DefaultWelcomeMessage       = "Service ready for new user."
	DefaultActiveDialTimeout    = 10 * time.Second
	DefaultPassiveAcceptTimeout = 30 * time.Second
	DefaultIdleTimeout          = 5 * time.Minute
)

func setViperDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")

	v.SetDefault("ftp.addr", DefaultFTPAddr)
	v.SetDefault("ftp.public_ipv4", "")
	v.SetDefault("ftp.pasv_min_port", 0)
	v.SetDefault("ftp.pasv_max_port", 0)
	v.SetDefault("ftp.strict_mode", false)
	v.SetDefault("ftp.anonymous", false)
	v.SetDefault("ftp.anonymous_user", DefaultAnonymousUser)
	v.SetDefault("ftp.start_dir", DefaultStartDir)
	v.SetDefault("ftp.welcome_message", DefaultWelcomeMessage)
	v.SetDefault("ftp.active_dial_timeout", DefaultActiveDialTimeout)
	v.SetDefault("ftp.passive_accept_timeout", DefaultPassiveAcceptTimeout)
	v.SetDefault("ftp.idle_timeout", DefaultIdleTimeout)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.root", "")

	v.SetDefault("sftp.enabled", false)
	v.SetDefault("sftp.addr", DefaultSFTPAddr)
	v.SetDefault("sftp.host_key_file", "")
}

// ApplyDefaults fills zero values a file may have left empty and normalizes enumerations.
func ApplyDefaults(cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.FTP.Addr == "" {
		cfg.FTP.Addr = DefaultFTPAddr
	}
	if cfg.FTP.AnonymousUser == "" {
		cfg.FTP.AnonymousUser = DefaultAnonymousUser
	}
	if cfg.FTP.StartDir == "" {
		cfg.FTP.StartDir = DefaultStartDir
	}
	if cfg.FTP.WelcomeMessage == "" {
		cfg.FTP.WelcomeMessage = DefaultWelcomeMessage
	}
	if cfg.FTP.ActiveDialTimeout <= 0 {
		cfg.FTP.ActiveDialTimeout = DefaultActiveDialTimeout
	}
	if cfg.FTP.PassiveAcceptTimeout <= 0 {
		cfg.FTP.PassiveAcceptTimeout = DefaultPassiveAcceptTimeout
	}

	cfg.Storage.Type = strings.ToLower(cfg.Storage.Type)
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}

	if cfg.SFTP.Addr == "" {
		cfg.SFTP.Addr = DefaultSFTPAddr
	}
}
