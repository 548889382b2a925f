package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FTPD_FTP_ADDR=:2121
const EnvPrefix = "FTPD"

// Config is the complete server configuration.
//
// Sources in order of precedence:
//  1. Environment variables (FTPD_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	FTP     FTPConfig     `mapstructure:"ftp"`
	Storage StorageConfig `mapstructure:"storage"`
	SFTP    SFTPConfig    `mapstructure:"sftp"`

	// Users is the credential table shared by FTP and SFTP
	Users []UserConfig `mapstructure:"users" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level, normalized to uppercase by ApplyDefaults
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`

	// Format is text (tint) or json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// FTPConfig configures the FTP control-channel server.
type FTPConfig struct {
	// Addr is the control listener address, "host:port"
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`

	// PublicIPv4 is the address advertised in PASV replies.
	// Empty means the local address of the control connection.
	PublicIPv4 string `mapstructure:"public_ipv4" validate:"omitempty,ipv4"`

	// PasvMinPort and PasvMaxPort bound the passive listener ports, 0 for any ephemeral port
	PasvMinPort int `mapstructure:"pasv_min_port" validate:"gte=0,lte=65535"`
	PasvMaxPort int `mapstructure:"pasv_max_port" validate:"gte=0,lte=65535"`

	// StrictMode rejects LIST flags such as "-a" with 501 instead of ignoring them
	StrictMode bool `mapstructure:"strict_mode"`

	// Anonymous enables login as AnonymousUser with any password
	Anonymous     bool   `mapstructure:"anonymous"`
	AnonymousUser string `mapstructure:"anonymous_user" validate:"required"`

	// StartDir is the working directory of a new session
	StartDir string `mapstructure:"start_dir" validate:"required,startswith=/"`

	WelcomeMessage string `mapstructure:"welcome_message" validate:"required"`

	ActiveDialTimeout    time.Duration `mapstructure:"active_dial_timeout" validate:"gt=0"`
	PassiveAcceptTimeout time.Duration `mapstructure:"passive_accept_timeout" validate:"gt=0"`

	// IdleTimeout closes control connections without a command for this long, 0 disables it
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Type is local (a directory on disk) or memory
	Type string `mapstructure:"type" validate:"required,oneof=local memory"`

	// Root is the local directory served as "/", only used when Type = local
	Root string `mapstructure:"root"`
}

// SFTPConfig configures the SFTP server sharing the same storage and users.
type SFTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"omitempty,hostname_port"`

	// HostKeyFile is a PEM private key, a key is generated at startup when empty
	HostKeyFile string `mapstructure:"host_key_file"`
}

// UserConfig is one entry of the credential table.
type UserConfig struct {
	Username string `mapstructure:"username" validate:"required"`
	// Password is plain text or a bcrypt hash
	Password string `mapstructure:"password"`
	// IPs is an optional allow-list of addresses or CIDR prefixes
	IPs []string `mapstructure:"ips" validate:"dive,cidr|ip"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variables and registers every key with its default,
// viper only consults the environment for keys it knows about.
func setupViper(v *viper.Viper, configPath string) {
	// FTPD_FTP_STRICT_MODE=true overrides ftp.strict_mode
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}
