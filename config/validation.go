package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and the rules tags can't express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if (cfg.FTP.PasvMinPort == 0) != (cfg.FTP.PasvMaxPort == 0) {
		return fmt.Errorf("ftp: pasv_min_port and pasv_max_port must be set together")
	}
	if cfg.FTP.PasvMinPort > cfg.FTP.PasvMaxPort {
		return fmt.Errorf("ftp: pasv_min_port %d is greater than pasv_max_port %d",
			cfg.FTP.PasvMinPort, cfg.FTP.PasvMaxPort)
	}

	if cfg.Storage.Type == "local" && cfg.Storage.Root == "" {
		return fmt.Errorf("storage: root is required for local storage")
	}

	names := make(map[string]bool)
	for i, user := range cfg.Users {
		if names[user.Username] {
			return fmt.Errorf("users[%d]: duplicate username %q", i, user.Username)
		}
		names[user.Username] = true
	}

	if cfg.SFTP.Enabled && cfg.SFTP.Addr == "" {
		return fmt.Errorf("sftp: addr is required when sftp is enabled")
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
