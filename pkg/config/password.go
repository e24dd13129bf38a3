package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/marmos91/dittotasks/internal/logger"
)

// DefaultPassword is written to a new password file when password
// generation is disabled.
const DefaultPassword = "dittotasks"

// ReadPassword returns the sync password without creating anything.
//
// An explicit Password (file or DITTOTASKS_SECURITY_PASSWORD) wins;
// otherwise the first line of PasswordFile is used. A missing file yields
// an error matching fs.ErrNotExist. fsys may be nil to use the OS
// filesystem.
func ReadPassword(fsys afero.Fs, cfg *SecurityConfig) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}
	if cfg.PasswordFile == "" {
		return "", errors.New("security: neither password nor password_file is set")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	data, err := afero.ReadFile(fsys, cfg.PasswordFile)
	if err != nil {
		return "", fmt.Errorf("security: read password file: %w", err)
	}
	password := strings.TrimRight(strings.SplitN(string(data), "\n", 2)[0], "\r")
	if password == "" {
		return "", fmt.Errorf("security: password file %s is empty", cfg.PasswordFile)
	}
	return password, nil
}

// ResolvePassword behaves like ReadPassword but creates a missing password
// file, holding a random password or, with GeneratePassword disabled,
// DefaultPassword. The server calls it on startup.
func ResolvePassword(fsys afero.Fs, cfg *SecurityConfig) (string, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	password, err := ReadPassword(fsys, cfg)
	if !errors.Is(err, fs.ErrNotExist) {
		return password, err
	}

	password = DefaultPassword
	if cfg.GeneratePassword == nil || *cfg.GeneratePassword {
		if password, err = randomPassword(); err != nil {
			return "", err
		}
	}

	if err := fsys.MkdirAll(filepath.Dir(cfg.PasswordFile), 0o700); err != nil {
		return "", fmt.Errorf("security: create password directory: %w", err)
	}
	if err := afero.WriteFile(fsys, cfg.PasswordFile, []byte(password+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("security: write password file: %w", err)
	}
	logger.Info("Created password file %s", cfg.PasswordFile)

	return password, nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("security: generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
