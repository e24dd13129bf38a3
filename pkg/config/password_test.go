package config

import (
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestResolvePassword_Explicit(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := &SecurityConfig{Password: "secret", PasswordFile: "/etc/dittotasks/password"}

	password, err := ResolvePassword(fsys, cfg)
	require.NoError(t, err)
	assert.Equal(t, "secret", password)

	exists, err := afero.Exists(fsys, cfg.PasswordFile)
	require.NoError(t, err)
	assert.False(t, exists, "explicit password must not create the file")
}

func TestResolvePassword_GeneratesOnFirstRun(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := &SecurityConfig{PasswordFile: "/etc/dittotasks/password", GeneratePassword: boolPtr(true)}

	first, err := ResolvePassword(fsys, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, DefaultPassword, first)
	assert.Len(t, first, 24)

	info, err := fsys.Stat(cfg.PasswordFile)
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())

	second, err := ResolvePassword(fsys, cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second, "the stored password is reused")
}

func TestResolvePassword_DefaultWhenGenerationDisabled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := &SecurityConfig{PasswordFile: "/pw", GeneratePassword: boolPtr(false)}

	password, err := ResolvePassword(fsys, cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultPassword, password)

	data, err := afero.ReadFile(fsys, "/pw")
	require.NoError(t, err)
	assert.Equal(t, DefaultPassword+"\n", string(data))
}

func TestResolvePassword_ReadsFirstLine(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/pw", []byte("hunter2\r\nignored\n"), 0o600))

	password, err := ResolvePassword(fsys, &SecurityConfig{PasswordFile: "/pw"})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", password)
}

func TestResolvePassword_EmptyFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/pw", []byte("\n"), 0o600))

	_, err := ResolvePassword(fsys, &SecurityConfig{PasswordFile: "/pw"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestResolvePassword_NothingConfigured(t *testing.T) {
	_, err := ResolvePassword(afero.NewMemMapFs(), &SecurityConfig{})
	assert.Error(t, err)
}

func TestReadPassword_MissingFile(t *testing.T) {
	fsys := afero.NewMemMapFs()

	_, err := ReadPassword(fsys, &SecurityConfig{PasswordFile: "/pw"})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	exists, err := afero.Exists(fsys, "/pw")
	require.NoError(t, err)
	assert.False(t, exists)
}
