package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backupFixture points the user config at a temp dir and returns the
// config path inside it.
func backupFixture(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	configDir := filepath.Join(tmp, "pretext")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	return filepath.Join(configDir, "config.yaml")
}

// agedBackup writes a sibling backup file whose mtime lies age in the past.
func agedBackup(t *testing.T, configPath, stamp string, age time.Duration) string {
	t.Helper()
	path := configPath + BackupSuffix + "." + stamp
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	past := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, past, past))
	return path
}

func TestBackupUserConfig_NoConfig(t *testing.T) {
	backupFixture(t)

	path, err := BackupUserConfig()

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupUserConfig_SnapshotsContent(t *testing.T) {
	configPath := backupFixture(t)
	content := "version: 1\ndataset:\n  text_field: docstring\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	backupPath, err := BackupUserConfig()

	require.NoError(t, err)
	require.NotEmpty(t, backupPath)
	assert.True(t, filepath.IsAbs(backupPath))
	assert.Contains(t, backupPath, BackupSuffix)

	copied, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(copied))
}

func TestListUserConfigBackups_Empty(t *testing.T) {
	backupFixture(t)

	backups, err := ListUserConfigBackups()

	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestListUserConfigBackups_NewestFirst(t *testing.T) {
	configPath := backupFixture(t)
	oldest := agedBackup(t, configPath, "20260101-100000", 3*time.Hour)
	newest := agedBackup(t, configPath, "20260101-120000", time.Hour)
	middle := agedBackup(t, configPath, "20260101-110000", 2*time.Hour)

	backups, err := ListUserConfigBackups()

	require.NoError(t, err)
	assert.Equal(t, []string{newest, middle, oldest}, backups)
}

func TestBackupUserConfig_PrunesOldBackups(t *testing.T) {
	configPath := backupFixture(t)
	require.NoError(t, os.WriteFile(configPath, []byte("test config"), 0o644))

	// Three pre-existing backups; a fresh one pushes the set past the
	// limit and the oldest must go.
	oldest := agedBackup(t, configPath, "20260101-100000", 3*time.Hour)
	agedBackup(t, configPath, "20260101-110000", 2*time.Hour)
	agedBackup(t, configPath, "20260101-120000", time.Hour)

	_, err := BackupUserConfig()
	require.NoError(t, err)

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
	assert.NotContains(t, backups, oldest)
}

func TestRestoreUserConfig_MissingBackup(t *testing.T) {
	configPath := backupFixture(t)

	err := RestoreUserConfig(configPath + BackupSuffix + ".19990101-000000")

	assert.Error(t, err)
}

func TestRestoreUserConfig_ReplacesCurrentConfig(t *testing.T) {
	configPath := backupFixture(t)
	require.NoError(t, os.WriteFile(configPath, []byte("current: true\n"), 0o644))
	backupPath := configPath + BackupSuffix + ".20260101-120000"
	require.NoError(t, os.WriteFile(backupPath, []byte("restored: true\n"), 0o644))

	require.NoError(t, RestoreUserConfig(backupPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "restored: true\n", string(data))

	// The pre-restore config must survive as a backup of its own.
	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	var contents []string
	for _, b := range backups {
		data, readErr := os.ReadFile(b)
		require.NoError(t, readErr)
		contents = append(contents, string(data))
	}
	assert.Contains(t, contents, "current: true\n")
}
