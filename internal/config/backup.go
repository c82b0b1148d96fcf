package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const (
	// MaxBackups bounds how many timestamped backups survive pruning.
	MaxBackups = 3

	// BackupSuffix sits between the config name and the timestamp.
	BackupSuffix = ".bak"
)

// backupName derives the timestamped backup path for a config file.
func backupName(configPath string, at time.Time) string {
	return configPath + BackupSuffix + "." + at.Format("20060102-150405")
}

// BackupUserConfig snapshots the user config next to itself under a
// timestamped .bak name and returns the backup path. Without a user
// config there is nothing to do and both results are zero.
func BackupUserConfig() (string, error) {
	if !UserConfigExists() {
		return "", nil
	}
	configPath := GetUserConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config for backup: %w", err)
	}

	backupPath := backupName(configPath, time.Now())
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	// Pruning is best-effort; the backup itself already succeeded.
	_ = pruneBackups()

	return backupPath, nil
}

// ListUserConfigBackups returns every backup of the user config, newest
// first.
func ListUserConfigBackups() ([]string, error) {
	matches, err := filepath.Glob(GetUserConfigPath() + BackupSuffix + ".*")
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	type stamped struct {
		path    string
		modTime time.Time
	}
	backups := make([]stamped, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		backups = append(backups, stamped{path: m, modTime: info.ModTime()})
	}
	slices.SortFunc(backups, func(a, b stamped) int {
		return b.modTime.Compare(a.modTime)
	})

	paths := make([]string, len(backups))
	for i, b := range backups {
		paths[i] = b.path
	}
	return paths, nil
}

// pruneBackups drops the oldest backups past MaxBackups.
func pruneBackups() error {
	backups, err := ListUserConfigBackups()
	if err != nil {
		return err
	}
	for _, old := range backups[min(MaxBackups, len(backups)):] {
		_ = os.Remove(old)
	}
	return nil
}

// RestoreUserConfig replaces the user config with the contents of a
// backup file. The current config, if any, is snapshotted first so a
// bad restore can itself be undone.
func RestoreUserConfig(backupPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	if _, err := BackupUserConfig(); err != nil {
		return fmt.Errorf("backup current config before restore: %w", err)
	}

	if err := os.MkdirAll(GetUserConfigDir(), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(GetUserConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("write restored config: %w", err)
	}
	return nil
}
