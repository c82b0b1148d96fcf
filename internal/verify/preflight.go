package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// MinDiskSpaceBytes is the minimum free space a build needs (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// Preflight runs the pre-build environment checks for the directory
// the corpus will be written into. The directory may not exist yet;
// checks run against the nearest existing ancestor because the build
// creates missing directories itself.
func Preflight(outputDir string) []CheckResult {
	dir := nearestExistingDir(outputDir)
	return []CheckResult{
		checkWritePermissions(dir),
		checkDiskSpace(dir),
	}
}

func nearestExistingDir(dir string) string {
	if dir == "" {
		dir = "."
	}
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func checkWritePermissions(dir string) CheckResult {
	testFile := filepath.Join(dir, ".pretext-write-test")
	f, err := os.Create(testFile)
	if err != nil {
		return CheckResult{
			Name:     "write_permissions",
			Status:   StatusFail,
			Message:  fmt.Sprintf("cannot write to %s: %v", dir, err),
			Required: true,
		}
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	return CheckResult{
		Name:     "write_permissions",
		Status:   StatusPass,
		Message:  dir + " is writable",
		Required: true,
	}
}

func checkDiskSpace(dir string) CheckResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return CheckResult{
			Name:     "disk_space",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("could not check disk space: %v", err),
			Required: false,
		}
	}

	available := stat.Bavail * uint64(stat.Bsize)
	if available < MinDiskSpaceBytes {
		return CheckResult{
			Name:   "disk_space",
			Status: StatusFail,
			Message: fmt.Sprintf("only %s available, need at least %s",
				formatBytes(available), formatBytes(MinDiskSpaceBytes)),
			Required: true,
		}
	}

	return CheckResult{
		Name:     "disk_space",
		Status:   StatusPass,
		Message:  formatBytes(available) + " available",
		Required: true,
	}
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
