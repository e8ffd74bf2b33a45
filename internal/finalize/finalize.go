// Package finalize moves a finished log from its temporary name to the
// name that includes the exit code.
package finalize

import (
	"fmt"
	"log/slog"
	"os"
)

// Finalize moves the finished log at tempPath to finalPath and returns the
// path that holds the log afterwards. A failed rename is not an error for the
// run: it is logged and the file stays at tempPath.
func Finalize(tempPath, finalPath string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	if tempPath == finalPath || finalPath == "" {
		return tempPath
	}

	if err := rename(tempPath, finalPath); err != nil {
		logger.Warn("Failed to rename log file, keeping temporary name",
			"error", err, "from", tempPath, "to", finalPath)
		return tempPath
	}
	logger.Debug("Renamed log file", "from", tempPath, "to", finalPath)
	return finalPath
}

// rename refuses to replace an existing file, so a log from an earlier run
// with the same name is never lost.
func rename(from, to string) error {
	if _, err := os.Lstat(to); err == nil {
		return fmt.Errorf("destination %s already exists", to)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", to, err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}
	return nil
}
