//go:build !darwin

package pipeline

import (
	"os"
	"time"
)

// recordedAt falls back to the modification time where birth time is unavailable
func recordedAt(info os.FileInfo) time.Time {
	return info.ModTime().UTC()
}
