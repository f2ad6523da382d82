//go:build darwin

package pipeline

import (
	"os"
	"syscall"
	"time"
)

// recordedAt prefers the file's birth time
func recordedAt(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok && st.Birthtimespec.Sec > 0 {
		return time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec).UTC()
	}
	return info.ModTime().UTC()
}
