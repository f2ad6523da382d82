// Package cleanup sweeps stale pipeline artifacts out of the temp directory.
package cleanup

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Scheduler handles cleanup of temporary files left by interrupted runs
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	log      *logrus.Logger
	now      func() time.Time

	stopChan chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int, log *logrus.Logger) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}
	if maxAgeHours <= 0 {
		maxAgeHours = 24
	}
	return &Scheduler{
		tempDir:  tempDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		log:      log,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval until Stop
func (s *Scheduler) Start() {
	s.log.Debug("running initial temp file cleanup")
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.log.WithFields(logrus.Fields{
		"interval": s.interval,
		"max_age":  s.maxAge,
	}).Info("cleanup scheduler started")
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.log.Debug("cleanup scheduler stopped")
}

// Sweep removes files older than the max age and returns how many it deleted
func (s *Scheduler) Sweep() int {
	now := s.now()

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}
		size := info.Size()
		if err := os.Remove(path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("failed to delete old temp file")
			return nil
		}
		deletedCount++
		deletedSize += size
		s.log.WithFields(logrus.Fields{
			"file": filepath.Base(path),
			"age":  age.Round(time.Hour),
			"size": humanize.Bytes(uint64(size)),
		}).Debug("deleted old temp file")
		return nil
	})
	if err != nil {
		s.log.WithError(err).Warn("error during cleanup")
	}

	if deletedCount > 0 {
		s.log.WithFields(logrus.Fields{
			"files": deletedCount,
			"freed": humanize.Bytes(uint64(deletedSize)),
		}).Info("temp cleanup complete")
	}
	return deletedCount
}
