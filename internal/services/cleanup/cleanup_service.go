package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"facemark-go/config"

	log "github.com/sirupsen/logrus"
)

// CleanupService removes old audit frame files. Attendance records and
// sessions are never deleted; only the stored camera frames age out.
type CleanupService struct {
	config        config.CleanupConfig
	frameDir      string
	checkInterval time.Duration
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(cfg config.CleanupConfig, frameDir string) *CleanupService {
	return &CleanupService{
		config:        cfg,
		frameDir:      frameDir,
		checkInterval: 24 * time.Hour, // Check once a day
	}
}

// Start runs the cleanup service until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) {
	log.Info("Cleanup service started")

	if err := s.RunCleanup(ctx); err != nil {
		log.Errorf("Initial cleanup failed: %v", err)
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Info("Running scheduled cleanup")
			if err := s.RunCleanup(ctx); err != nil {
				log.Errorf("Scheduled cleanup failed: %v", err)
			}
		case <-ctx.Done():
			log.Info("Cleanup service stopped")
			return
		}
	}
}

// RunCleanup performs one sweep over the frame directory.
func (s *CleanupService) RunCleanup(ctx context.Context) error {
	if s.config.RetentionDays <= 0 {
		log.Info("Cleanup disabled (retention days <= 0)")
		return nil
	}
	if s.frameDir == "" {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	log.Infof("Cleaning up audit frames older than %s", cutoff.Format("2006-01-02"))

	entries, err := os.ReadDir(s.frameDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var deleteCount, errorCount int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.frameDir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Warnf("Failed to delete audit frame %s: %v", path, err)
			errorCount++
			continue
		}
		deleteCount++
	}

	log.Infof("Cleanup completed: deleted %d frames, encountered %d errors", deleteCount, errorCount)
	return nil
}
