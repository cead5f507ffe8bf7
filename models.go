package main

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"vidfetch-api/config"
)

// DownloadRecord is the bookkeeping row for one /download request.
type DownloadRecord struct {
	gorm.Model
	URL      string
	FormatID string
	Convert  string
	Status   string // "running", "completed", "failed"
	Error    string
	Bytes    int64
	ClientIP string
}

// advisory process-wide counters; tolerate being slightly behind
var (
	infoRequests     atomic.Int64
	downloadRequests atomic.Int64
	downloadFailures atomic.Int64
)

func recordDownloadStart(url, formatID, convert, clientIP string) *DownloadRecord {
	rec := &DownloadRecord{
		URL:      url,
		FormatID: formatID,
		Convert:  convert,
		Status:   "running",
		ClientIP: clientIP,
	}
	if err := db.Create(rec).Error; err != nil {
		log.Errorln("failed to create download record:", err)
	}
	return rec
}

func recordDownloadDone(rec *DownloadRecord, bytes int64) {
	db.Model(rec).Updates(map[string]interface{}{"status": "completed", "bytes": bytes})
}

func recordDownloadFailed(rec *DownloadRecord, errText string) {
	downloadFailures.Add(1)
	db.Model(rec).Updates(map[string]interface{}{"status": "failed", "error": errText})
}

func cleanupOldRecords() {
	log.Debugln("cleanupOldRecords...")
	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	result := db.Unscoped().Where("created_at < ?", cutoff).Delete(&DownloadRecord{})
	if result.Error != nil {
		log.Errorln("error cleaning up download records:", result.Error)
	} else if result.RowsAffected > 0 {
		log.Infof("cleaned up %d old download records", result.RowsAffected)
	}
}

// cleanupStaleWorkspaces removes scratch directories a crashed or killed
// process left behind. Live requests are far younger than the cutoff.
func cleanupStaleWorkspaces() {
	root := config.GetDownloadRoot()
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		log.Infoln("removing stale workspace", path)
		if err := os.RemoveAll(path); err != nil {
			log.Errorln("error removing stale workspace:", err)
		}
	}
}

func vacuumDatabase() {
	if err := db.Exec("VACUUM").Error; err != nil {
		log.Errorln(err)
	}
}

func PeriodicCleanup() {
	cleanupOldRecords()
	cleanupStaleWorkspaces()
	vacuumDatabase()
	ticker := time.NewTicker(1 * time.Hour)
	for range ticker.C {
		cleanupOldRecords()
		cleanupStaleWorkspaces()
		vacuumDatabase()
	}
}
