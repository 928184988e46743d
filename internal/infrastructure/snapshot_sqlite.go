package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

// SQLiteSnapshotStore persists task snapshots using SQLite. The engine owns
// no storage of its own; this collaborator serializes tasks and hands them
// back at startup.
type SQLiteSnapshotStore struct {
	db *gorm.DB
}

// NewSQLiteSnapshotStore opens (creating if needed) the snapshot database.
func NewSQLiteSnapshotStore(dbPath string) (*SQLiteSnapshotStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	if err := db.AutoMigrate(&domain.TaskSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot schema: %w", err)
	}

	return &SQLiteSnapshotStore{db: db}, nil
}

// Save upserts one snapshot. Last write wins.
func (s *SQLiteSnapshotStore) Save(snapshot *domain.TaskSnapshot) error {
	return s.db.Save(snapshot).Error
}

// Delete removes the snapshot for a discarded task.
func (s *SQLiteSnapshotStore) Delete(id string) error {
	return s.db.Delete(&domain.TaskSnapshot{}, "id = ?", id).Error
}

// LoadAll returns every stored snapshot in creation order.
func (s *SQLiteSnapshotStore) LoadAll() ([]*domain.TaskSnapshot, error) {
	var snapshots []*domain.TaskSnapshot
	err := s.db.Order("created_at ASC").Find(&snapshots).Error
	return snapshots, err
}

// Stats aggregates snapshot counts per lifecycle bucket.
func (s *SQLiteSnapshotStore) Stats() (*domain.TaskStats, error) {
	stats := &domain.TaskStats{}

	if err := s.db.Model(&domain.TaskSnapshot{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	kindCounts := []struct {
		StatusKind string
		Count      int64
	}{}
	if err := s.db.Model(&domain.TaskSnapshot{}).
		Select("status_kind, count(*) as count").
		Group("status_kind").
		Scan(&kindCounts).Error; err != nil {
		return nil, err
	}

	for _, kc := range kindCounts {
		switch domain.StatusKind(kc.StatusKind) {
		case domain.KindPending:
			stats.Pending += kc.Count
		case domain.KindFetchingInfo, domain.KindPreparing, domain.KindDownloading, domain.KindConverting:
			stats.Active += kc.Count
		case domain.KindPaused:
			stats.Paused += kc.Count
		case domain.KindCompleted:
			stats.Completed += kc.Count
		case domain.KindFailed:
			stats.Failed += kc.Count
		}
	}

	return stats, nil
}

// Close closes the underlying database connection.
func (s *SQLiteSnapshotStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
