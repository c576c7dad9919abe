package infrastructure

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/yourusername/ytgrab/internal/domain"
)

// JobRecord is the persisted shape of a terminal job snapshot
type JobRecord struct {
	ID          string `gorm:"primaryKey"`
	Kind        string `gorm:"index"`
	URL         string
	Quality     string
	State       string `gorm:"index"`
	TotalItems  int
	FailedItems int
	ErrorKind   string
	ErrorDetail string
	ResultPath  string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// HistoryStats aggregates archived job counts by terminal state
type HistoryStats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

// SQLiteHistoryRepository archives terminal job snapshots to SQLite.
// The live job arena stays in memory; this store only serves the
// history and stats endpoints, so a write failure never blocks a job.
type SQLiteHistoryRepository struct {
	db *gorm.DB
}

// NewSQLiteHistoryRepository opens (or creates) the history database
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.AutoMigrate(&JobRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Record archives a terminal job snapshot, replacing any earlier record
// for the same job ID
func (r *SQLiteHistoryRepository) Record(job domain.Job) error {
	rec := JobRecord{
		ID:          job.ID,
		Kind:        string(job.Kind),
		URL:         job.URL,
		Quality:     job.Quality,
		State:       string(job.State),
		TotalItems:  job.TotalItems,
		FailedItems: job.FailedItems,
		ErrorKind:   string(job.ErrorKind),
		ErrorDetail: job.ErrorDetail,
		ResultPath:  job.ResultPath,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	return r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// FindRecent returns archived jobs newest first, optionally filtered by
// terminal state
func (r *SQLiteHistoryRepository) FindRecent(limit int, state string) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.Order("created_at DESC").Limit(limit)
	if state != "" {
		query = query.Where("state = ?", state)
	}
	var records []JobRecord
	err := query.Find(&records).Error
	return records, err
}

// Stats returns aggregate counts over the whole archive
func (r *SQLiteHistoryRepository) Stats() (*HistoryStats, error) {
	var stats HistoryStats
	if err := r.db.Model(&JobRecord{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	type stateCount struct {
		State string
		Count int64
	}
	var counts []stateCount
	err := r.db.Model(&JobRecord{}).
		Select("state, count(*) as count").
		Group("state").
		Find(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		switch domain.JobState(c.State) {
		case domain.StateCompleted:
			stats.Completed = c.Count
		case domain.StateFailed:
			stats.Failed = c.Count
		case domain.StateCancelled:
			stats.Cancelled = c.Count
		}
	}
	return &stats, nil
}

// Close releases the underlying database handle
func (r *SQLiteHistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
