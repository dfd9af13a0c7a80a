package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shvee-pandora/pnd-agents-sub001/workflow"
)

// snapshotRowID is the primary key of the single snapshot row.
const snapshotRowID = 1

// snapshotRow is the single-row table holding the current workflow.
type snapshotRow struct {
	ID         uint   `gorm:"primaryKey"`
	WorkflowID string `gorm:"index"`
	Data       []byte
	UpdatedAt  time.Time
}

// TableName implements the gorm table naming convention.
func (snapshotRow) TableName() string { return "workflow_snapshots" }

// SQLiteSnapshotStore persists the snapshot in an embedded SQLite database
// through GORM. The pure-Go driver keeps the binary cgo-free.
type SQLiteSnapshotStore struct {
	db *gorm.DB
}

// NewSQLiteSnapshotStore opens (and migrates) the database at path.
func NewSQLiteSnapshotStore(path string) (*SQLiteSnapshotStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot table: %w", err)
	}
	return &SQLiteSnapshotStore{db: db}, nil
}

func (s *SQLiteSnapshotStore) Save(ctx context.Context, wf *workflow.WorkflowContext) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	row := snapshotRow{
		ID:         snapshotRowID,
		WorkflowID: wf.WorkflowID,
		Data:       data,
		UpdatedAt:  time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) Load(ctx context.Context) (*workflow.WorkflowContext, error) {
	var row snapshotRow
	err := s.db.WithContext(ctx).First(&row, snapshotRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflow.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var wf workflow.WorkflowContext
	if err := json.Unmarshal(row.Data, &wf); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrSnapshotCorrupt, err)
	}
	return &wf, nil
}

func (s *SQLiteSnapshotStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Delete(&snapshotRow{}, snapshotRowID).Error
	if err != nil {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ workflow.SnapshotStore = (*SQLiteSnapshotStore)(nil)
