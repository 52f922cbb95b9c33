package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/choraleia/thinkbot/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps documents in the documents table through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens the sqlite database at path.
func NewSQLiteStore(path string) (*GormStore, error) {
	gdb, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return &GormStore{db: gdb}, nil
}

// NewGormStore wraps an already opened database.
func NewGormStore(gdb *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return &GormStore{db: gdb}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc db.Document
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query document %s: %w", key, err)
	}
	return doc.Value, nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	doc := db.Document{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
