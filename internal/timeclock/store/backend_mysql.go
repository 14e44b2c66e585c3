package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timeclock/pkg/platform/sentinel"
)

type documentRow struct {
	Key       string    `gorm:"column:doc_key;primaryKey;size:128"`
	Body      string    `gorm:"column:body;type:longtext;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (documentRow) TableName() string {
	return "timeclock_documents"
}

// MySQLBackend stores the document through gorm, one row per storage key.
type MySQLBackend struct {
	db  *gorm.DB
	key string
}

func NewMySQLBackend(db *gorm.DB, key string) *MySQLBackend {
	if key == "" {
		key = DefaultKey
	}
	return &MySQLBackend{db: db, key: key}
}

// AutoMigrate creates or updates the documents table.
func (b *MySQLBackend) AutoMigrate() error {
	return b.db.AutoMigrate(&documentRow{})
}

func (b *MySQLBackend) Read(ctx context.Context) ([]byte, error) {
	var row documentRow
	err := b.db.WithContext(ctx).Where("doc_key = ?", b.key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return []byte(row.Body), nil
}

func (b *MySQLBackend) Write(ctx context.Context, data []byte) error {
	row := documentRow{Key: b.key, Body: string(data), UpdatedAt: time.Now()}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// WriteIfVersion locks the row, compares its version and writes in one
// transaction. A concurrent first insert surfaces as a conflict.
func (b *MySQLBackend) WriteIfVersion(ctx context.Context, data []byte, expected int64) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row documentRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("doc_key = ?", b.key).
			First(&row).Error
		now := time.Now()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&documentRow{Key: b.key, Body: string(data), UpdatedAt: now})
			if res.Error != nil {
				return fmt.Errorf("insert document: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: mysql document created concurrently", sentinel.ErrConflict)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock document: %w", err)
		}
		if err := versionMatches([]byte(row.Body), expected); err != nil {
			return err
		}
		err = tx.Model(&documentRow{}).
			Where("doc_key = ?", b.key).
			Updates(map[string]any{"body": string(data), "updated_at": now}).Error
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return nil
	})
}
