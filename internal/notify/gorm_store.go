package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/honeytrace/honeypot/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore keeps notifications in their own SQLite database.
type GormStore struct {
	db *gorm.DB
}

func OpenGormStore(path string) (*GormStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("notification db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create notification db dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open notification db: %w", err)
	}
	if err := db.AutoMigrate(&model.Notification{}); err != nil {
		return nil, fmt.Errorf("migrate notifications: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Name() string { return "sqlite" }

func (s *GormStore) Deliver(ctx context.Context, n model.Notification) error {
	return s.db.WithContext(ctx).Create(&n).Error
}

func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Notification{}).Count(&count).Error
	return count, err
}

// ListByCategory returns notifications of one category, newest first.
func (s *GormStore) ListByCategory(ctx context.Context, category model.NotificationCategory) ([]model.Notification, error) {
	var out []model.Notification
	err := s.db.WithContext(ctx).
		Where("category = ?", category).
		Order("timestamp DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
