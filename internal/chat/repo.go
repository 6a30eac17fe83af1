package chat

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/suPer8Hu/yt-assistant/internal/common"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// AutoMigrate creates or updates the exchange table.
func (r *Repo) AutoMigrate() error {
	return r.db.AutoMigrate(&Exchange{})
}

// InsertExchange assigns an id and timestamp when missing and stores e.
// Re-inserting an id that already exists is a no-op.
func (r *Repo) InsertExchange(ctx context.Context, e *Exchange) error {
	if e.ID == "" {
		id, err := common.NewULID()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var existing int64
	if err := r.db.WithContext(ctx).Model(&Exchange{}).Where("id = ?", e.ID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(e).Error
}

// RecordExchange implements Recorder by writing straight to the database.
func (r *Repo) RecordExchange(ctx context.Context, e *Exchange) error {
	return r.InsertExchange(ctx, e)
}

// ListExchangesByVideo returns exchanges for videoID, newest first.
func (r *Repo) ListExchangesByVideo(ctx context.Context, videoID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Exchange
	if err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
