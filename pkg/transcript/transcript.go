// Package transcript stores every message exchanged through the simulator.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsandov/botpress-simulator/pkg/paginate"
	"gorm.io/gorm"
)

var ErrNilDB = errors.New("transcript: nil database")

// SortableColumns may appear in order_by when listing.
var SortableColumns = []string{"id", "created_at", "user_id", "conversation_id"}

const defaultOrder = "created_at desc, id desc"

type Exchange struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         string    `gorm:"size:255;index" json:"user_id"`
	ConversationID string    `gorm:"size:255;index" json:"conversation_id"`
	Message        string    `gorm:"type:text" json:"message"`
	Response       string    `gorm:"type:text" json:"response"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

type Store struct {
	db *gorm.DB
}

// NewStore migrates the exchanges table and returns a store over it.
func NewStore(ctx context.Context, db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if err := db.WithContext(ctx).AutoMigrate(&Exchange{}); err != nil {
		return nil, fmt.Errorf("transcript: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Record(ctx context.Context, e *Exchange) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("transcript: record: %w", err)
	}
	return nil
}

// List returns one page of exchanges, newest first unless the context carries
// another order. An empty userID lists every user. A page past the last one
// fails with paginate.ErrPageNotFound.
func (s *Store) List(ctx context.Context, userID string) (*paginate.PaginatedResponse[Exchange], error) {
	total, err := s.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	page, limit, _ := paginate.FromContext(ctx)
	if err := paginate.CheckPage(page, limit, int(total)); err != nil {
		return nil, err
	}

	var items []Exchange
	q := paginate.ApplyGormPaginationFromContext(ctx, s.scoped(ctx, userID), defaultOrder)
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("transcript: list: %w", err)
	}
	if items == nil {
		items = []Exchange{}
	}

	return paginate.NewPaginatedResponse(items, paginate.NewPagination(page, limit, int(total))), nil
}

func (s *Store) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := s.scoped(ctx, userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("transcript: count: %w", err)
	}
	return n, nil
}

// PurgeOlderThan deletes exchanges created before cutoff and reports how many
// rows went away.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Exchange{})
	if res.Error != nil {
		return 0, fmt.Errorf("transcript: purge: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) scoped(ctx context.Context, userID string) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&Exchange{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	return q
}
