package transcript

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fsandov/botpress-simulator/pkg/paginate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	s, err := NewStore(context.Background(), db)
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, s *Store, userID string, n int, createdAt time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.Record(context.Background(), &Exchange{
			UserID:         userID,
			ConversationID: "conv-" + userID,
			Message:        fmt.Sprintf("msg %d", i),
			Response:       fmt.Sprintf("reply %d", i),
			CreatedAt:      createdAt.Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestNewStoreNilDB(t *testing.T) {
	_, err := NewStore(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilDB)
}

func TestRecordAssignsID(t *testing.T) {
	s := newStore(t)
	e := &Exchange{UserID: "u1", ConversationID: "c1", Message: "hi", Response: "hello"}
	require.NoError(t, s.Record(context.Background(), e))
	assert.NotZero(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestCountByUser(t *testing.T) {
	s := newStore(t)
	now := time.Now()
	seed(t, s, "alice", 3, now)
	seed(t, s, "bob", 2, now)

	ctx := context.Background()
	n, err := s.Count(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = s.Count(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestListDefaultsNewestFirst(t *testing.T) {
	s := newStore(t)
	seed(t, s, "alice", 3, time.Now())

	res, err := s.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, res.Data, 3)
	assert.Equal(t, "msg 2", res.Data[0].Message)
	assert.Equal(t, 3, res.Pagination.TotalItems)
	assert.Equal(t, 1, res.Pagination.TotalPages)
	assert.False(t, res.Pagination.HasNext)
}

func TestListPaginatesFromContext(t *testing.T) {
	s := newStore(t)
	seed(t, s, "alice", 5, time.Now())
	seed(t, s, "bob", 4, time.Now())

	ctx := paginate.NewContext(context.Background(), &paginate.Options{Page: 2, Limit: 2, OrderBy: "id"})
	res, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "msg 2", res.Data[0].Message)
	assert.Equal(t, "msg 3", res.Data[1].Message)
	assert.Equal(t, 5, res.Pagination.TotalItems)
	assert.Equal(t, 3, res.Pagination.TotalPages)
	assert.True(t, res.Pagination.HasNext)
	assert.True(t, res.Pagination.HasPrev)
}

func TestListPastLastPage(t *testing.T) {
	s := newStore(t)
	seed(t, s, "alice", 3, time.Now())

	ctx := paginate.NewContext(context.Background(), &paginate.Options{Page: 3, Limit: 2})
	_, err := s.List(ctx, "alice")
	assert.ErrorIs(t, err, paginate.ErrPageNotFound)
}

func TestListEmptyIsNotNil(t *testing.T) {
	s := newStore(t)
	res, err := s.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}

func TestPurgeOlderThan(t *testing.T) {
	s := newStore(t)
	now := time.Now()
	seed(t, s, "alice", 2, now.Add(-48*time.Hour))
	seed(t, s, "alice", 3, now)

	removed, err := s.PurgeOlderThan(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	n, err := s.Count(context.Background(), "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
