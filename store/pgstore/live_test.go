package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vidyavichar/models"
	"vidyavichar/store"
)

// openLive connects to the database named by TEST_DATABASE_DSN and skips
// the test when it is unset.
func openLive(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	s := New(db)
	require.NoError(t, s.AutoMigrate())
	return s
}

func liveClass(t *testing.T, s *Store) *models.Class {
	t.Helper()
	now := time.Now().UTC()
	c := &models.Class{
		ID:            uuid.NewString(),
		Name:          "Databases " + uuid.NewString()[:8],
		Description:   "Storage engines",
		Subject:       "CS",
		CreatedBy:     uuid.NewString(),
		CreatedByName: "Prof. Rao",
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c.NameKey = models.ClassNameKey(c.Name)
	require.NoError(t, s.CreateClass(context.Background(), c))
	t.Cleanup(func() {
		s.db.Where("class_id = ?", c.ID).Delete(&models.Question{})
		s.db.Where("id = ?", c.ID).Delete(&models.Class{})
	})
	return c
}

func liveQuestion(t *testing.T, s *Store, c *models.Class, text string, status models.QuestionStatus) *models.Question {
	t.Helper()
	now := time.Now().UTC()
	q := &models.Question{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    "Meera",
		AuthorID:  uuid.NewString(),
		ClassID:   c.ID,
		ClassName: c.Name,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateQuestion(context.Background(), q))
	return q
}

func TestLiveQuestionWrites(t *testing.T) {
	s := openLive(t)
	ctx := context.Background()
	c := liveClass(t, s)

	q := liveQuestion(t, s, c, "What is MVCC?", models.StatusPending)

	t.Run("transition returns before and after", func(t *testing.T) {
		before, after, err := s.TransitionStatus(ctx, q.ID, models.StatusAnswered)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, before.Status)
		assert.Equal(t, models.StatusAnswered, after.Status)

		stored, err := s.GetQuestion(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAnswered, stored.Status)
	})

	t.Run("mark deleted is idempotent", func(t *testing.T) {
		before, after, err := s.MarkDeleted(ctx, q.ID)
		require.NoError(t, err)
		assert.False(t, before.Deleted)
		assert.True(t, after.Deleted)

		before, after, err = s.MarkDeleted(ctx, q.ID)
		assert.ErrorIs(t, err, store.ErrAlreadyDeleted)
		require.NotNil(t, after)
		assert.True(t, before.Deleted)
		assert.True(t, after.Deleted)
	})

	t.Run("missing question", func(t *testing.T) {
		_, _, err := s.TransitionStatus(ctx, uuid.NewString(), models.StatusImportant)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, _, err = s.MarkDeleted(ctx, uuid.NewString())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestLiveCountQuestions(t *testing.T) {
	s := openLive(t)
	ctx := context.Background()
	c := liveClass(t, s)

	liveQuestion(t, s, c, "What is a WAL?", models.StatusPending)
	liveQuestion(t, s, c, "Why vacuum?", models.StatusImportant)
	liveQuestion(t, s, c, "What is a page?", models.StatusAnswered)
	gone := liveQuestion(t, s, c, "What is fsync?", models.StatusImportant)
	_, _, err := s.MarkDeleted(ctx, gone.ID)
	require.NoError(t, err)

	stats, err := s.CountQuestions(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStats{
		Total: 4, Pending: 1, Answered: 1, Important: 1, Deleted: 1, PendingTotal: 2,
	}, stats)

	empty, err := s.CountQuestions(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStats{}, empty)
}

func TestLiveDuplicateEmail(t *testing.T) {
	s := openLive(t)
	ctx := context.Background()

	email := "dup-" + uuid.NewString()[:8] + "@example.com"
	u := &models.User{ID: uuid.NewString(), Name: "Sam", Email: email, PasswordHash: []byte("x"), Role: models.RoleStudent}
	require.NoError(t, s.CreateUser(ctx, u))
	t.Cleanup(func() { s.db.Where("email = ?", email).Delete(&models.User{}) })

	again := &models.User{ID: uuid.NewString(), Name: "Sam", Email: email, PasswordHash: []byte("x"), Role: models.RoleStudent}
	assert.ErrorIs(t, s.CreateUser(ctx, again), store.ErrEmailExists)
}
