// Package pgstore persists classes, questions and users in PostgreSQL
// through gorm.
package pgstore

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vidyavichar/models"
	"vidyavichar/store"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

// AutoMigrate creates or updates the tables backing the store.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.Class{},
		&models.Question{},
	)
}

func wrap(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

func (s *Store) CreateClass(ctx context.Context, c *models.Class) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return errors.Wrap(err, "creating class")
	}
	return nil
}

func (s *Store) GetClass(ctx context.Context, id string) (*models.Class, error) {
	var c models.Class
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, wrap(err, "getting class")
	}
	return &c, nil
}

func (s *Store) FindActiveByName(ctx context.Context, name, excludeID string) (*models.Class, error) {
	q := s.db.WithContext(ctx).
		Where("name_key = ? AND is_active = ?", models.ClassNameKey(name), true)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var c models.Class
	if err := q.First(&c).Error; err != nil {
		return nil, wrap(err, "finding class by name")
	}
	return &c, nil
}

func (s *Store) ListActiveClasses(ctx context.Context, filter store.ClassFilter) ([]models.Class, error) {
	q := s.db.WithContext(ctx).Where("is_active = ?", true)
	if filter.CreatedBy != "" {
		q = q.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.Search != "" {
		p := containsPattern(filter.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(subject) LIKE ? OR LOWER(description) LIKE ?", p, p, p)
	}
	var classes []models.Class
	if err := q.Order("created_at DESC").Find(&classes).Error; err != nil {
		return nil, errors.Wrap(err, "listing classes")
	}
	return classes, nil
}

func (s *Store) UpdateClass(ctx context.Context, id string, upd store.ClassUpdate) (*models.Class, error) {
	updates := map[string]interface{}{"updated_at": upd.UpdatedAt}
	if upd.Name != nil {
		updates["name"] = *upd.Name
		updates["name_key"] = models.ClassNameKey(*upd.Name)
	}
	if upd.Description != nil {
		updates["description"] = *upd.Description
	}
	if upd.Subject != nil {
		updates["subject"] = *upd.Subject
	}
	if upd.IsActive != nil {
		updates["is_active"] = *upd.IsActive
	}

	res := s.db.WithContext(ctx).Model(&models.Class{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "updating class")
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetClass(ctx, id)
}

func (s *Store) IncrementCounters(ctx context.Context, id string, d store.CounterDelta) error {
	if d.IsZero() {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Class{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_questions":   gorm.Expr("total_questions + ?", d.Total),
		"pending_questions": gorm.Expr("pending_questions + ?", d.Pending),
	})
	if res.Error != nil {
		return errors.Wrap(res.Error, "incrementing class counters")
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetCounters(ctx context.Context, id string, c store.Counters) error {
	updates := map[string]interface{}{
		"total_questions":  c.Total,
		"active_questions": c.Active,
	}
	if c.Pending != nil {
		updates["pending_questions"] = *c.Pending
	}
	res := s.db.WithContext(ctx).Model(&models.Class{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "setting class counters")
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateQuestion(ctx context.Context, q *models.Question) error {
	if err := s.db.WithContext(ctx).Create(q).Error; err != nil {
		return errors.Wrap(err, "creating question")
	}
	return nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	var q models.Question
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, wrap(err, "getting question")
	}
	return &q, nil
}

func (s *Store) FindByText(ctx context.Context, classID, text string, includeDeleted bool) (*models.Question, error) {
	q := s.db.WithContext(ctx).Where("class_id = ? AND text = ?", classID, text)
	if !includeDeleted {
		q = q.Where("deleted = ?", false)
	}
	var question models.Question
	if err := q.First(&question).Error; err != nil {
		return nil, wrap(err, "finding question by text")
	}
	return &question, nil
}

func (s *Store) ListQuestions(ctx context.Context, filter store.QuestionFilter) ([]models.Question, error) {
	q := s.db.WithContext(ctx).Where("class_id = ?", filter.ClassID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Deleted != nil {
		q = q.Where("deleted = ?", *filter.Deleted)
	}
	var questions []models.Question
	if err := q.Order("created_at DESC").Find(&questions).Error; err != nil {
		return nil, errors.Wrap(err, "listing questions")
	}
	return questions, nil
}

const statsSelect = `COUNT(*) AS total,
	COALESCE(SUM(CASE WHEN status = 'pending' AND NOT deleted THEN 1 ELSE 0 END), 0) AS pending,
	COALESCE(SUM(CASE WHEN status = 'answered' AND NOT deleted THEN 1 ELSE 0 END), 0) AS answered,
	COALESCE(SUM(CASE WHEN status = 'important' AND NOT deleted THEN 1 ELSE 0 END), 0) AS important,
	COALESCE(SUM(CASE WHEN deleted THEN 1 ELSE 0 END), 0) AS deleted,
	COALESCE(SUM(CASE WHEN status IN ('pending', 'important') AND NOT deleted THEN 1 ELSE 0 END), 0) AS pending_total`

func (s *Store) CountQuestions(ctx context.Context, classID string) (models.QuestionStats, error) {
	var stats models.QuestionStats
	err := s.db.WithContext(ctx).Model(&models.Question{}).
		Select(statsSelect).
		Where("class_id = ?", classID).
		Scan(&stats).Error
	if err != nil {
		return models.QuestionStats{}, errors.Wrap(err, "counting questions")
	}
	return stats, nil
}

// lockedUpdate loads the question under a row lock, lets mutate change it
// and persists the changed columns in the same transaction.
func (s *Store) lockedUpdate(ctx context.Context, id string, mutate func(q *models.Question) (map[string]interface{}, error)) (*models.Question, *models.Question, error) {
	var before, after *models.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Question
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&q).Error; err != nil {
			return err
		}
		b := q
		before = &b

		updates, err := mutate(&q)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Question{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		after = &q
		return nil
	})
	if errors.Is(err, store.ErrAlreadyDeleted) {
		return before, before, err
	}
	if err != nil {
		return nil, nil, wrap(err, "updating question")
	}
	return before, after, nil
}

func (s *Store) TransitionStatus(ctx context.Context, id string, status models.QuestionStatus) (*models.Question, *models.Question, error) {
	return s.lockedUpdate(ctx, id, func(q *models.Question) (map[string]interface{}, error) {
		q.Status = status
		q.UpdatedAt = time.Now().UTC()
		return map[string]interface{}{"status": status, "updated_at": q.UpdatedAt}, nil
	})
}

func (s *Store) MarkDeleted(ctx context.Context, id string) (*models.Question, *models.Question, error) {
	return s.lockedUpdate(ctx, id, func(q *models.Question) (map[string]interface{}, error) {
		if q.Deleted {
			return nil, store.ErrAlreadyDeleted
		}
		q.Deleted = true
		q.UpdatedAt = time.Now().UTC()
		return map[string]interface{}{"deleted": true, "updated_at": q.UpdatedAt}, nil
	})
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = ?", strings.ToLower(u.Email)).
		Count(&count).Error; err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return store.ErrEmailExists
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return store.ErrEmailExists
		}
		return errors.Wrap(err, "creating user")
	}
	return nil
}

const uniqueViolation = "23505"

// isUniqueViolation catches the insert losing a race with a concurrent
// registration after the lookup above passed.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, wrap(err, "getting user")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		return nil, wrap(err, "getting user by email")
	}
	return &u, nil
}
