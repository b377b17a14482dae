// Package memstore is an in-process Store backed by maps. It is used by the
// tests and by STORE_DRIVER=memory for local development.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"vidyavichar/models"
	"vidyavichar/store"
)

type classRow struct {
	seq int64
	models.Class
}

type questionRow struct {
	seq int64
	models.Question
}

type DB struct {
	mutex     sync.RWMutex
	seq       int64
	classes   map[string]*classRow
	questions map[string]*questionRow
	users     map[string]*models.User
}

func New() *DB {
	return &DB{
		classes:   make(map[string]*classRow),
		questions: make(map[string]*questionRow),
		users:     make(map[string]*models.User),
	}
}

var _ store.Store = (*DB)(nil)

func now() time.Time { return time.Now().UTC() }

func (db *DB) nextSeq() int64 {
	db.seq++
	return db.seq
}

// Classes

func (db *DB) CreateClass(_ context.Context, c *models.Class) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.classes[c.ID] = &classRow{seq: db.nextSeq(), Class: *c}
	return nil
}

func (db *DB) GetClass(_ context.Context, id string) (*models.Class, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	row, ok := db.classes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := row.Class
	return &c, nil
}

func (db *DB) FindActiveByName(_ context.Context, name, excludeID string) (*models.Class, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	key := models.ClassNameKey(name)
	for _, row := range db.classes {
		if row.IsActive && row.NameKey == key && row.ID != excludeID {
			c := row.Class
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (db *DB) ListActiveClasses(_ context.Context, filter store.ClassFilter) ([]models.Class, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	rows := make([]*classRow, 0, len(db.classes))
	for _, row := range db.classes {
		if filter.Matches(row.Class) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]models.Class, len(rows))
	for i, row := range rows {
		out[i] = row.Class
	}
	return out, nil
}

func (db *DB) UpdateClass(_ context.Context, id string, upd store.ClassUpdate) (*models.Class, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	row, ok := db.classes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if upd.Name != nil {
		row.Name = *upd.Name
		row.NameKey = models.ClassNameKey(*upd.Name)
	}
	if upd.Description != nil {
		row.Description = *upd.Description
	}
	if upd.Subject != nil {
		row.Subject = *upd.Subject
	}
	if upd.IsActive != nil {
		row.IsActive = *upd.IsActive
	}
	row.UpdatedAt = upd.UpdatedAt
	c := row.Class
	return &c, nil
}

func (db *DB) IncrementCounters(_ context.Context, id string, delta store.CounterDelta) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	row, ok := db.classes[id]
	if !ok {
		return store.ErrNotFound
	}
	row.TotalQuestions += delta.Total
	row.PendingQuestions += delta.Pending
	return nil
}

func (db *DB) SetCounters(_ context.Context, id string, c store.Counters) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	row, ok := db.classes[id]
	if !ok {
		return store.ErrNotFound
	}
	row.TotalQuestions = c.Total
	row.ActiveQuestions = c.Active
	if c.Pending != nil {
		row.PendingQuestions = *c.Pending
	}
	return nil
}

// Questions

func (db *DB) CreateQuestion(_ context.Context, q *models.Question) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	row := &questionRow{seq: db.nextSeq(), Question: *q}
	row.Class = nil
	db.questions[q.ID] = row
	return nil
}

func (db *DB) GetQuestion(_ context.Context, id string) (*models.Question, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	row, ok := db.questions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	q := row.Question
	return &q, nil
}

func (db *DB) FindByText(_ context.Context, classID, text string, includeDeleted bool) (*models.Question, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	for _, row := range db.questions {
		if row.ClassID != classID || row.Text != text {
			continue
		}
		if row.Deleted && !includeDeleted {
			continue
		}
		q := row.Question
		return &q, nil
	}
	return nil, store.ErrNotFound
}

func (db *DB) ListQuestions(_ context.Context, filter store.QuestionFilter) ([]models.Question, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	rows := make([]*questionRow, 0)
	for _, row := range db.questions {
		if filter.Matches(row.Question) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]models.Question, len(rows))
	for i, row := range rows {
		out[i] = row.Question
	}
	return out, nil
}

func (db *DB) CountQuestions(_ context.Context, classID string) (models.QuestionStats, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	var stats models.QuestionStats
	for _, row := range db.questions {
		if row.ClassID == classID {
			stats.Tally(row.Question)
		}
	}
	return stats, nil
}

func (db *DB) TransitionStatus(_ context.Context, id string, status models.QuestionStatus) (*models.Question, *models.Question, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	row, ok := db.questions[id]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	before := row.Question
	row.Status = status
	row.UpdatedAt = now()
	after := row.Question
	return &before, &after, nil
}

func (db *DB) MarkDeleted(_ context.Context, id string) (*models.Question, *models.Question, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	row, ok := db.questions[id]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	before := row.Question
	if row.Deleted {
		return &before, &before, store.ErrAlreadyDeleted
	}
	row.Deleted = true
	row.UpdatedAt = now()
	after := row.Question
	return &before, &after, nil
}

// Users

func (db *DB) CreateUser(_ context.Context, u *models.User) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	for _, existing := range db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrEmailExists
		}
	}
	usr := *u
	db.users[u.ID] = &usr
	return nil
}

func (db *DB) GetUser(_ context.Context, id string) (*models.User, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	if usr, ok := db.users[id]; ok {
		u := *usr
		return &u, nil
	}
	return nil, store.ErrNotFound
}

func (db *DB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	for _, usr := range db.users {
		if strings.EqualFold(usr.Email, email) {
			u := *usr
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}
