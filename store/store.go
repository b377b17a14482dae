// Package store defines the persistence contracts for classes, questions and
// users. Implementations live in memstore, pgstore and mongostore.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"vidyavichar/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyDeleted is returned by MarkDeleted when the question was
	// soft-deleted before the call.
	ErrAlreadyDeleted = errors.New("question already deleted")
	ErrEmailExists    = errors.New("a user with this email already exists")
)

type ClassFilter struct {
	// Search is matched case-insensitively as a substring of name, subject
	// or description.
	Search    string
	CreatedBy string
}

// ClassUpdate holds the fields to change; nil fields are left untouched.
type ClassUpdate struct {
	Name        *string
	Description *string
	Subject     *string
	IsActive    *bool
	UpdatedAt   time.Time
}

// CounterDelta is applied with increment semantics.
type CounterDelta struct {
	Total   int64
	Pending int64
}

func (d CounterDelta) IsZero() bool {
	return d.Total == 0 && d.Pending == 0
}

// Counters overwrites the stored counters. Pending is optional.
type Counters struct {
	Total   int64
	Active  int64
	Pending *int64
}

type QuestionFilter struct {
	ClassID string
	Status  models.QuestionStatus // empty matches any status
	Deleted *bool                 // nil matches both
}

// Matches reports whether q satisfies the filter.
func (f QuestionFilter) Matches(q models.Question) bool {
	if f.ClassID != "" && q.ClassID != f.ClassID {
		return false
	}
	if f.Status != "" && q.Status != f.Status {
		return false
	}
	if f.Deleted != nil && q.Deleted != *f.Deleted {
		return false
	}
	return true
}

// Matches reports whether c satisfies the filter. Inactive classes never match.
func (f ClassFilter) Matches(c models.Class) bool {
	if !c.IsActive {
		return false
	}
	if f.CreatedBy != "" && c.CreatedBy != f.CreatedBy {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(c.Name), term) ||
		strings.Contains(strings.ToLower(c.Subject), term) ||
		strings.Contains(strings.ToLower(c.Description), term)
}

type ClassStore interface {
	CreateClass(ctx context.Context, c *models.Class) error
	GetClass(ctx context.Context, id string) (*models.Class, error)
	// FindActiveByName looks up an active class by case-insensitive name,
	// ignoring the class with id excludeID (if any).
	FindActiveByName(ctx context.Context, name, excludeID string) (*models.Class, error)
	ListActiveClasses(ctx context.Context, filter ClassFilter) ([]models.Class, error)
	UpdateClass(ctx context.Context, id string, upd ClassUpdate) (*models.Class, error)
	IncrementCounters(ctx context.Context, id string, delta CounterDelta) error
	SetCounters(ctx context.Context, id string, c Counters) error
}

type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	// FindByText looks for a question in the class with exactly this text.
	FindByText(ctx context.Context, classID, text string, includeDeleted bool) (*models.Question, error)
	ListQuestions(ctx context.Context, filter QuestionFilter) ([]models.Question, error)
	CountQuestions(ctx context.Context, classID string) (models.QuestionStats, error)
	// TransitionStatus atomically replaces the status and returns the record
	// before and after the write.
	TransitionStatus(ctx context.Context, id string, status models.QuestionStatus) (before, after *models.Question, err error)
	// MarkDeleted atomically soft-deletes a live question. A question that is
	// already deleted yields ErrAlreadyDeleted together with its current state.
	MarkDeleted(ctx context.Context, id string) (before, after *models.Question, err error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Store bundles every collection the services need.
type Store interface {
	ClassStore
	QuestionStore
	UserStore
}
