package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"vidyavichar/models"
	"vidyavichar/store/memstore"
)

var (
	teacher      = models.Principal{ID: uuid.NewString(), Name: "Asha Rao", Role: models.RoleTeacher}
	otherTeacher = models.Principal{ID: uuid.NewString(), Name: "Vikram Nair", Role: models.RoleTeacher}
	student      = models.Principal{ID: uuid.NewString(), Name: "Meera", Role: models.RoleStudent}
	ta           = models.Principal{ID: uuid.NewString(), Name: "Kiran", Role: models.RoleTA}
)

type fixture struct {
	db        *memstore.DB
	classes   *ClassService
	questions *QuestionService
}

func setup(t *testing.T, opts ...QuestionOption) fixture {
	t.Helper()
	db := memstore.New()
	classes := NewClassService(db, db)
	classes.spawn = func(fn func()) { fn() }
	return fixture{
		db:        db,
		classes:   classes,
		questions: NewQuestionService(db, db, opts...),
	}
}

func (f fixture) createClass(t *testing.T, name string) *models.Class {
	t.Helper()
	class, err := f.classes.CreateClass(context.Background(), teacher, &CreateClassRequest{
		Name:        name,
		Description: "Lecture questions for " + name,
		Subject:     "Computer Science",
	})
	require.NoError(t, err)
	return class
}

func (f fixture) ask(t *testing.T, classID, text string) *models.Question {
	t.Helper()
	q, err := f.questions.CreateQuestion(context.Background(), student, &CreateQuestionRequest{Text: text, ClassID: classID})
	require.NoError(t, err)
	return q
}

func (f fixture) setStatus(t *testing.T, id string, status models.QuestionStatus) *models.Question {
	t.Helper()
	s := string(status)
	q, err := f.questions.UpdateQuestion(context.Background(), ta, id, &UpdateQuestionRequest{Status: &s})
	require.NoError(t, err)
	return q
}

// stored returns the class as persisted, without recomputed counters.
func (f fixture) stored(t *testing.T, id string) *models.Class {
	t.Helper()
	class, err := f.db.GetClass(context.Background(), id)
	require.NoError(t, err)
	return class
}

func requireKind(t *testing.T, want ErrorKind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, KindOf(err), "error: %v", err)
}
