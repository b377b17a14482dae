package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidyavichar/metrics"
	"vidyavichar/models"
	"vidyavichar/store"
)

const (
	statusFilterAll     = "all"
	statusFilterDeleted = "deleted"
)

type QuestionService struct {
	classes   store.ClassStore
	questions store.QuestionStore

	// dedupeIgnoreDeleted lets a deleted question's text be posted again.
	// Off by default: any earlier question with the same text blocks it.
	dedupeIgnoreDeleted bool
}

type QuestionOption func(*QuestionService)

func WithDedupeIgnoringDeleted(ignore bool) QuestionOption {
	return func(s *QuestionService) { s.dedupeIgnoreDeleted = ignore }
}

func NewQuestionService(classes store.ClassStore, questions store.QuestionStore, opts ...QuestionOption) *QuestionService {
	s := &QuestionService{classes: classes, questions: questions}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateQuestionRequest struct {
	Text    string `json:"text"`
	ClassID string `json:"classId"`
}

type ListQuestionsQuery struct {
	ClassID        string `form:"classId"`
	Status         string `form:"status"`
	IncludeDeleted string `form:"includeDeleted"`
}

// UpdateQuestionRequest only carries status: text, author and class are
// fixed once a question is posted.
type UpdateQuestionRequest struct {
	Status *string `json:"status"`
}

func (s *QuestionService) CreateQuestion(ctx context.Context, p models.Principal, req *CreateQuestionRequest) (*models.Question, error) {
	text := strings.TrimSpace(req.Text)
	classID := strings.TrimSpace(req.ClassID)
	if text == "" || classID == "" {
		return nil, invalidArgument("Question text and class ID are required")
	}
	if !validID(classID) {
		return nil, invalidArgument("Invalid class ID format")
	}

	class, err := s.classes.GetClass(ctx, classID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, internal(err)
	}
	if class == nil || !class.IsActive {
		return nil, invalidArgument("Invalid or inactive class")
	}

	_, err = s.questions.FindByText(ctx, classID, text, !s.dedupeIgnoreDeleted)
	if err == nil {
		return nil, conflict("Similar question already posted in this class")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, internal(err)
	}

	now := time.Now().UTC()
	q := models.Question{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    p.Name,
		AuthorID:  p.ID,
		ClassID:   classID,
		ClassName: class.Name,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.questions.CreateQuestion(ctx, &q); err != nil {
		return nil, internal(err)
	}
	metrics.QuestionsCreated.Inc()

	s.adjustCounters(ctx, classID, store.CounterDelta{Total: 1, Pending: 1})
	return &q, nil
}

// adjustCounters applies delta to the class counters. The question write
// has already happened, so failures are logged and left to the reconciler.
func (s *QuestionService) adjustCounters(ctx context.Context, classID string, delta store.CounterDelta) {
	if delta.IsZero() {
		return
	}
	if err := s.classes.IncrementCounters(ctx, classID, delta); err != nil {
		metrics.CounterWriteFailures.Inc()
		log.Printf("[QUESTION] adjusting counters of class %s by %+v: %v", classID, delta, err)
	}
}

// pendingDelta is the change to a class's pending counter when a live
// question moves from one status to another.
func pendingDelta(from, to models.QuestionStatus) int64 {
	switch {
	case from.PendingLike() && !to.PendingLike():
		return -1
	case !from.PendingLike() && to.PendingLike():
		return 1
	default:
		return 0
	}
}

func (s *QuestionService) ListQuestions(ctx context.Context, _ models.Principal, q ListQuestionsQuery) ([]models.Question, error) {
	if q.ClassID == "" {
		return nil, invalidArgument("Class ID is required")
	}
	if !validID(q.ClassID) {
		return nil, invalidArgument("Invalid class ID format")
	}

	filter := store.QuestionFilter{ClassID: q.ClassID}
	deleted, live := true, false
	switch {
	case q.Status == statusFilterDeleted:
		filter.Deleted = &deleted
	case q.IncludeDeleted == "true":
	case q.Status != "" && q.Status != statusFilterAll:
		filter.Status = models.QuestionStatus(q.Status)
		filter.Deleted = &live
	default:
		filter.Deleted = &live
	}

	questions, err := s.questions.ListQuestions(ctx, filter)
	if err != nil {
		return nil, internal(err)
	}
	if len(questions) == 0 {
		return questions, nil
	}

	ref := s.classRef(ctx, q.ClassID)
	for i := range questions {
		questions[i].Class = ref
	}
	return questions, nil
}

// classRef returns the expanded class reference, or nil if the class can no
// longer be loaded. Questions are never revalidated against their class.
func (s *QuestionService) classRef(ctx context.Context, classID string) *models.ClassRef {
	class, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[QUESTION] loading class %s: %v", classID, err)
		}
		return nil
	}
	return class.Ref()
}

func (s *QuestionService) UpdateQuestion(ctx context.Context, _ models.Principal, id string, req *UpdateQuestionRequest) (*models.Question, error) {
	if !validID(id) {
		return nil, invalidArgument("Invalid question ID format")
	}

	if req.Status == nil {
		q, err := s.questions.GetQuestion(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Question not found")
		}
		if err != nil {
			return nil, internal(err)
		}
		q.Class = s.classRef(ctx, q.ClassID)
		return q, nil
	}

	status := models.QuestionStatus(*req.Status)
	if !status.Valid() {
		return nil, invalidArgument("Invalid question status")
	}

	before, after, err := s.questions.TransitionStatus(ctx, id, status)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Question not found")
	}
	if err != nil {
		return nil, internal(err)
	}

	if before.Status != status {
		metrics.QuestionTransitions.WithLabelValues(string(before.Status), string(status)).Inc()
		// deleted questions are not counted as pending whatever their status
		if !before.Deleted {
			s.adjustCounters(ctx, before.ClassID, store.CounterDelta{Pending: pendingDelta(before.Status, status)})
		}
	}

	after.Class = s.classRef(ctx, after.ClassID)
	return after, nil
}

// DeleteQuestion soft-deletes a question. Deleting it again changes nothing.
func (s *QuestionService) DeleteQuestion(ctx context.Context, id string) (*models.Question, error) {
	if !validID(id) {
		return nil, invalidArgument("Invalid question ID format")
	}

	before, after, err := s.questions.MarkDeleted(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, notFound("Question not found")
	case errors.Is(err, store.ErrAlreadyDeleted):
		after.Class = s.classRef(ctx, after.ClassID)
		return after, nil
	case err != nil:
		return nil, internal(err)
	}

	metrics.QuestionsDeleted.Inc()
	if before.Status.PendingLike() {
		s.adjustCounters(ctx, before.ClassID, store.CounterDelta{Pending: -1})
	}

	after.Class = s.classRef(ctx, after.ClassID)
	return after, nil
}

// ClearClassQuestions soft-deletes every live question of a class.
func (s *QuestionService) ClearClassQuestions(ctx context.Context, p models.Principal, classID string) (int, error) {
	if !p.IsTeacher() {
		return 0, forbidden("Only teachers can clear questions")
	}
	if !validID(classID) {
		return 0, invalidArgument("Invalid class ID format")
	}
	if _, err := s.classes.GetClass(ctx, classID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, notFound("Class not found")
		}
		return 0, internal(err)
	}

	live := false
	questions, err := s.questions.ListQuestions(ctx, store.QuestionFilter{ClassID: classID, Deleted: &live})
	if err != nil {
		return 0, internal(err)
	}

	cleared := 0
	for _, q := range questions {
		if _, err := s.DeleteQuestion(ctx, q.ID); err != nil {
			return cleared, err
		}
		cleared++
	}

	log.Printf("[QUESTION] %s cleared %d questions in class %s", p.ID, cleared, classID)
	return cleared, nil
}

func (s *QuestionService) GetClassQuestionStats(ctx context.Context, classID string) (models.QuestionStats, error) {
	if !validID(classID) {
		return models.QuestionStats{}, invalidArgument("Invalid class ID format")
	}
	stats, err := s.questions.CountQuestions(ctx, classID)
	if err != nil {
		return models.QuestionStats{}, internal(err)
	}
	return stats, nil
}
