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

type ClassService struct {
	classes   store.ClassStore
	questions store.QuestionStore

	// spawn runs fire-and-forget work off the request path.
	spawn func(fn func())
}

func NewClassService(classes store.ClassStore, questions store.QuestionStore) *ClassService {
	return &ClassService{
		classes:   classes,
		questions: questions,
		spawn:     func(fn func()) { go fn() },
	}
}

// CreateClassRequest is validated by CreateClass after the role check.
type CreateClassRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
}

type UpdateClassRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Subject     *string `json:"subject"`
}

type ListClassesQuery struct {
	Search string `form:"search"`
}

func (s *ClassService) CreateClass(ctx context.Context, p models.Principal, req *CreateClassRequest) (*models.Class, error) {
	if !p.IsTeacher() {
		return nil, forbidden("Only teachers can create classes")
	}

	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	subject := strings.TrimSpace(req.Subject)
	if name == "" || description == "" || subject == "" {
		return nil, invalidArgument("Name, description, and subject are required")
	}

	if err := s.checkNameAvailable(ctx, name, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	class := models.Class{
		ID:            uuid.NewString(),
		Name:          name,
		NameKey:       models.ClassNameKey(name),
		Description:   description,
		Subject:       subject,
		CreatedBy:     p.ID,
		CreatedByName: p.Name,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.classes.CreateClass(ctx, &class); err != nil {
		return nil, internal(err)
	}

	log.Printf("[CLASS] %s created class %s (%q)", p.ID, class.ID, class.Name)
	return &class, nil
}

func (s *ClassService) checkNameAvailable(ctx context.Context, name, excludeID string) error {
	_, err := s.classes.FindActiveByName(ctx, name, excludeID)
	switch {
	case err == nil:
		return conflict("A class with this name already exists")
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return internal(err)
	}
}

func (s *ClassService) ListClasses(ctx context.Context, _ models.Principal, q ListClassesQuery) ([]models.Class, error) {
	classes, err := s.classes.ListActiveClasses(ctx, store.ClassFilter{Search: strings.TrimSpace(q.Search)})
	if err != nil {
		return nil, internal(err)
	}
	return s.withCounts(ctx, classes)
}

func (s *ClassService) ListMyClasses(ctx context.Context, p models.Principal) ([]models.Class, error) {
	if !p.IsTeacher() {
		return nil, forbidden("Only teachers can access this endpoint")
	}
	classes, err := s.classes.ListActiveClasses(ctx, store.ClassFilter{CreatedBy: p.ID})
	if err != nil {
		return nil, internal(err)
	}
	return s.withCounts(ctx, classes)
}

// withCounts replaces the stored counters with values computed from the
// question collection.
func (s *ClassService) withCounts(ctx context.Context, classes []models.Class) ([]models.Class, error) {
	for i := range classes {
		stats, err := s.questions.CountQuestions(ctx, classes[i].ID)
		if err != nil {
			return nil, internal(err)
		}
		classes[i].TotalQuestions = stats.Total
		classes[i].ActiveQuestions = stats.Active()
	}
	return classes, nil
}

func (s *ClassService) GetClass(ctx context.Context, _ models.Principal, id string) (*models.Class, error) {
	if !validID(id) {
		return nil, invalidArgument("Invalid class ID format")
	}

	class, err := s.classes.GetClass(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Class not found")
	}
	if err != nil {
		return nil, internal(err)
	}
	if !class.IsActive {
		return nil, notFound("Class is not active")
	}

	stats, err := s.questions.CountQuestions(ctx, class.ID)
	if err != nil {
		return nil, internal(err)
	}
	class.TotalQuestions = stats.Total
	class.ActiveQuestions = stats.Active()

	counters := store.Counters{Total: stats.Total, Active: stats.Active()}
	s.spawn(func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.classes.SetCounters(bg, id, counters); err != nil {
			metrics.CounterWriteFailures.Inc()
			log.Printf("[CLASS] refreshing counters of %s: %v", id, err)
		}
	})

	return class, nil
}

// loadOwned returns the class if p is the teacher who created it.
func (s *ClassService) loadOwned(ctx context.Context, p models.Principal, id, action string) (*models.Class, error) {
	if !validID(id) {
		return nil, invalidArgument("Invalid class ID format")
	}
	class, err := s.classes.GetClass(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Class not found")
	}
	if err != nil {
		return nil, internal(err)
	}
	if !p.IsTeacher() || class.CreatedBy != p.ID {
		return nil, forbidden("Only the class creator can " + action + " this class")
	}
	return class, nil
}

func (s *ClassService) UpdateClass(ctx context.Context, p models.Principal, id string, req *UpdateClassRequest) (*models.Class, error) {
	if _, err := s.loadOwned(ctx, p, id, "update"); err != nil {
		return nil, err
	}

	upd := store.ClassUpdate{UpdatedAt: time.Now().UTC()}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalidArgument("Class name cannot be empty")
		}
		if err := s.checkNameAvailable(ctx, name, id); err != nil {
			return nil, err
		}
		upd.Name = &name
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			return nil, invalidArgument("Description cannot be empty")
		}
		upd.Description = &description
	}
	if req.Subject != nil {
		subject := strings.TrimSpace(*req.Subject)
		if subject == "" {
			return nil, invalidArgument("Subject cannot be empty")
		}
		upd.Subject = &subject
	}

	class, err := s.classes.UpdateClass(ctx, id, upd)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Class not found")
	}
	if err != nil {
		return nil, internal(err)
	}
	return class, nil
}

// DeactivateClass soft-deletes the class. Its questions are left as they are.
func (s *ClassService) DeactivateClass(ctx context.Context, p models.Principal, id string) (*models.Class, error) {
	if _, err := s.loadOwned(ctx, p, id, "deactivate"); err != nil {
		return nil, err
	}

	inactive := false
	class, err := s.classes.UpdateClass(ctx, id, store.ClassUpdate{IsActive: &inactive, UpdatedAt: time.Now().UTC()})
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Class not found")
	}
	if err != nil {
		return nil, internal(err)
	}

	log.Printf("[CLASS] %s deactivated class %s", p.ID, id)
	return class, nil
}
