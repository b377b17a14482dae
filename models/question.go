package models

import "time"

type QuestionStatus string

const (
	StatusPending   QuestionStatus = "pending"
	StatusAnswered  QuestionStatus = "answered"
	StatusImportant QuestionStatus = "important"
)

func (s QuestionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAnswered, StatusImportant:
		return true
	}
	return false
}

// PendingLike reports whether a question in this status still needs attention.
// Important questions count as pending.
func (s QuestionStatus) PendingLike() bool {
	return s == StatusPending || s == StatusImportant
}

type Question struct {
	ID        string         `json:"_id" gorm:"type:uuid;primaryKey" bson:"_id"`
	Text      string         `json:"text" gorm:"not null" bson:"text"`
	Author    string         `json:"author" gorm:"not null" bson:"author"`
	AuthorID  string         `json:"authorId" gorm:"not null" bson:"authorId"`
	ClassID   string         `json:"classId" gorm:"type:uuid;not null;index:idx_questions_class_state,priority:1;index:idx_questions_class_created,priority:1" bson:"classId"`
	ClassName string         `json:"className" gorm:"not null" bson:"className"`
	Status    QuestionStatus `json:"status" gorm:"not null;default:'pending';index:idx_questions_class_state,priority:3" bson:"status"`
	Deleted   bool           `json:"deleted" gorm:"not null;default:false;index:idx_questions_class_state,priority:2" bson:"deleted"`
	CreatedAt time.Time      `json:"createdAt" gorm:"index:idx_questions_class_created,priority:2,sort:desc" bson:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" bson:"updatedAt"`

	// Class is only populated on responses that expand the class reference.
	Class *ClassRef `json:"class,omitempty" gorm:"-" bson:"-"`
}

// QuestionStats is the per-class status breakdown.
type QuestionStats struct {
	Total        int64 `json:"total"`
	Pending      int64 `json:"pending"`
	Answered     int64 `json:"answered"`
	Important    int64 `json:"important"`
	Deleted      int64 `json:"deleted"`
	PendingTotal int64 `json:"pendingTotal"`
}

// Active is the number of questions that have not been soft-deleted.
func (s QuestionStats) Active() int64 {
	return s.Total - s.Deleted
}

// Tally adds q to the stats.
func (s *QuestionStats) Tally(q Question) {
	s.Total++
	if q.Deleted {
		s.Deleted++
		return
	}
	switch q.Status {
	case StatusPending:
		s.Pending++
	case StatusAnswered:
		s.Answered++
	case StatusImportant:
		s.Important++
	}
	if q.Status.PendingLike() {
		s.PendingTotal++
	}
}
