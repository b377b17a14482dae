package models

import (
	"strings"
	"time"
)

type Class struct {
	ID               string    `json:"_id" gorm:"type:uuid;primaryKey" bson:"_id"`
	Name             string    `json:"name" gorm:"not null" bson:"name"`
	NameKey          string    `json:"-" gorm:"not null;index" bson:"name_ci"`
	Description      string    `json:"description" gorm:"not null" bson:"description"`
	Subject          string    `json:"subject" gorm:"not null" bson:"subject"`
	CreatedBy        string    `json:"createdBy" gorm:"not null;index" bson:"createdBy"`
	CreatedByName    string    `json:"createdByName" gorm:"not null" bson:"createdByName"`
	IsActive         bool      `json:"isActive" gorm:"not null;index" bson:"isActive"`
	TotalQuestions   int64     `json:"totalQuestions" gorm:"not null;default:0" bson:"totalQuestions"`
	ActiveQuestions  int64     `json:"activeQuestions" gorm:"not null;default:0" bson:"activeQuestions"`
	PendingQuestions int64     `json:"pendingQuestions" gorm:"not null;default:0" bson:"pendingQuestions"`
	CreatedAt        time.Time `json:"createdAt" gorm:"index" bson:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ClassRef is the expanded class reference attached to question responses.
type ClassRef struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
}

func (c *Class) Ref() *ClassRef {
	return &ClassRef{ID: c.ID, Name: c.Name, Subject: c.Subject}
}

// ClassNameKey returns the lookup key used for case-insensitive name uniqueness.
func ClassNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
