package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleTA      Role = "TA"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleTA:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"_id" gorm:"type:uuid;primaryKey" bson:"_id"`
	Name         string    `json:"name" gorm:"not null" bson:"name"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null" bson:"email"`
	PasswordHash []byte    `json:"-" gorm:"not null" bson:"passwordHash"`
	Role         Role      `json:"role" gorm:"not null" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Principal is the authenticated actor attached to a request.
type Principal struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	SessionID string `json:"-"`
}

func (p Principal) IsTeacher() bool { return p.Role == RoleTeacher }
