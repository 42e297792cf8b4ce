package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	Email        string
	Name         *string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	CreatedAt    time.Time
}

// UserPublic is the part of a user that may leave the server.
type UserPublic struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  *string   `json:"name"`
}

func (u *User) Public() UserPublic {
	return UserPublic{ID: u.ID, Email: u.Email, Name: u.Name}
}
