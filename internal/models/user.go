package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type User struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Email    string    `json:"email" gorm:"unique;not null"`
	Password string    `json:"-" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Todos []Todo `json:"todos,omitempty" gorm:"foreignKey:UserID"`
}

type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Public returns the externally visible representation of the user.
// The password hash never leaves the process.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID.String(), Email: u.Email}
}
