package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	FullName string    `gorm:"size:120;not null"`
	Email    string    `gorm:"size:255;uniqueIndex;not null"`
	Password string    `gorm:"size:255;not null"`
	Role     string    `gorm:"size:20;not null;default:'guest'"` // guest, host, admin

	CreatedAt time.Time
	UpdatedAt time.Time
}
