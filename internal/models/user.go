package models

import (
	"time"
)

// User is the single resource exposed by the API. Name and email are stored
// exactly as submitted.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name used by the SQL bootstrap scripts.
func (User) TableName() string {
	return "users"
}
