package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an operator account. Authentication is deliberately thin: a
// bcrypt credential check that issues JWTs; everything else about the
// operator lives in the UI.
type User struct {
	gorm.Model
	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"not null;uniqueIndex" json:"email"`
	Password     string `gorm:"not null" json:"-"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
	TokenVersion int    `gorm:"default:0" json:"-"`
}

// RefreshToken stores issued refresh tokens so they can be revoked.
type RefreshToken struct {
	gorm.Model
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Token     string    `gorm:"not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`
}
