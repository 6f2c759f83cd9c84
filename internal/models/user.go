// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultUserStatus is assigned to every account at signup.
const DefaultUserStatus = "User"

// User represents a registered account.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	Status    string         `gorm:"not null;default:User" json:"status"`
	Posts     []Post         `gorm:"foreignKey:UserID" json:"-"`
	PostIDs   []uint         `gorm:"-" json:"posts"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
