// Package models contains data structures for the application's domain models.
package models

import "time"

// User represents an account on the blog.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Username    string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email       string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"size:128;not null" json:"-"`
	IsStaff     bool       `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser bool       `gorm:"not null;default:false" json:"-"`
	IsActive    bool       `gorm:"not null;default:true" json:"-"`
	LastLogin   *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
}

// CanAuthenticate reports whether the account may hold a session.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.IsActive
}
