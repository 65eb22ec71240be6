package models

import "time"

// PasswordResetToken is a single-use credential emailed to a user who forgot
// their password. It is deleted once consumed.
type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Token     string    `gorm:"size:100;uniqueIndex;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

// IsValid reports whether the token can still be used at the given instant.
func (t *PasswordResetToken) IsValid(now time.Time) bool {
	return !now.After(t.ExpiresAt)
}
