package database

import "plume/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.PasswordResetToken{},
		&models.BlacklistedToken{},
		&models.Tag{},
		&models.Post{},
		&models.Comment{},
		&models.Reaction{},
	}
}
