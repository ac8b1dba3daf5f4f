package database

import "snapfeed/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Post{},
		&models.Media{},
		&models.Mention{},
		&models.Hashtag{},
		&models.Like{},
	}
}
