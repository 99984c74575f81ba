package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/userapi/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.CacheEntry{},
	)
}

// SampleUsers are inserted by SeedData when their email is not yet taken.
func SampleUsers() []models.User {
	return []models.User{
		{Name: "张三", Email: "zhangsan@example.com", IsActive: true},
		{Name: "李四", Email: "lisi@example.com", IsActive: true},
	}
}

// SeedData populates the sample users. Existing rows are left untouched.
func SeedData(db *gorm.DB) error {
	users := SampleUsers()
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&users).Error
}
