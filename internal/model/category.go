package model

import "time"

// Category groups chores by area (kitchen, garden, pets, etc.).
type Category struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Definitions []Definition `gorm:"foreignKey:CategoryID"`
}
