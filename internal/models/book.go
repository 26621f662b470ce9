package models

import (
	"time"

	"gorm.io/gorm"
)

// Book represents a catalog entry. The (title, category_id) pair is
// unique; the ingestion workflow upserts on that key.
type Book struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Title           string    `json:"title" gorm:"type:varchar(255);uniqueIndex:idx_books_title_category" validate:"required,max=255"`
	Author          string    `json:"author" gorm:"type:varchar(255)" validate:"required,max=255"`
	PublicationDate time.Time `json:"publication_date"`
	CategoryID      string    `json:"category_id" gorm:"type:varchar(36);uniqueIndex:idx_books_title_category" validate:"required,uuid"`
	Category        Category  `json:"category" gorm:"foreignKey:CategoryID"`
	Description     string    `json:"description" gorm:"type:text"`
	gorm.Model                // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
