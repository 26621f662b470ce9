package models

import "gorm.io/gorm"

// Category is a catalog bucket for books. The "Scraped" category is
// created on demand by the ingestion workflow and houses every
// auto-ingested book.
type Category struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name       string `json:"name" gorm:"uniqueIndex;type:varchar(255)" validate:"required,max=255"`
	gorm.Model        // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
