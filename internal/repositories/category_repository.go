package repositories

import "biblio/internal/models"

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	GetAll() ([]models.Category, error)
	GetByID(id string) (*models.Category, error)
	Create(category *models.Category) error
	// GetOrCreate resolves the category with the given name, creating
	// it if it does not exist yet.
	GetOrCreate(name string) (*models.Category, error)
}
