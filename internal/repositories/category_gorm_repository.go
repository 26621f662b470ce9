package repositories

import (
	"fmt"

	"biblio/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMCategoryRepository is a GORM implementation of CategoryRepository.
type GORMCategoryRepository struct {
	db *gorm.DB
}

// NewGORMCategoryRepository creates a new instance of GORMCategoryRepository.
func NewGORMCategoryRepository(db *gorm.DB) *GORMCategoryRepository {
	return &GORMCategoryRepository{
		db: db,
	}
}

// GetAll retrieves all categories from the database.
func (r *GORMCategoryRepository) GetAll() ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to get all categories: %w", err)
	}
	return categories, nil
}

// GetByID retrieves a single category by its ID from the database.
func (r *GORMCategoryRepository) GetByID(id string) (*models.Category, error) {
	var category models.Category
	if err := r.db.First(&category, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("category with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get category by ID %s: %w", id, err)
	}
	return &category, nil
}

// Create creates a new category in the database.
func (r *GORMCategoryRepository) Create(category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if err := r.db.Create(category).Error; err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// GetOrCreate resolves the category with the given name, creating it
// if absent. Losing a concurrent create race on the unique name index
// is handled by re-reading the row the winner inserted.
func (r *GORMCategoryRepository) GetOrCreate(name string) (*models.Category, error) {
	category := models.Category{Name: name}
	err := r.db.Where("name = ?", name).
		Attrs(models.Category{ID: uuid.New().String()}).
		FirstOrCreate(&category).Error
	if err == nil {
		return &category, nil
	}

	var existing models.Category
	if lookupErr := r.db.First(&existing, "name = ?", name).Error; lookupErr == nil {
		return &existing, nil
	}
	return nil, fmt.Errorf("failed to get or create category %s: %w", name, err)
}
