package repositories

import (
	"fmt"
	"time"

	"biblio/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMBookRepository is a GORM implementation of BookRepository.
type GORMBookRepository struct {
	db *gorm.DB
}

// NewGORMBookRepository creates a new instance of GORMBookRepository.
func NewGORMBookRepository(db *gorm.DB) *GORMBookRepository {
	return &GORMBookRepository{
		db: db,
	}
}

// GetAll retrieves books matching the filter, with their categories.
func (r *GORMBookRepository) GetAll(filter BookFilter) ([]models.Book, error) {
	query := r.db.Preload("Category")

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("title LIKE ? OR author LIKE ?", pattern, pattern)
	}
	if filter.CategoryID != "" {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	// The year bounds are inclusive; compare against date boundaries so
	// the filter works the same on SQLite and PostgreSQL.
	if filter.YearFrom > 0 {
		from := time.Date(filter.YearFrom, time.January, 1, 0, 0, 0, 0, time.UTC)
		query = query.Where("publication_date >= ?", from)
	}
	if filter.YearTo > 0 {
		to := time.Date(filter.YearTo+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		query = query.Where("publication_date < ?", to)
	}

	var books []models.Book
	if err := query.Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to get books: %w", err)
	}
	return books, nil
}

// GetByID retrieves a single book by its ID from the database.
func (r *GORMBookRepository) GetByID(id string) (*models.Book, error) {
	var book models.Book
	if err := r.db.Preload("Category").First(&book, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("book with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get book by ID %s: %w", id, err)
	}
	return &book, nil
}

// Create creates a new book in the database.
func (r *GORMBookRepository) Create(book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if err := r.db.Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// Update updates an existing book in the database.
func (r *GORMBookRepository) Update(book *models.Book) error {
	res := r.db.Omit("Category").Save(book)
	if res.Error != nil {
		return fmt.Errorf("failed to update book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("book with ID %s not found for update", book.ID)
	}
	return nil
}

// Delete deletes a book by its ID from the database.
func (r *GORMBookRepository) Delete(id string) error {
	res := r.db.Delete(&models.Book{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("book with ID %s not found for deletion", id)
	}
	return nil
}

// Upsert inserts the book, or overwrites the mutable fields of the row
// already holding its (title, category_id) key. The insert is guarded
// by the unique index rather than a prior read, so concurrent upserts
// of the same key converge on a single row. A soft-deleted occupant of
// the key is revived and reported as created.
func (r *GORMBookRepository) Upsert(book *models.Book) (bool, error) {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}

	res := r.db.Omit("Category").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}, {Name: "category_id"}},
		DoNothing: true,
	}).Create(book)
	if res.Error != nil {
		return false, fmt.Errorf("failed to upsert book: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// The key already exists: refresh the scraped fields on that row.
	// A soft-deleted row still occupies the unique index, so resolve
	// the occupant unscoped and revive it along with the refresh;
	// otherwise a deleted book would block re-ingestion of its key
	// forever.
	var existing models.Book
	if err := r.db.Unscoped().First(&existing, "title = ? AND category_id = ?", book.Title, book.CategoryID).Error; err != nil {
		return false, fmt.Errorf("failed to load existing book: %w", err)
	}
	revived := existing.DeletedAt.Valid

	err := r.db.Unscoped().Model(&models.Book{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"author":           book.Author,
			"publication_date": book.PublicationDate,
			"description":      book.Description,
			"deleted_at":       nil,
		}).Error
	if err != nil {
		return false, fmt.Errorf("failed to update existing book: %w", err)
	}

	var reloaded models.Book
	if err := r.db.First(&reloaded, "id = ?", existing.ID).Error; err != nil {
		return false, fmt.Errorf("failed to reload upserted book: %w", err)
	}
	*book = reloaded
	return revived, nil
}
