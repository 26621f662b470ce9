package repositories

import "biblio/internal/models"

// BookFilter narrows a book listing. Zero values mean "no constraint".
type BookFilter struct {
	Search     string // matches title or author, substring
	CategoryID string
	YearFrom   int // inclusive publication year lower bound
	YearTo     int // inclusive publication year upper bound
}

// BookRepository defines the interface for book data access.
type BookRepository interface {
	GetAll(filter BookFilter) ([]models.Book, error)
	GetByID(id string) (*models.Book, error)
	Create(book *models.Book) error
	Update(book *models.Book) error
	Delete(id string) error
	// Upsert inserts the book or, when a row with the same
	// (title, category_id) already exists, overwrites its author,
	// publication date and description. Returns true when a new row
	// was inserted.
	Upsert(book *models.Book) (bool, error)
}
