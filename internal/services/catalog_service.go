package services

import (
	"fmt"

	"biblio/internal/models"
	"biblio/internal/repositories"
)

// CatalogService handles business logic for categories and books.
type CatalogService struct {
	books      repositories.BookRepository
	categories repositories.CategoryRepository
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(books repositories.BookRepository, categories repositories.CategoryRepository) *CatalogService {
	return &CatalogService{
		books:      books,
		categories: categories,
	}
}

// Categories retrieves all categories.
func (s *CatalogService) Categories() ([]models.Category, error) {
	return s.categories.GetAll()
}

// CreateCategory creates a new category.
func (s *CatalogService) CreateCategory(category *models.Category) error {
	return s.categories.Create(category)
}

// Books retrieves books matching the filter.
func (s *CatalogService) Books(filter repositories.BookFilter) ([]models.Book, error) {
	return s.books.GetAll(filter)
}

// BooksByCategory retrieves the books of one category.
func (s *CatalogService) BooksByCategory(categoryID string) ([]models.Book, error) {
	if _, err := s.categories.GetByID(categoryID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return s.books.GetAll(repositories.BookFilter{CategoryID: categoryID})
}

// GetBook retrieves a single book by its ID.
func (s *CatalogService) GetBook(id string) (*models.Book, error) {
	book, err := s.books.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return book, nil
}

// CreateBook creates a book after checking its category exists.
func (s *CatalogService) CreateBook(book *models.Book) error {
	category, err := s.categories.GetByID(book.CategoryID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err := s.books.Create(book); err != nil {
		return err
	}
	book.Category = *category
	return nil
}

// UpdateBook updates an existing book after checking its category exists.
func (s *CatalogService) UpdateBook(book *models.Book) error {
	category, err := s.categories.GetByID(book.CategoryID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err := s.books.Update(book); err != nil {
		return err
	}
	book.Category = *category
	return nil
}

// DeleteBook deletes a book by its ID.
func (s *CatalogService) DeleteBook(id string) error {
	if err := s.books.Delete(id); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return nil
}
