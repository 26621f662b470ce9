package handlers

import (
	"errors"
	"log"

	"biblio/internal/models"
	"biblio/internal/repositories"
	"biblio/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CatalogHandler handles the public, read-only catalog routes.
type CatalogHandler struct {
	catalog *services.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
	}
}

// RegisterRoutes registers the catalog read routes with the Fiber app.
func (h *CatalogHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/categories", h.HandleListCategories)
	router.Get("/categories/:id/books", h.HandleBooksByCategory)
	router.Get("/books", h.HandleListBooks)
}

// CategoryView is the serialized category shape.
type CategoryView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BookView is the serialized book shape, category nested, date as
// YYYY-MM-DD.
type BookView struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Author          string       `json:"author"`
	PublicationDate string       `json:"publication_date"`
	Category        CategoryView `json:"category"`
	Description     string       `json:"description"`
}

func newCategoryView(category models.Category) CategoryView {
	return CategoryView{
		ID:   category.ID,
		Name: category.Name,
	}
}

func newBookView(book models.Book) BookView {
	return BookView{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		PublicationDate: book.PublicationDate.Format("2006-01-02"),
		Category:        newCategoryView(book.Category),
		Description:     book.Description,
	}
}

func newBookViews(books []models.Book) []BookView {
	views := make([]BookView, 0, len(books))
	for _, book := range books {
		views = append(views, newBookView(book))
	}
	return views
}

// HandleListCategories retrieves all categories.
func (h *CatalogHandler) HandleListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.Categories()
	if err != nil {
		log.Printf("Error getting categories: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve categories",
			"error":   err.Error(),
		})
	}

	views := make([]CategoryView, 0, len(categories))
	for _, category := range categories {
		views = append(views, newCategoryView(category))
	}
	return c.JSON(views)
}

// HandleListBooks retrieves books, optionally narrowed by a text
// search (title or author), a category and an inclusive year range.
func (h *CatalogHandler) HandleListBooks(c *fiber.Ctx) error {
	filter := repositories.BookFilter{
		Search:     c.Query("search"),
		CategoryID: c.Query("category_id"),
		YearFrom:   c.QueryInt("year_from"),
		YearTo:     c.QueryInt("year_to"),
	}

	books, err := h.catalog.Books(filter)
	if err != nil {
		log.Printf("Error getting books: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve books",
			"error":   err.Error(),
		})
	}
	return c.JSON(newBookViews(books))
}

// HandleBooksByCategory retrieves the books of one category.
func (h *CatalogHandler) HandleBooksByCategory(c *fiber.Ctx) error {
	categoryID := c.Params("id")
	books, err := h.catalog.BooksByCategory(categoryID)
	if err != nil {
		log.Printf("Error getting books for category %s: %v", categoryID, err)
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Category not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve books",
			"error":   err.Error(),
		})
	}
	return c.JSON(newBookViews(books))
}
