package handlers

import (
	"errors"
	"log"
	"time"

	"biblio/internal/models"
	"biblio/internal/repositories"
	"biblio/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler handles the admin-only catalog management routes:
// book/category CRUD, XLSX export and scrape-based ingestion.
type AdminHandler struct {
	catalog  *services.CatalogService
	exporter *services.ExportService
	scraper  *services.ScrapeService
	validate *validator.Validate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(catalog *services.CatalogService, exporter *services.ExportService, scraper *services.ScrapeService) *AdminHandler {
	return &AdminHandler{
		catalog:  catalog,
		exporter: exporter,
		scraper:  scraper,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the admin routes. The router must already
// carry the auth and admin middleware.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/admin/books", h.HandleListBooks)
	router.Post("/admin/books", h.HandleCreateBook)
	router.Get("/admin/books/:id", h.HandleGetBook)
	router.Put("/admin/books/:id", h.HandleUpdateBook)
	router.Patch("/admin/books/:id", h.HandleUpdateBook)
	router.Delete("/admin/books/:id", h.HandleDeleteBook)
	router.Post("/admin/categories", h.HandleCreateCategory)
	router.Get("/export-books", h.HandleExportBooks)
	router.Post("/scrape-book-info", h.HandleScrapeBookInfo)
}

// BookRequest carries the writable book fields. On PATCH all fields
// are optional and merged over the stored row; PUT goes through the
// same merge.
type BookRequest struct {
	Title           string `json:"title" validate:"omitempty,max=255"`
	Author          string `json:"author" validate:"omitempty,max=255"`
	PublicationDate string `json:"publication_date" validate:"omitempty,datetime=2006-01-02"`
	CategoryID      string `json:"category_id" validate:"omitempty,uuid"`
	Description     string `json:"description"`
}

// HandleListBooks retrieves all books for the admin view.
func (h *AdminHandler) HandleListBooks(c *fiber.Ctx) error {
	books, err := h.catalog.Books(repositories.BookFilter{})
	if err != nil {
		log.Printf("Error getting books: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve books",
			"error":   err.Error(),
		})
	}
	return c.JSON(newBookViews(books))
}

// HandleGetBook retrieves a single book by its ID.
func (h *AdminHandler) HandleGetBook(c *fiber.Ctx) error {
	book, err := h.catalog.GetBook(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Book not found",
		})
	}
	return c.JSON(newBookView(*book))
}

// HandleCreateBook creates a new book.
func (h *AdminHandler) HandleCreateBook(c *fiber.Ctx) error {
	var req BookRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing book request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}
	if req.Title == "" || req.Author == "" || req.PublicationDate == "" || req.CategoryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "title, author, publication_date and category_id are required",
		})
	}

	publicationDate, _ := time.Parse("2006-01-02", req.PublicationDate)
	book := models.Book{
		Title:           req.Title,
		Author:          req.Author,
		PublicationDate: publicationDate,
		CategoryID:      req.CategoryID,
		Description:     req.Description,
	}
	if err := h.catalog.CreateBook(&book); err != nil {
		log.Printf("Error creating book: %v", err)
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Category not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create book",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(newBookView(book))
}

// HandleUpdateBook merges the provided fields into an existing book.
func (h *AdminHandler) HandleUpdateBook(c *fiber.Ctx) error {
	var req BookRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing book request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	book, err := h.catalog.GetBook(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Book not found",
		})
	}

	if req.Title != "" {
		book.Title = req.Title
	}
	if req.Author != "" {
		book.Author = req.Author
	}
	if req.PublicationDate != "" {
		book.PublicationDate, _ = time.Parse("2006-01-02", req.PublicationDate)
	}
	if req.CategoryID != "" {
		book.CategoryID = req.CategoryID
	}
	if req.Description != "" {
		book.Description = req.Description
	}

	if err := h.catalog.UpdateBook(book); err != nil {
		log.Printf("Error updating book %s: %v", book.ID, err)
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Category not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update book",
			"error":   err.Error(),
		})
	}
	return c.JSON(newBookView(*book))
}

// HandleDeleteBook deletes a book by its ID.
func (h *AdminHandler) HandleDeleteBook(c *fiber.Ctx) error {
	if err := h.catalog.DeleteBook(c.Params("id")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Book not found",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Book deleted",
	})
}

// CategoryRequest carries the writable category fields.
type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// HandleCreateCategory creates a new category.
func (h *AdminHandler) HandleCreateCategory(c *fiber.Ctx) error {
	var req CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing category request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	category := models.Category{Name: req.Name}
	if err := h.catalog.CreateCategory(&category); err != nil {
		log.Printf("Error creating category: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create category",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(newCategoryView(category))
}

// HandleExportBooks streams the whole catalog as an XLSX attachment.
func (h *AdminHandler) HandleExportBooks(c *fiber.Ctx) error {
	data, err := h.exporter.BooksXLSX()
	if err != nil {
		log.Printf("Error exporting books: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not export books",
			"error":   err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="books.xlsx"`)
	return c.Send(data)
}

// ScrapeRequest represents the request body for scrape-based ingestion.
type ScrapeRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// HandleScrapeBookInfo ingests book information from a URL, creating
// or refreshing the matching row under the "Scraped" category.
func (h *AdminHandler) HandleScrapeBookInfo(c *fiber.Ctx) error {
	var req ScrapeRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing scrape request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	book, created, err := h.scraper.ScrapeBookInfo(req.URL)
	if err != nil {
		log.Printf("Error scraping %s: %v", req.URL, err)
		if errors.Is(err, services.ErrFetch) || errors.Is(err, services.ErrScrape) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Error querying URL",
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not ingest book",
			"error":   err.Error(),
		})
	}

	action := "updated"
	if created {
		action = "created"
	}
	log.Printf("Book '%s' %s successfully.", book.Title, action)

	return c.JSON(fiber.Map{
		"message": "Book " + action + " successfully",
		"created": created,
		"book":    newBookView(*book),
	})
}
