package services

import (
	"bytes"
	"fmt"

	"biblio/internal/repositories"

	"github.com/xuri/excelize/v2"
)

// ExportSheetName is the single sheet the catalog is exported to.
const ExportSheetName = "Books"

var exportHeaders = []string{"ID", "Title", "Author", "Publication Date", "Category", "Description"}

// ExportService renders the catalog into a downloadable spreadsheet.
type ExportService struct {
	books repositories.BookRepository
}

// NewExportService creates a new ExportService.
func NewExportService(books repositories.BookRepository) *ExportService {
	return &ExportService{
		books: books,
	}
}

// BooksXLSX writes every book into an XLSX workbook with one "Books"
// sheet: a header row followed by one row per book.
func (s *ExportService) BooksXLSX() ([]byte, error) {
	books, err := s.books.GetAll(repositories.BookFilter{})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheetName); err != nil {
		return nil, fmt.Errorf("failed to name export sheet: %w", err)
	}

	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(ExportSheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header cell: %w", err)
		}
	}

	for row, book := range books {
		values := []interface{}{
			book.ID,
			book.Title,
			book.Author,
			book.PublicationDate.Format("2006-01-02"),
			book.Category.Name,
			book.Description,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(ExportSheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
