package services

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"biblio/internal/models"
	"biblio/internal/repositories"
	"biblio/pkg/events"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// ScrapedCategoryName is the sentinel category every auto-ingested
// book lands in, separate from manually curated entries.
const ScrapedCategoryName = "Scraped"

// unknownField is the fallback for fields the source page does not
// carry. Author is never extracted from the page.
const unknownField = "Unknown"

// ScrapeService implements the ingestion workflow: fetch a page,
// extract its heading and meta description, and upsert a book keyed on
// (title, "Scraped"). Repeated ingestion of the same page converges on
// a single row.
type ScrapeService struct {
	books      repositories.BookRepository
	categories repositories.CategoryRepository
	client     *resty.Client
	mqClient   *events.Client
}

// NewScrapeService creates a new ScrapeService. mqClient may be nil,
// in which case ingestion events are not published.
func NewScrapeService(books repositories.BookRepository, categories repositories.CategoryRepository, mqClient *events.Client) *ScrapeService {
	return &ScrapeService{
		books:      books,
		categories: categories,
		client: resty.New().
			SetTimeout(15 * time.Second).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)),
		mqClient: mqClient,
	}
}

// ScrapeBookInfo fetches url and saves (or refreshes) the book it
// describes. Returns the resulting book and whether a new row was
// created. Fetch failures surface as ErrFetch with the upstream
// status, parse failures as ErrScrape; there is no retry.
func (s *ScrapeService) ScrapeBookInfo(url string) (*models.Book, bool, error) {
	resp, err := s.client.R().Get(url)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.IsError() {
		return nil, false, fmt.Errorf("%w: unexpected status %s", ErrFetch, resp.Status())
	}

	title, description, err := ExtractBookInfo(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrScrape, err)
	}

	category, err := s.categories.GetOrCreate(ScrapedCategoryName)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve scraped category: %w", err)
	}

	book := &models.Book{
		Title:           title,
		Author:          unknownField,
		PublicationDate: time.Now().UTC().Truncate(24 * time.Hour),
		CategoryID:      category.ID,
		Description:     description,
	}

	created, err := s.books.Upsert(book)
	if err != nil {
		return nil, false, err
	}
	book.Category = *category

	s.publishIngested(book, created)

	return book, created, nil
}

func (s *ScrapeService) publishIngested(book *models.Book, created bool) {
	if s.mqClient == nil {
		log.Println("RabbitMQ client is not initialized. Skipping message publication.")
		return
	}

	payload := map[string]interface{}{
		"bookID":  book.ID,
		"title":   book.Title,
		"created": created,
	}
	if err := s.mqClient.PublishBookIngested(payload); err != nil {
		log.Printf("Warning: Failed to publish ingestion event for book %s: %v", book.ID, err)
	} else {
		log.Printf("Successfully published ingestion event for book %s", book.ID)
	}
}

// ExtractBookInfo pulls the first <h1> text and the content of
// <meta name="description"> out of an HTML document. A missing heading
// yields the "Unknown" sentinel, a missing meta element an empty
// description. No other fields are derived from the page.
func ExtractBookInfo(r io.Reader) (title, description string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", err
	}

	title = unknownField
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		title = strings.TrimSpace(h1.Text())
	}

	if meta := doc.Find(`meta[name="description"]`).First(); meta.Length() > 0 {
		if content, ok := meta.Attr("content"); ok {
			description = strings.TrimSpace(content)
		}
	}

	return title, description, nil
}
