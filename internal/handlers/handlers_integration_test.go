package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"biblio/internal/handlers"
	"biblio/internal/middleware"
	"biblio/internal/models"
	"biblio/internal/repositories"
	"biblio/internal/services"
	"biblio/pkg/resettoken"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testBaseURL = "http://example.test"

// recordingMailer captures outgoing mail instead of delivering it.
type recordingMailer struct {
	lastTo   string
	lastBody string
	fail     bool
}

func (m *recordingMailer) Send(to, subject, body string) error {
	if m.fail {
		return fmt.Errorf("relay unavailable")
	}
	m.lastTo = to
	m.lastBody = body
	return nil
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	mail     *recordingMailer
	userRepo repositories.UserRepository
}

// setupApp wires a full application over in-memory SQLite, mirroring
// main.go minus the listener and the message broker.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Category{}, &models.Book{}); err != nil {
		t.Fatalf("failed to auto-migrate database: %v", err)
	}

	userRepo := repositories.NewGORMUserRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	bookRepo := repositories.NewGORMBookRepository(db)

	mail := &recordingMailer{}

	authService := services.NewAuthService(userRepo, jwtSecret)
	userService := services.NewUserService(userRepo)
	resetService := services.NewPasswordResetService(
		userRepo,
		resettoken.NewGenerator("test_reset_secret", time.Hour),
		mail,
		testBaseURL,
	)
	catalogService := services.NewCatalogService(bookRepo, categoryRepo)
	exportService := services.NewExportService(bookRepo)
	scrapeService := services.NewScrapeService(bookRepo, categoryRepo, nil)

	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService, resetService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	adminHandler := handlers.NewAdminHandler(catalogService, exportService, scrapeService)

	app := fiber.New()

	authHandler.RegisterRoutes(app)
	userHandler.RegisterPublicRoutes(app)
	catalogHandler.RegisterRoutes(app)

	protected := app.Group("", middleware.AuthRequired(authService))
	userHandler.RegisterProtectedRoutes(protected)

	admin := app.Group("", middleware.AuthRequired(authService), middleware.AdminRequired())
	adminHandler.RegisterRoutes(admin)

	return &testEnv{app: app, db: db, mail: mail, userRepo: userRepo}
}

// seedAdmin inserts a staff user directly and returns its access token.
func (e *testEnv) seedAdmin(t *testing.T) string {
	t.Helper()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("adminpass"), bcrypt.DefaultCost)
	admin := models.User{
		Username:    "admin",
		Email:       "admin@example.com",
		Password:    string(hashed),
		IsStaff:     true,
		IsSuperuser: true,
	}
	if err := e.userRepo.Create(&admin); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}
	return e.login(t, "admin", "adminpass")
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	err := json.NewDecoder(resp.Body).Decode(&out)
	assert.NoError(t, err)
	resp.Body.Close()
	return out
}

func (e *testEnv) register(t *testing.T, username, email, password string) map[string]interface{} {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/users/register", "", map[string]string{
		"username":  username,
		"email":     email,
		"password":  password,
		"password2": password,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody(t, resp)
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	token, _ := body["access"].(string)
	assert.NotEmpty(t, token)
	return token
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestAuthRegisterLoginAndInfo(t *testing.T) {
	env := setupApp(t)

	registerResp := env.register(t, "testuser", "test@example.com", "password123")
	assert.Equal(t, "User registered successfully", registerResp["message"])

	// Duplicate registration conflicts
	resp := env.request(t, http.MethodPost, "/users/register", "", map[string]string{
		"username":  "testuser",
		"email":     "test@example.com",
		"password":  "password123",
		"password2": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Mismatched password confirmation fails validation
	resp = env.request(t, http.MethodPost, "/users/register", "", map[string]string{
		"username":  "otheruser",
		"email":     "other@example.com",
		"password":  "password123",
		"password2": "different",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	token := env.login(t, "testuser", "password123")

	// Info requires a token
	resp = env.request(t, http.MethodGet, "/users/info", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/users/info", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	info := decodeBody(t, resp)
	assert.Equal(t, "testuser", info["username"])
	assert.Equal(t, "test@example.com", info["email"])
	// Regular callers never see the role flags
	_, hasFlags := info["is_staff"]
	assert.False(t, hasFlags)
}

func TestTokenRefresh(t *testing.T) {
	env := setupApp(t)
	env.register(t, "testuser", "test@example.com", "password123")

	resp := env.request(t, http.MethodPost, "/login", "", map[string]string{
		"username": "testuser",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	pair := decodeBody(t, resp)
	refresh, _ := pair["refresh"].(string)
	access, _ := pair["access"].(string)

	// A refresh token is not accepted as a bearer token
	resp = env.request(t, http.MethodGet, "/users/info", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// An access token is not accepted by the refresh endpoint
	resp = env.request(t, http.MethodPost, "/refresh", "", map[string]string{"refresh": access})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/refresh", "", map[string]string{"refresh": refresh})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	refreshed := decodeBody(t, resp)
	assert.NotEmpty(t, refreshed["access"])
	assert.NotEmpty(t, refreshed["refresh"])
}

func TestPasswordResetFlow(t *testing.T) {
	env := setupApp(t)
	env.register(t, "alice", "alice@example.com", "secret1")

	// Unknown email
	resp := env.request(t, http.MethodPost, "/users/reset-password", "", map[string]string{
		"email": "nobody@example.com",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Request a reset link
	resp = env.request(t, http.MethodPost, "/users/reset-password", "", map[string]string{
		"email": "alice@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "alice@example.com", env.mail.lastTo)

	// Pull the confirm path out of the mail body
	fields := strings.Fields(env.mail.lastBody)
	resetURL := fields[len(fields)-1]
	confirmPath := strings.TrimPrefix(resetURL, testBaseURL)
	assert.True(t, strings.HasPrefix(confirmPath, "/users/reset-password-confirm/"))

	// Confirm with a new password
	resp = env.request(t, http.MethodPost, confirmPath, "", map[string]string{
		"new_password": "newsecret",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Old password no longer works, the new one does
	resp = env.request(t, http.MethodPost, "/login", "", map[string]string{
		"username": "alice", "password": "secret1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
	env.login(t, "alice", "newsecret")

	// Replaying the consumed link fails with the collapsed message
	resp = env.request(t, http.MethodPost, confirmPath, "", map[string]string{
		"new_password": "thirdsecret",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Invalid or expired reset link", body["message"])

	// A mangled reference gets the same message as a bad token
	resp = env.request(t, http.MethodPost, "/users/reset-password-confirm/!!notbase64!!/sometoken", "", map[string]string{
		"new_password": "whatever",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "Invalid or expired reset link", body["message"])
}

func TestPasswordResetMailFailure(t *testing.T) {
	env := setupApp(t)
	env.register(t, "alice", "alice@example.com", "secret1")

	env.mail.fail = true
	resp := env.request(t, http.MethodPost, "/users/reset-password", "", map[string]string{
		"email": "alice@example.com",
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
}

func TestProfilePermissions(t *testing.T) {
	env := setupApp(t)

	aliceResp := env.register(t, "alice", "alice@example.com", "secret1")
	aliceUser := aliceResp["user"].(map[string]interface{})
	aliceID := aliceUser["id"].(string)

	env.register(t, "bob", "bob@example.com", "secret2")
	bobToken := env.login(t, "bob", "secret2")
	aliceToken := env.login(t, "alice", "secret1")

	// Bob cannot read alice's profile
	resp := env.request(t, http.MethodGet, "/users/profile/"+aliceID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Alice can read and update her own
	resp = env.request(t, http.MethodGet, "/users/profile/"+aliceID, aliceToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodPatch, "/users/profile/"+aliceID, aliceToken, map[string]string{
		"username": "alice2",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody(t, resp)
	assert.Equal(t, "alice2", updated["username"])
	assert.Equal(t, "alice@example.com", updated["email"])

	// An admin sees the role flags
	adminToken := env.seedAdmin(t)
	resp = env.request(t, http.MethodGet, "/users/profile/"+aliceID, adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	adminView := decodeBody(t, resp)
	assert.Equal(t, false, adminView["is_staff"])

	// Admin deletes the profile
	resp = env.request(t, http.MethodDelete, "/users/profile/"+aliceID, adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/users/profile/"+aliceID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := setupApp(t)
	env.register(t, "bob", "bob@example.com", "secret2")
	bobToken := env.login(t, "bob", "secret2")

	adminPaths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/admin/books"},
		{http.MethodGet, "/export-books"},
		{http.MethodPost, "/scrape-book-info"},
	}
	for _, p := range adminPaths {
		resp := env.request(t, p.method, p.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, p.path)
		resp.Body.Close()

		resp = env.request(t, p.method, p.path, bobToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, p.path)
		resp.Body.Close()
	}
}

func TestAdminBookCRUD(t *testing.T) {
	env := setupApp(t)
	adminToken := env.seedAdmin(t)

	// Create a category first
	resp := env.request(t, http.MethodPost, "/admin/categories", adminToken, map[string]string{
		"name": "Sci-Fi",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	category := decodeBody(t, resp)
	categoryID := category["id"].(string)

	// Create
	resp = env.request(t, http.MethodPost, "/admin/books", adminToken, map[string]string{
		"title":            "Dune",
		"author":           "Frank Herbert",
		"publication_date": "1965-08-01",
		"category_id":      categoryID,
		"description":      "Sci-fi classic",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	book := decodeBody(t, resp)
	bookID := book["id"].(string)
	assert.Equal(t, "Dune", book["title"])

	// Creating with a missing field fails
	resp = env.request(t, http.MethodPost, "/admin/books", adminToken, map[string]string{
		"title": "No Author",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Creating under an unknown category fails
	resp = env.request(t, http.MethodPost, "/admin/books", adminToken, map[string]string{
		"title":            "Orphan",
		"author":           "Nobody",
		"publication_date": "2000-01-01",
		"category_id":      "3e2a3b44-95c5-4c9e-8f5e-111111111111",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Partial update
	resp = env.request(t, http.MethodPatch, "/admin/books/"+bookID, adminToken, map[string]string{
		"description": "revised",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decodeBody(t, resp)
	assert.Equal(t, "revised", patched["description"])
	assert.Equal(t, "Dune", patched["title"])

	// Read back through the public listing with the year filter
	resp = env.request(t, http.MethodGet, "/books?year_from=1960&year_to=1970", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	assert.Len(t, listed, 1)
	assert.Equal(t, "Dune", listed[0]["title"])

	// Outside the range the listing is empty
	resp = env.request(t, http.MethodGet, "/books?year_from=1970&year_to=1980", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	listed = nil
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	assert.Len(t, listed, 0)

	// Books by category
	resp = env.request(t, http.MethodGet, "/categories/"+categoryID+"/books", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	listed = nil
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	assert.Len(t, listed, 1)

	// Delete
	resp = env.request(t, http.MethodDelete, "/admin/books/"+bookID, adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/admin/books/"+bookID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestScrapeAndExport(t *testing.T) {
	env := setupApp(t)
	adminToken := env.seedAdmin(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta name="description" content="Sci-fi classic"></head><body><h1>Dune</h1></body></html>`)
	}))
	defer upstream.Close()

	// First ingestion creates the book
	resp := env.request(t, http.MethodPost, "/scrape-book-info", adminToken, map[string]string{
		"url": upstream.URL,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["created"])
	book := body["book"].(map[string]interface{})
	assert.Equal(t, "Dune", book["title"])
	assert.Equal(t, "Unknown", book["author"])
	assert.Equal(t, "Sci-fi classic", book["description"])
	assert.Equal(t, "Scraped", book["category"].(map[string]interface{})["name"])

	// Second ingestion converges on the same row
	resp = env.request(t, http.MethodPost, "/scrape-book-info", adminToken, map[string]string{
		"url": upstream.URL,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, false, body["created"])

	// A dead upstream is a 400, not a 500
	resp = env.request(t, http.MethodPost, "/scrape-book-info", adminToken, map[string]string{
		"url": "http://127.0.0.1:1/nope",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Export carries the spreadsheet content type and attachment name
	resp = env.request(t, http.MethodGet, "/export-books", adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "books.xlsx")
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NoError(t, err)
	assert.NotEmpty(t, data)
}
