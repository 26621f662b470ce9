package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"

	"biblio/internal/handlers"
	"biblio/internal/middleware"
	"biblio/internal/models"
	"biblio/internal/repositories"
	"biblio/internal/services"
	"biblio/pkg/events"
	"biblio/pkg/mailer"
	"biblio/pkg/resettoken"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "biblio.db")
	viper.SetDefault("JWT_SECRET", "change-me")
	viper.SetDefault("RESET_SECRET", "")
	viper.SetDefault("RESET_TOKEN_TTL", "24h")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("SMTP_HOST", "localhost")
	viper.SetDefault("SMTP_PORT", 25)
	viper.SetDefault("SMTP_USERNAME", "")
	viper.SetDefault("SMTP_PASSWORD", "")
	viper.SetDefault("MAIL_FROM", "noreply@localhost")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.AutomaticEnv() // Load environment variables

	appPort := viper.GetString("APP_PORT")

	// --- Initialize Database ---
	db, err := openDatabase(viper.GetString("DB_DRIVER"), viper.GetString("DB_DSN"))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Category{}, &models.Book{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Initialize RabbitMQ Client (optional) ---
	// Catalog events are published when a broker is configured; the
	// services treat a nil client as "events disabled".
	var mqClient *events.Client
	if rabbitMQURL := viper.GetString("RABBITMQ_URL"); rabbitMQURL != "" {
		mqClient, err = events.NewClient(events.Config{URL: rabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
	} else {
		log.Println("RABBITMQ_URL not set, catalog events disabled")
	}

	// --- Initialize Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	bookRepo := repositories.NewGORMBookRepository(db)

	seedAdmin(userRepo)

	// --- Initialize Services ---
	resetTTL := viper.GetDuration("RESET_TOKEN_TTL")
	resetSecret := viper.GetString("RESET_SECRET")
	if resetSecret == "" {
		// Reset tokens fall back to the JWT secret when no dedicated
		// secret is configured.
		resetSecret = viper.GetString("JWT_SECRET")
	}

	smtp := mailer.NewSMTPMailer(mailer.Config{
		Host:     viper.GetString("SMTP_HOST"),
		Port:     viper.GetInt("SMTP_PORT"),
		Username: viper.GetString("SMTP_USERNAME"),
		Password: viper.GetString("SMTP_PASSWORD"),
		From:     viper.GetString("MAIL_FROM"),
	})

	authService := services.NewAuthService(userRepo, viper.GetString("JWT_SECRET"))
	userService := services.NewUserService(userRepo)
	resetService := services.NewPasswordResetService(
		userRepo,
		resettoken.NewGenerator(resetSecret, resetTTL),
		smtp,
		viper.GetString("BASE_URL"),
	)
	catalogService := services.NewCatalogService(bookRepo, categoryRepo)
	exportService := services.NewExportService(bookRepo)
	scrapeService := services.NewScrapeService(bookRepo, categoryRepo, mqClient)

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService, resetService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	adminHandler := handlers.NewAdminHandler(catalogService, exportService, scrapeService)

	// --- Initialize Fiber App ---
	app := fiber.New()

	// --- Middleware ---
	app.Use(logger.New()) // Request logger

	// --- API Routes ---
	// Public routes: registration, token issuance, password reset and
	// catalog reads.
	authHandler.RegisterRoutes(app)
	userHandler.RegisterPublicRoutes(app)
	catalogHandler.RegisterRoutes(app)

	// Routes that require a bearer token.
	protected := app.Group("", middleware.AuthRequired(authService))
	userHandler.RegisterProtectedRoutes(protected)

	// Admin-only catalog management.
	admin := app.Group("", middleware.AuthRequired(authService), middleware.AdminRequired())
	adminHandler.RegisterRoutes(admin)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Start Catalog Event Consumer ---
	// The consumer logs ingestion events; downstream systems would hook
	// in here.
	if mqClient != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for catalog events...")
			messageHandler := func(msg amqp.Delivery) error {
				log.Printf("Received Catalog Event (Tag: %d): %s", msg.DeliveryTag, string(msg.Body))
				return nil
			}
			if consumerErr := mqClient.ConsumeCatalogEvents(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// openDatabase opens the configured relational store. SQLite is the
// default for local use; production deployments point DB_DRIVER at
// postgres.
func openDatabase(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
}

// seedAdmin bootstraps a staff account from ADMIN_* environment
// variables so a fresh deployment has a way into the admin routes.
// Does nothing when the variables are unset or the user already exists.
func seedAdmin(repo repositories.UserRepository) {
	username := viper.GetString("ADMIN_USERNAME")
	email := viper.GetString("ADMIN_EMAIL")
	password := viper.GetString("ADMIN_PASSWORD")
	if username == "" || email == "" || password == "" {
		return
	}

	if existing, err := repo.GetByUsername(username); err == nil && existing != nil {
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing admin password: %v", err)
		return
	}

	admin := models.User{
		Username:    username,
		Email:       email,
		Password:    string(hashedPassword),
		IsStaff:     true,
		IsSuperuser: true,
	}
	if err := repo.Create(&admin); err != nil {
		log.Printf("Error seeding admin user %s: %v", username, err)
	} else {
		log.Printf("Seeded admin user: %s (ID: %s)", username, admin.ID)
	}
}
