package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gopkg.in/gomail.v2"

	"github.com/nplusone-fashion/fulfillment-service/internal/config"
	"github.com/nplusone-fashion/fulfillment-service/internal/courier"
	"github.com/nplusone-fashion/fulfillment-service/internal/events"
	"github.com/nplusone-fashion/fulfillment-service/internal/handlers"
	"github.com/nplusone-fashion/fulfillment-service/internal/inventory"
	"github.com/nplusone-fashion/fulfillment-service/internal/notify"
	"github.com/nplusone-fashion/fulfillment-service/internal/payment"
	"github.com/nplusone-fashion/fulfillment-service/internal/repository"
	"github.com/nplusone-fashion/fulfillment-service/internal/service"
)

func main() {
	log.Println("Fulfillment service starting...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load error: %v", err)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}
	defer db.Close()

	courierClient, err := courier.NewClient(cfg.CourierBaseURL, cfg.CourierToken, cfg.CourierSecret, cfg.CourierPickupID, nil)
	if err != nil {
		log.Fatalf("Courier client error: %v", err)
	}

	verifier, err := payment.NewVerifier(cfg.PaymentSecret)
	if err != nil {
		log.Fatalf("Payment verifier error: %v", err)
	}

	// Event publishing is best-effort; a broker outage must not keep
	// the storefront from taking orders.
	var publisher *events.Publisher
	rabbitClient := events.NewRabbitMQClient(events.RabbitMQConfig{
		URL:      cfg.RabbitMQURL(),
		Exchange: cfg.RabbitMQExchange,
	})
	if err := rabbitClient.Connect(); err != nil {
		log.Printf("RabbitMQ unavailable, order events disabled: %v", err)
	} else {
		publisher = events.NewPublisher(rabbitClient)
		defer rabbitClient.Close()
	}

	var mailSender notify.MailSender
	if cfg.SMTPHost != "" && cfg.SMTPUser != "" && cfg.SMTPPass != "" {
		mailSender = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	} else {
		log.Println("SMTP credentials missing, confirmation emails disabled")
	}

	// Dependency injection
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	adjuster := inventory.NewAdjuster(productRepo)
	dispatcher := notify.NewDispatcher(mailSender, notificationRepo, cfg.MailFrom)
	fulfillment := service.NewFulfillmentService(orderRepo, adjuster, courierClient, verifier, dispatcher, publisher)

	orderHandler := handlers.NewOrderHandler(fulfillment, courierClient)
	adminHandler := handlers.NewAdminHandler(fulfillment, courierClient)

	app := setupFiberApp()
	setupRoutes(app, orderHandler, adminHandler)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Fulfillment service shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Fulfillment service listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server start error: %v", err)
	}
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("database open error: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database ping error: %v", err)
	}

	log.Printf("Database connection established: %s", cfg.DBName)
	return db, nil
}

func setupFiberApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Fulfillment Service v1.0",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	return app
}

func setupRoutes(app *fiber.App, orderHandler *handlers.OrderHandler, adminHandler *handlers.AdminHandler) {
	api := app.Group("/api/v1")

	api.Get("/health", orderHandler.HealthCheck)
	api.Get("/delivery/check", orderHandler.CheckDelivery)

	orders := api.Group("/orders")
	orders.Post("/", orderHandler.PlaceOrder)
	orders.Get("/:id", orderHandler.GetOrderByID)
	orders.Get("/:id/tracking", orderHandler.GetTracking)

	api.Post("/payments/verify", orderHandler.VerifyPayment)
	api.Post("/webhooks/courier", orderHandler.CourierWebhook)

	customers := api.Group("/customers")
	customers.Get("/:customer_id/orders", orderHandler.GetOrdersByCustomerID)

	admin := api.Group("/admin")
	admin.Post("/orders/:id/shipment", adminHandler.CreateShipment)
	admin.Post("/orders/:id/cancel", adminHandler.CancelOrder)
	admin.Get("/shipments/label", adminHandler.PrintLabel)
	admin.Get("/shipments/invoice", adminHandler.PrintInvoice)
	admin.Get("/shipments/manifest", adminHandler.PrintManifest)

	app.Use("*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Route not found",
		})
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
