package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"agriconecta-api/internal/config"
	"agriconecta-api/internal/controller"
	"agriconecta-api/internal/mail"
	"agriconecta-api/internal/middleware"
	"agriconecta-api/internal/notify"
	"agriconecta-api/internal/observability"
	"agriconecta-api/internal/rabbit"
	"agriconecta-api/internal/repository"
	"agriconecta-api/internal/service"
)

var version = "dev"

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.OtelEndpoint, cfg.ServiceName, version)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}

	// Conexión a MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		logger.Fatal("mongo ping", zap.Error(err))
	}
	db := client.Database(cfg.MongoDBName)

	// Repositorios
	orders := repository.NewMongoOrderRepository(db)
	categories := repository.NewMongoCategoryRepository(db)
	products := repository.NewMongoProductRepository(db)
	users := repository.NewMongoUserRepository(db)
	deadLetters := repository.NewMongoDeadLetterRepository(db)
	counters := repository.NewMongoCounterRepository(db)

	for name, ensure := range map[string]func(context.Context) error{
		"orders":       orders.EnsureIndexes,
		"categories":   categories.EnsureIndexes,
		"products":     products.EnsureIndexes,
		"users":        users.EnsureIndexes,
		"dead_letters": deadLetters.EnsureIndexes,
	} {
		if err := ensure(connectCtx); err != nil {
			logger.Fatal("ensure indexes", zap.String("collection", name), zap.Error(err))
		}
	}

	// Notificaciones
	retry := notify.RetryPolicy{MaxAttempts: cfg.Notify.MaxAttempts, BaseBackoff: cfg.Notify.BaseBackoff}
	mailPublisher, err := notify.NewMailPublisher(newMailer(cfg.Mail, logger))
	if err != nil {
		logger.Fatal("mail publisher", zap.Error(err))
	}

	var (
		publisher notify.Publisher = mailPublisher
		conn      *amqp091.Connection
	)
	if cfg.Notify.Transport == "rabbit" {
		// Conexión a RabbitMQ
		conn, err = amqp091.Dial(cfg.RabbitURL)
		if err != nil {
			logger.Fatal("rabbit dial", zap.Error(err))
		}
		publisher = mustRabbit(ctx, conn, mailPublisher, retry, logger)
	}

	dispatcher, err := notify.NewDispatcher(publisher, notify.DispatcherOptions{
		Workers:     cfg.Notify.Workers,
		Buffer:      cfg.Notify.Buffer,
		Retry:       retry,
		DeadLetters: deadLetters,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("dispatcher", zap.Error(err))
	}
	dispatcher.Start()

	// Servicios
	authService := service.NewAuthService([]byte(cfg.JWTSecret), cfg.JWTTTL)
	lifecycle := service.NewOrderLifecycleService(orders, service.LifecycleOptions{
		Strict:   cfg.StrictTransitions,
		Notifier: dispatcher,
		Logger:   logger,
	})
	checkout := service.NewCheckoutService(orders, counters, service.CheckoutOptions{
		Fees:     service.NewProvinceFeeTable(cfg.DeliveryFeeDefault, cfg.DeliveryFeeProvinces),
		Catalog:  products,
		Notifier: dispatcher,
		Bank: service.BankDetails{
			BankName:    cfg.BankName,
			IBAN:        cfg.BankIBAN,
			Beneficiary: cfg.BankBeneficiary,
		},
		Logger: logger,
	})
	reports := service.NewReportService(orders, service.ReportOptions{
		Location:          service.LoadLocation(cfg.ReportTimezone),
		Products:          products,
		LowStockThreshold: cfg.LowStockThreshold,
		Logger:            logger,
	})
	catalog := service.NewCatalogService(categories, products, logger)
	userService := service.NewUserService(users, authService, logger)

	if b := cfg.AdminBootstrap; b.Email != "" {
		if _, err := userService.EnsureSuperAdmin(ctx, b.Email, b.Password, b.Name); err != nil {
			logger.Fatal("admin bootstrap", zap.Error(err))
		}
	}

	// Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(cfg.ServiceName), middleware.RequestLogger(logger))

	controller.RegisterRoutes(r, controller.Handlers{
		Orders:        controller.NewOrderController(lifecycle, logger),
		Checkout:      controller.NewCheckoutController(checkout, logger),
		Catalog:       controller.NewCatalogController(catalog, logger),
		Reports:       controller.NewReportController(reports, logger),
		Auth:          controller.NewAuthController(userService, logger),
		Notifications: controller.NewNotificationController(deadLetters, logger),
		Health: controller.NewHealthController(map[string]controller.HealthCheck{
			"mongo": func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
		}),
	}, service.NewSessionValidator(authService, users))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Ejecutar servidor
	go func() {
		logger.Info("AgriConecta API listening", zap.String("port", cfg.Port), zap.String("transport", cfg.Notify.Transport))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	// 1. Dejar de aceptar peticiones
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	// 2. Vaciar la cola de notificaciones
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown", zap.Error(err))
	}
	// 3. Cerrar conexiones
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("rabbit close", zap.Error(err))
		}
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error("mongo disconnect", zap.Error(err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown", zap.Error(err))
	}
}

func newMailer(cfg config.MailConfig, logger *zap.Logger) mail.Sender {
	if cfg.APIKey == "" {
		logger.Warn("MAIL_API_KEY not set, emails will only be logged")
		return mail.NewLogMailer(logger)
	}
	m, err := mail.NewHTTPMailer(cfg.APIURL, cfg.APIKey, cfg.From)
	if err != nil {
		logger.Fatal("mailer", zap.Error(err))
	}
	return m
}

// mustRabbit declara la topología, arranca el consumidor de email y devuelve el publisher del broker.
// Publisher y consumidor usan canales distintos.
func mustRabbit(ctx context.Context, conn *amqp091.Connection, mailer notify.Publisher, retry notify.RetryPolicy, logger *zap.Logger) notify.Publisher {
	pubCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("rabbit channel", zap.Error(err))
	}
	if err := rabbit.DeclareTopology(pubCh); err != nil {
		logger.Fatal("rabbit topology", zap.Error(err))
	}
	publisher, err := rabbit.NewPublisher(pubCh)
	if err != nil {
		logger.Fatal("rabbit publisher", zap.Error(err))
	}

	consumeCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("rabbit channel", zap.Error(err))
	}
	consumer := rabbit.NewNotificationConsumer(mailer, retry, logger)
	if err := consumer.Consume(ctx, consumeCh, 10); err != nil {
		logger.Fatal("rabbit consume", zap.Error(err))
	}
	return publisher
}
