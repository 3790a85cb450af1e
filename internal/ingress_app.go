// internal/ingress_app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	router "storefront/internal/api"
	"storefront/internal/api/handler"
	"storefront/internal/channel"
	"storefront/internal/client"
	"storefront/internal/config"
	"storefront/internal/health"
	"storefront/internal/service"
	"storefront/internal/util"
)

// Backoff bounds for the channel reachability probe behind /health.
const (
	readinessInitialBackoff = 500 * time.Millisecond
	readinessMaxBackoff     = 15 * time.Second
)

// IngressApplication holds the public purchase API.
type IngressApplication struct {
	Config *config.AppConfig
	Logger *slog.Logger
	Health *health.State

	// Producer publishes purchase intents. Set it before Initialize to skip Kafka.
	Producer    channel.Producer
	QueryClient client.QueryClient

	// Services
	IntentService service.IntentService

	// HTTP API
	HTTPHandler http.Handler

	cancel context.CancelFunc
}

// NewIngressApplication creates a new IngressApplication.
func NewIngressApplication() *IngressApplication {
	return &IngressApplication{}
}

// Initialize initializes all application components.
func (app *IngressApplication) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := loadConfig(app.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.Log.Level)
	app.Logger = util.GetLogger()
	app.Health = health.NewState()
	app.Logger.Info("Application configuration loaded successfully.", "environment", cfg.Environment)

	// 3. Connect the channel producer
	if app.Producer == nil {
		settings, err := kafkaSettings(cfg)
		if err != nil {
			return fmt.Errorf("failed to configure channel: %w", err)
		}
		producer, err := channel.NewKafkaProducer(settings)
		if err != nil {
			return fmt.Errorf("failed to create channel producer: %w", err)
		}
		app.Producer = producer
	}

	// 4. Query Service client
	queryClient, err := client.NewHTTPQueryClient(cfg.Query.BaseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create query client: %w", err)
	}
	app.QueryClient = queryClient

	// 5. Initialize Services
	app.IntentService = service.NewIntentService(app.Producer, nil, app.Logger)
	app.Logger.Info("Services initialized.")

	// 6. Initialize HTTP Handlers and Router
	purchaseHandler := handler.NewPurchaseHandler(app.IntentService, app.QueryClient, app.Logger)
	app.HTTPHandler = router.NewIngressRouter(purchaseHandler, app.Health, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Start probes the channel in the background; /health turns 200 on the first success.
func (app *IngressApplication) Start(ctx context.Context) {
	ctx, app.cancel = context.WithCancel(ctx)
	go health.AwaitReady(ctx, app.Health, app.Producer, app.Logger, readinessInitialBackoff, readinessMaxBackoff)
}

// Shutdown stops the readiness probe and flushes the producer.
func (app *IngressApplication) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.cancel != nil {
		app.cancel()
	}
	if app.Producer != nil {
		if err := app.Producer.Close(); err != nil {
			app.Logger.Error("Failed to close channel producer", "error", err)
			return fmt.Errorf("failed to close channel producer: %w", err)
		}
		app.Logger.Info("Channel producer closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
