// internal/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	router "storefront/internal/api"
	"storefront/internal/api/handler"
	"storefront/internal/channel"
	"storefront/internal/config"
	"storefront/internal/health"
	"storefront/internal/repository"
	"storefront/internal/repository/postgres"
	"storefront/internal/service"
	"storefront/internal/util"
	"storefront/pkg/db"
)

// consumerRetryDelay is the pause before re-joining the group after a fetch failure.
const consumerRetryDelay = 2 * time.Second

// loadConfig returns cfg when the caller already resolved one.
func loadConfig(cfg *config.AppConfig) (*config.AppConfig, error) {
	if cfg != nil {
		return cfg, cfg.Validate()
	}
	return config.LoadConfig()
}

// kafkaSettings merges the channel config with the optional properties file.
func kafkaSettings(cfg *config.AppConfig) (channel.KafkaSettings, error) {
	props := map[string]string{}
	if cfg.Channel.PropertiesFile != "" {
		var err error
		if props, err = channel.LoadProperties(cfg.Channel.PropertiesFile); err != nil {
			return channel.KafkaSettings{}, err
		}
	}
	return channel.NewKafkaSettings(cfg.Channel, props)
}

// ConnectDB opens the store and applies the embedded schema when cfg.Migrate is set.
func ConnectDB(ctx context.Context, cfg db.Config, logger *slog.Logger) (*sqlx.DB, error) {
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connection established.")

	if cfg.Migrate {
		applied, err := db.ApplyMigrations(ctx, database, postgres.Migrations, postgres.MigrationsDir)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("Schema migrations applied", "applied", applied)
	}
	return database, nil
}

// FulfillmentApplication holds the settlement worker and the Query Service.
type FulfillmentApplication struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Health *health.State

	// Repositories
	UserRepository repository.UserRepository
	ItemRepository repository.ItemRepository

	// Services
	QueryService      service.QueryService
	SettlementService service.SettlementService

	// Consumer delivers purchase intents. Set it before Initialize to skip Kafka.
	Consumer channel.Consumer

	// HTTP API
	HTTPHandler http.Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFulfillmentApplication creates a new FulfillmentApplication.
func NewFulfillmentApplication() *FulfillmentApplication {
	return &FulfillmentApplication{}
}

// Initialize initializes all application components.
func (app *FulfillmentApplication) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := loadConfig(app.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg
	mode, err := service.ParseSettlementMode(cfg.Settlement.Mode)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Logger
	util.InitLogger(cfg.Log.Level)
	app.Logger = util.GetLogger()
	app.Health = health.NewState()
	app.Logger.Info("Application configuration loaded successfully.", "environment", cfg.Environment, "settlement_mode", string(mode))

	// 3. Connect to Database
	database, err := ConnectDB(ctx, cfg.DB, app.Logger)
	if err != nil {
		return err
	}
	app.DB = database

	// 4. Initialize Repositories
	app.UserRepository = postgres.NewUserRepository()
	app.ItemRepository = postgres.NewItemRepository()
	app.Logger.Info("Repositories initialized.")

	// 5. Initialize Services
	app.QueryService = service.NewQueryService(app.DB, app.UserRepository)
	app.SettlementService = service.NewSettlementService(
		mode,
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.UserRepository,
		app.ItemRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		nil,
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 6. Join the consumer group
	if app.Consumer == nil {
		settings, err := kafkaSettings(cfg)
		if err != nil {
			return fmt.Errorf("failed to configure channel: %w", err)
		}
		consumer, err := channel.NewKafkaConsumer(settings, app.Logger)
		if err != nil {
			return fmt.Errorf("failed to create channel consumer: %w", err)
		}
		app.Consumer = consumer
	}

	// 7. Initialize HTTP Handlers and Router
	queryHandler := handler.NewQueryHandler(app.QueryService, app.Logger)
	app.HTTPHandler = router.NewQueryRouter(queryHandler, app.Health, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Start runs the settlement worker in the background. /health turns ready once
// the consumer's channel answers a ping.
func (app *FulfillmentApplication) Start(ctx context.Context) {
	ctx, app.cancel = context.WithCancel(ctx)
	app.wg.Add(2)
	go func() {
		defer app.wg.Done()
		app.consume(ctx)
	}()
	go func() {
		defer app.wg.Done()
		health.AwaitReady(ctx, app.Health, app.Consumer, app.Logger, readinessInitialBackoff, readinessMaxBackoff)
	}()
	app.Logger.Info("Settlement worker started", "topic", app.Config.Channel.Topic, "group", app.Config.Channel.GroupID)
}

func (app *FulfillmentApplication) consume(ctx context.Context) {
	for {
		err := app.Consumer.Consume(ctx, app.SettlementService.HandleMessage)
		if err == nil || ctx.Err() != nil || errors.Is(err, channel.ErrClosed) {
			return
		}
		app.Logger.Error("Consumer stopped, retrying", "error", err, "retry_in", consumerRetryDelay.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(consumerRetryDelay):
		}
	}
}

// Shutdown stops the worker, then closes the consumer and the database.
func (app *FulfillmentApplication) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.cancel != nil {
		app.cancel()
	}
	var errs []error
	if app.Consumer != nil {
		if err := app.Consumer.Close(); err != nil {
			app.Logger.Error("Failed to close channel consumer", "error", err)
			errs = append(errs, fmt.Errorf("failed to close channel consumer: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		app.Logger.Warn("Settlement worker did not stop before the shutdown deadline")
	}

	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			errs = append(errs, fmt.Errorf("failed to close database connection: %w", err))
		} else {
			app.Logger.Info("Database connection closed.")
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
