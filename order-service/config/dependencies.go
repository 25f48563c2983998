package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/cafeteria/ordering-system/order-service/application"
	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/order-service/handlers"
	"github.com/cafeteria/ordering-system/order-service/infrastructure"
	"github.com/cafeteria/ordering-system/shared/circuitbreaker"
	"github.com/cafeteria/ordering-system/shared/events"
	sharedinfra "github.com/cafeteria/ordering-system/shared/infrastructure"
	"github.com/cafeteria/ordering-system/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Dependencies struct {
	// Database (nil unless the database backend is selected)
	DB *sqlx.DB

	// Circuit breaker guarding catalog storage (file or database)
	StorageBreaker *circuitbreaker.CircuitBreaker

	// Repositories
	ProductRepository  domain.ProductRepository
	CategoryRepository domain.CategoryRepository
	OrderRepository    domain.OrderRepository
	ReservationStore   domain.ReservationStore

	// Event store
	EventStore events.EventStore

	// Use Cases
	CreateOrder      *application.CreateOrder
	GetOrder         *application.GetOrder
	ListOrders       *application.ListOrders
	GetMenu          *application.GetMenu
	SearchProducts   *application.SearchProducts
	RecordOrderEvent *application.RecordOrderEvent

	// HTTP Handlers
	OrderHandlers *handlers.OrderHandlers

	// Event Handlers
	OrderEventHandlers *handlers.OrderEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSEventPublisher
	EventSubscriber *sharedinfra.SQSEventSubscriber

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.NewConfig(config.ServiceName, "1.0.0", config.Telemetry.OTLPEndpoint)
		tel, telemetryShutdown, err := telemetry.Init(ctx, telConfig)
		if err != nil {
			log.Printf("Failed to initialize telemetry: %v", err)
			// Continue without telemetry rather than failing
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.NewTelemetry(telemetry.NewConfig(config.ServiceName, "1.0.0", ""))
	}

	deps.StorageBreaker = circuitbreaker.New(
		"catalog-storage",
		config.CircuitBreaker.FailureThreshold,
		config.CircuitBreaker.RecoveryTimeout(),
		circuitbreaker.WithStateChangeFunc(logStateChange),
	)

	if err := buildRepositories(config, deps); err != nil {
		return nil, err
	}

	deps.OrderRepository = infrastructure.NewMemoryOrderRepository()
	deps.ReservationStore = infrastructure.NewMemoryReservationStore()

	// Initialize AWS infrastructure
	eventPublisher, err := sharedinfra.NewSNSEventPublisherFromEnv(config.AWS.SNSTopicArn)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	// Initialize use cases
	deps.CreateOrder, err = application.NewCreateOrder(
		deps.ProductRepository,
		deps.OrderRepository,
		deps.ReservationStore,
		deps.EventPublisher,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build create order use case: %w", err)
	}
	deps.GetOrder = application.NewGetOrder(deps.OrderRepository)
	deps.ListOrders = application.NewListOrders(deps.OrderRepository)
	deps.GetMenu = application.NewGetMenu(deps.ProductRepository, deps.CategoryRepository)
	deps.SearchProducts = application.NewSearchProducts(deps.ProductRepository)
	deps.RecordOrderEvent = application.NewRecordOrderEvent(deps.EventStore)

	// Initialize handlers
	deps.OrderHandlers = handlers.NewOrderHandlers(
		deps.CreateOrder,
		deps.GetOrder,
		deps.ListOrders,
		deps.GetMenu,
		deps.SearchProducts,
		deps.ProductRepository,
		deps.CategoryRepository,
	)
	deps.OrderEventHandlers = handlers.NewOrderEventHandlers(deps.RecordOrderEvent)

	eventSubscriber, err := sharedinfra.NewSQSEventSubscriberFromEnv(config.AWS.SQSQueueURL, deps.OrderEventHandlers)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	return deps, nil
}

// buildRepositories wires the catalog repositories and the event store
// for the configured backend
func buildRepositories(config *Config, deps *Dependencies) error {
	switch config.Repository.Backend {
	case BackendMemory:
		deps.ProductRepository = infrastructure.NewMemoryProductRepository(infrastructure.SeedProducts())
		deps.CategoryRepository = infrastructure.NewMemoryCategoryRepository(infrastructure.SeedCategories())
		deps.EventStore = sharedinfra.NewMemoryEventStore()

	case BackendFile:
		productRepo, err := infrastructure.NewFileProductRepository(
			filepath.Join(config.Repository.DataDir, "products.json"),
			infrastructure.SeedProducts(),
			deps.StorageBreaker,
		)
		if err != nil {
			return fmt.Errorf("failed to build file product repository: %w", err)
		}
		categoryRepo, err := infrastructure.NewFileCategoryRepository(
			filepath.Join(config.Repository.DataDir, "categories.json"),
			infrastructure.SeedCategories(),
			deps.StorageBreaker,
		)
		if err != nil {
			return fmt.Errorf("failed to build file category repository: %w", err)
		}
		deps.ProductRepository = productRepo
		deps.CategoryRepository = categoryRepo
		deps.EventStore = sharedinfra.NewMemoryEventStore()

	case BackendDatabase:
		db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		deps.DB = db
		deps.ProductRepository = infrastructure.NewPostgresProductRepository(db, deps.StorageBreaker, infrastructure.SeedProducts())
		deps.CategoryRepository = infrastructure.NewPostgresCategoryRepository(db, deps.StorageBreaker, infrastructure.SeedCategories())
		deps.EventStore = sharedinfra.NewPostgresEventStore(db, deps.StorageBreaker)

	default:
		return fmt.Errorf("unknown repository backend %q", config.Repository.Backend)
	}

	return nil
}

func logStateChange(name string, from, to circuitbreaker.State) {
	log.Printf("circuit breaker %q: %s -> %s", name, from, to)
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Stop(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop event subscriber: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
