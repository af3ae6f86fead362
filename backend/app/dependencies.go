package app

import (
	"context"
	"fmt"

	"github.com/upb/dataspace-control-plane/backend/config"
	"github.com/upb/dataspace-control-plane/backend/middleware"
	"github.com/upb/dataspace-control-plane/backend/repositories"
	"github.com/upb/dataspace-control-plane/backend/repositories/postgres"
	"github.com/upb/dataspace-control-plane/backend/services/audit"
	"github.com/upb/dataspace-control-plane/backend/services/connector"
	"github.com/upb/dataspace-control-plane/backend/services/contracts"
	"github.com/upb/dataspace-control-plane/backend/services/exchange"
	"github.com/upb/dataspace-control-plane/backend/services/negotiation"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Services
	Connector    connector.Connector
	Audit        *audit.Service
	Negotiations *negotiation.Service
	Contracts    *contracts.Service
	Gateway      *exchange.Gateway

	// Middleware
	Principal *middleware.PrincipalMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initServices(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	// Test the connection
	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Initialize access log schema when using separate audit DB
	if err := factory.InitAuditSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	d.Repos = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initServices wires the enforcement connector and the domain services
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Connector = connector.New(cfg.Connector, d.Logger)
	d.Logger.Info("enforcement connector initialized",
		zap.String("mode", cfg.Connector.Mode))

	d.Audit = audit.NewService(d.Repos.AccessLogs, d.Logger, audit.DefaultConfig())

	d.Negotiations = negotiation.NewService(
		d.Repos.AccessRequests,
		d.Repos.Datasets,
		d.Repos.Contracts,
		d.Repos.NegotiationTypes,
		d.TxManager,
		d.Connector,
		d.Logger,
	)

	d.Contracts = contracts.NewService(d.Repos.Contracts, d.Connector, d.Logger)

	d.Gateway = exchange.NewGateway(
		d.Repos.Datasets,
		d.Repos.Contracts,
		d.Audit,
		d.Connector,
		cfg.Storage.RootDir,
		d.Logger,
	)

	d.Principal = middleware.NewPrincipalMiddleware(d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
