package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/max-programming/expenso/internal/application/dispatcher"
	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/application/service"
	"github.com/max-programming/expenso/internal/domain/event"
	"github.com/max-programming/expenso/internal/infrastructure/export"
	infraLark "github.com/max-programming/expenso/internal/infrastructure/external/lark"
	"github.com/max-programming/expenso/internal/infrastructure/persistence/repository"
	"github.com/max-programming/expenso/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/max-programming/expenso/internal/interfaces/http"
	"github.com/max-programming/expenso/internal/metrics"
	"github.com/max-programming/expenso/internal/notification"
	"github.com/max-programming/expenso/migrations"
	"github.com/max-programming/expenso/pkg/database"
	"github.com/max-programming/expenso/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite database and wraps it as a transaction manager.
// Embedded migrations are applied when AutoMigrate is set.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if _, err := database.NewMigrator(conn, logger).RunMigrations(migrations.FS); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on top of the transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Rule:     repository.NewRuleRepository(db, logger),
		Approval: repository.NewApprovalRepository(db, logger),
		Expense:  repository.NewExpenseRepository(db, logger),
	}, nil
}

// ProvideNotifier returns the Lark messenger when enabled, otherwise a log notifier.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) (port.Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !cfg.Enabled {
		logger.Info("Lark disabled, notices go to the log")
		return notification.NewLogNotifier(logger), nil
	}

	sdkClient := infraLark.NewSDKClient(infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveID:     cfg.ReceiveID,
		ReceiveIDType: cfg.ReceiveIDType,
	}, logger)
	return infraLark.NewMessenger(sdkClient, logger), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger)),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Notifier   port.Notifier
	Exporter   port.LedgerExporter
	Metrics    port.Metrics
	Events     *EventsConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the
// notification handlers on the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := utils.NewKVLogger(deps.Logger)

	exporter := deps.Exporter
	if exporter == nil {
		exporter = export.NewLedgerExcelExporter(deps.Logger)
	}

	bundle := &ServiceBundle{
		Approval: service.NewApprovalService(
			deps.Repos.Rule,
			deps.Repos.Approval,
			deps.Repos.Expense,
			deps.TxManager,
			deps.Dispatcher,
			exporter,
			deps.Metrics,
			serviceLogger,
		),
		Expense: service.NewExpenseService(
			deps.Repos.Rule,
			deps.Repos.Approval,
			deps.Repos.Expense,
			deps.TxManager,
			deps.Dispatcher,
			deps.Metrics,
			serviceLogger,
		),
		Rule:              service.NewRuleService(deps.Repos.Rule, deps.TxManager, serviceLogger),
		LedgerContentType: exporter.ContentType(),
	}

	if deps.Notifier != nil {
		bundle.Notification = service.NewNotificationService(deps.Notifier, serviceLogger)
		bundle.Notification.Register(deps.Dispatcher)
		if deps.Events != nil && !deps.Events.NotifySubmitted {
			deps.Dispatcher.Unsubscribe(event.TypeExpenseSubmitted, "notify-submitted")
		}
	}

	return bundle, nil
}

// ProvideMetrics creates the Prometheus metrics and exposes pool statistics of db.
func ProvideMetrics(db *database.DB) (*metrics.Metrics, error) {
	m := metrics.New()
	if db != nil {
		if err := m.RegisterDB(db.DB, "expenso"); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ProvideHTTPServer creates the HTTP server for the services.
func ProvideHTTPServer(cfg *ServerConfig, services *ServiceBundle, m httpserver.MetricsProvider, logger *zap.Logger) (*httpserver.Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Host,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Mode:         cfg.Mode,
	}, httpserver.Services{
		Approvals:         services.Approval,
		Expenses:          services.Expense,
		Rules:             services.Rule,
		LedgerContentType: services.LedgerContentType,
	}, m, utils.NewKVLogger(logger)), nil
}
