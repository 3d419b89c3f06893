package container

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/payment-requests/internal/application/dispatcher"
	"github.com/garyjia/payment-requests/internal/application/ledger"
	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/application/service"
	"github.com/garyjia/payment-requests/internal/application/workflow"
	"github.com/garyjia/payment-requests/internal/config"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	infraLark "github.com/garyjia/payment-requests/internal/infrastructure/external/lark"
	"github.com/garyjia/payment-requests/internal/infrastructure/notifier"
	"github.com/garyjia/payment-requests/internal/infrastructure/persistence/repository"
	"github.com/garyjia/payment-requests/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/payment-requests/internal/infrastructure/worker"
	"github.com/garyjia/payment-requests/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Roles         port.RoleRepository
	Departments   port.DepartmentRepository
	Users         *repository.UserRepository
	Projects      port.ProjectRepository
	Budgets       port.BudgetRepository
	Requests      port.PaymentRequestRepository
	AuditLogs     port.AuditLogRepository
	Comments      port.CommentRepository
	Notifications port.NotificationRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Engine       workflow.WorkflowEngine
	Audit        service.AuditService
	Budgets      service.BudgetService
	Projects     service.ProjectService
	Users        service.UserService
	Dashboard    service.DashboardService
	Lookups      service.LookupService
	Export       service.ExportService
	Notification service.NotificationService
	Comments     service.CommentService
	Inbox        service.InboxService
}

// ServiceDeps bundles what ProvideServices needs.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Sender     port.MessageSender
	Gate       *access.Gate
	Config     *config.Config
	Logger     *zap.Logger
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg database.Config, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).RunEmbedded()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations applied", zap.Int("count", applied))

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Roles:         repository.NewRoleRepository(db.DB, logger),
		Departments:   repository.NewDepartmentRepository(db.DB, logger),
		Users:         repository.NewUserRepository(db.DB, logger),
		Projects:      repository.NewProjectRepository(db.DB, logger),
		Budgets:       repository.NewBudgetRepository(db.DB, logger),
		Requests:      repository.NewPaymentRequestRepository(db.DB, logger),
		AuditLogs:     repository.NewAuditLogRepository(db.DB, logger),
		Comments:      repository.NewCommentRepository(db.DB, logger),
		Notifications: repository.NewNotificationRepository(db.DB, logger),
	}, nil
}

// ProvideMessageSender picks the notification channel.
func ProvideMessageSender(cfg *config.Config, logger *zap.Logger) (port.MessageSender, error) {
	switch cfg.Notification.Channel {
	case config.ChannelLark:
		client := infraLark.NewSDKClient(larkConfig(cfg), logger)
		return infraLark.NewMessenger(client, logger), nil
	case config.ChannelLog, "":
		return notifier.NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.Notification.Channel)
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *config.Config, logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
		dispatcher.WithHandlerTimeout(cfg.Notification.HandlerTimeout),
	)
}

// ProvideServices builds the engine and every application service, and
// subscribes notifications on the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	repos := deps.Repos
	log := &zapLoggerAdapter{logger: deps.Logger}

	audit := service.NewAuditService(repos.AuditLogs, repos.Requests, deps.Gate, log)

	engine := workflow.NewEngine(
		repos.Requests,
		repos.Budgets,
		repos.Projects,
		ledger.New(repos.Budgets, ledger.WithLogger(log)),
		audit,
		deps.TxManager,
		deps.Gate,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("workflow")}),
	)

	notification := service.NewNotificationService(
		repos.Users,
		repos.Users,
		deps.Sender,
		repos.Notifications,
		notificationConfig(deps.Config),
		log,
	)
	notification.Register(deps.Dispatcher)

	return &ServiceBundle{
		Engine:       engine,
		Audit:        audit,
		Budgets:      service.NewBudgetService(repos.Budgets, repos.Projects, audit, deps.Dispatcher, deps.Gate, log),
		Projects:     service.NewProjectService(repos.Projects, repos.Departments, deps.Gate, log),
		Users:        service.NewUserService(repos.Users, repos.Roles, repos.Departments, deps.Gate, log),
		Dashboard:    service.NewDashboardService(repos.Budgets, repos.Requests, repos.Projects, repos.Users, repos.Departments, deps.Gate),
		Lookups:      service.NewLookupService(repos.Departments, repos.Roles, deps.Gate),
		Export:       service.NewExportService(engine, deps.Gate, deps.Config.Export.SheetName, log),
		Notification: notification,
		Comments:     service.NewCommentService(repos.Comments, repos.Requests, repos.Notifications, deps.Gate, log),
		Inbox:        service.NewInboxService(repos.Notifications, deps.Gate, log),
	}, nil
}

// ProvideWorkers registers the background workers.
func ProvideWorkers(cfg *config.Config, services *ServiceBundle, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	manager.Register(worker.NewBudgetExpiryWorker(budgetExpiryConfig(cfg), services.Budgets, logger.Named("budget-expiry")))
	return manager
}

// BootstrapCEO creates the configured CEO account when no CEO exists yet.
// Returns the created user, or nil when nothing was done.
func BootstrapCEO(ctx context.Context, cfg config.BootstrapConfig, repos *RepositoryBundle, logger *zap.Logger) (*entity.User, error) {
	email := strings.ToLower(strings.TrimSpace(cfg.CEOEmail))
	if email == "" {
		return nil, nil
	}

	existing, err := repos.Users.FirstByRoleName(ctx, entity.RoleCEO)
	if err != nil {
		return nil, fmt.Errorf("look up CEO: %w", err)
	}
	if existing != nil {
		return nil, nil
	}

	role, err := repos.Roles.GetByName(ctx, entity.RoleCEO)
	if err != nil {
		return nil, fmt.Errorf("look up CEO role: %w", err)
	}
	if role == nil {
		return nil, fmt.Errorf("CEO role is not seeded")
	}

	user := &entity.User{
		Name:         cfg.CEOName,
		Email:        email,
		RoleID:       &role.ID,
		DepartmentID: cfg.CEODepartmentID,
	}
	if err := repos.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create CEO: %w", err)
	}

	logger.Info("Bootstrapped CEO account", zap.Int64("user_id", user.ID), zap.String("email", email))
	return user, nil
}
