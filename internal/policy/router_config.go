package policy

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/config"
	"github.com/diewo77/go-backoffice/internal/handlers"
	"github.com/diewo77/go-backoffice/internal/identity"
	"github.com/diewo77/go-backoffice/internal/metrics"
	"github.com/diewo77/go-backoffice/internal/services"
	"github.com/diewo77/go-backoffice/internal/tenant"
)

// RouterConfig holds configured handlers and middleware for the application.
type RouterConfig struct {
	// AuthGate provides authorization checks and middleware
	AuthGate *AuthGate
	// Tenants resolves the caller's company once per request
	Tenants *tenant.Resolver
	// Identities is the authentication provider
	Identities *identity.Provider

	// Admin handlers
	RoleHandler    *handlers.RoleHandler
	UserHandler    *handlers.UserHandler
	CompanyHandler *handlers.CompanyHandler

	// Auth handler
	AuthHandler *handlers.AuthHandler

	// Tenant handlers
	DashboardHandler   *handlers.DashboardHandler
	AccountHandler     *handlers.AccountHandler
	TransactionHandler *handlers.TransactionHandler
	RecurringHandler   *handlers.RecurringHandler
	CategoryHandler    *handlers.CategoryHandler
	ContactHandler     *handlers.ContactHandler

	// Services
	Users     *services.UserService
	Recurring *services.RecurringService
}

// NewRouterConfig wires the authorization gate, the services and the handlers.
// Role and user mutations invalidate the gate's role cache.
func NewRouterConfig(db *gorm.DB, cfg *config.Config, log *logrus.Logger, m *metrics.Metrics) *RouterConfig {
	authGate := NewAuthGate(db, cfg.Cache.RoleSize, cfg.Cache.RoleTTL, m)

	// Row-level check for every tenant-owned resource type
	tenantPolicy := NewTenantPolicy()
	for _, resource := range []string{"account", "transaction", "recurring", "category", "contact"} {
		authGate.RegisterPolicy(resource, tenantPolicy)
	}

	deps := services.Deps{DB: db, Log: log, Metrics: m, Cache: authGate}
	identities := identity.NewProvider(db)

	roles := services.NewRoleService(deps)
	users := services.NewUserService(deps, identities)
	companies := services.NewCompanyService(deps)
	currencies := services.NewCurrencyService(deps)
	accounts := services.NewAccountService(deps)
	categories := services.NewCategoryService(deps)
	contacts := services.NewContactService(deps)
	transactions := services.NewTransactionService(deps)
	recurring := services.NewRecurringService(deps)
	if cfg.Scheduler.CatchUpLimit > 0 {
		recurring.CatchUpLimit = cfg.Scheduler.CatchUpLimit
	}

	return &RouterConfig{
		AuthGate:           authGate,
		Tenants:            tenant.NewResolver(db),
		Identities:         identities,
		RoleHandler:        handlers.NewRoleHandler(roles, log),
		UserHandler:        handlers.NewUserHandler(users, roles, companies, log),
		CompanyHandler:     handlers.NewCompanyHandler(companies, log),
		AuthHandler:        handlers.NewAuthHandler(identities, log),
		DashboardHandler:   handlers.NewDashboardHandler(transactions, recurring, log),
		AccountHandler:     handlers.NewAccountHandler(accounts, currencies, log),
		TransactionHandler: handlers.NewTransactionHandler(transactions, accounts, categories, contacts, log),
		RecurringHandler:   handlers.NewRecurringHandler(recurring, accounts, categories, contacts, log),
		CategoryHandler:    handlers.NewCategoryHandler(categories, log),
		ContactHandler:     handlers.NewContactHandler(contacts, log),
		Users:              users,
		Recurring:          recurring,
	}
}
