package main

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/gate"
	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/i18n"
	"github.com/diewo77/go-backoffice/internal/metrics"
	"github.com/diewo77/go-backoffice/internal/policy"
	"github.com/diewo77/go-backoffice/internal/screens"
	"github.com/diewo77/go-backoffice/view"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	db        *gorm.DB
	log       *logrus.Logger
	metrics   *metrics.Metrics
	routerCfg *policy.RouterConfig
	handler   http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(db *gorm.DB, routerCfg *policy.RouterConfig, log *logrus.Logger, m *metrics.Metrics) *App {
	app := &App{
		mux:       http.NewServeMux(),
		db:        db,
		log:       log,
		metrics:   m,
		routerCfg: routerCfg,
	}
	// Templates hide what the user cannot reach, using the same checks as the route guards.
	view.SetCanResolver(func(r *http.Request, path, action string) bool {
		a, ok := gate.ParseAction(action)
		return ok && routerCfg.AuthGate.CanAccess(r.Context(), path, a)
	})
	view.SetIsAdminResolver(func(r *http.Request) bool {
		return routerCfg.AuthGate.IsAdminRole(r.Context())
	})
	app.setupRoutes()

	// Global middleware, outermost first: logging, metrics, session,
	// preferences, tenant resolution.
	var h http.Handler = app.mux
	h = routerCfg.Tenants.Middleware(h)
	h = withPreferences(h)
	h = auth.Middleware(h)
	h = m.Middleware(app.mux)(h)
	app.handler = withLogging(log, h)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	ah := a.routerCfg.AuthHandler

	a.mux.HandleFunc("GET /{$}", a.landingPage)
	a.mux.HandleFunc("GET /login", ah.LoginPage)
	a.mux.HandleFunc("POST /login", ah.Login)
	a.mux.HandleFunc("POST /logout", ah.Logout)
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.Handle("GET /metrics", a.metrics.Handler())

	// ─────────────────────────────────────────────────────────────────────────
	// Tenant routes (require auth + the screen permission)
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /dashboard", a.screen(screens.PathDashboard, gate.ActionView, a.routerCfg.DashboardHandler.Show))

	acc := a.routerCfg.AccountHandler
	a.crud(screens.PathAccounts, acc.List, acc.New, acc.Create, acc.Edit, acc.Update, acc.Delete)

	th := a.routerCfg.TransactionHandler
	a.crud(screens.PathTransactions, th.List, th.New, th.Create, th.Edit, th.Update, th.Delete)
	a.mux.Handle("POST /transactions/{id}/pay", a.screen(screens.PathTransactions, gate.ActionEdit, th.MarkPaid))
	a.mux.Handle("GET /transactions/payables", a.screen(screens.PathPayables, gate.ActionView, th.Payables))
	a.mux.Handle("GET /transactions/receivables", a.screen(screens.PathReceivables, gate.ActionView, th.Receivables))

	rh := a.routerCfg.RecurringHandler
	a.crud(screens.PathRecurring, rh.List, rh.New, rh.Create, rh.Edit, rh.Update, rh.Delete)
	a.mux.Handle("POST /recurring/{id}/pause", a.screen(screens.PathRecurring, gate.ActionEdit, rh.Pause))
	a.mux.Handle("POST /recurring/{id}/resume", a.screen(screens.PathRecurring, gate.ActionEdit, rh.Resume))
	a.mux.Handle("POST /recurring/{id}/finish", a.screen(screens.PathRecurring, gate.ActionEdit, rh.Finish))

	ch := a.routerCfg.CategoryHandler
	a.crud(screens.PathCategories, ch.List, ch.New, ch.Create, ch.Edit, ch.Update, ch.Delete)
	a.mux.Handle("POST /categories/{id}/active", a.screen(screens.PathCategories, gate.ActionEdit, ch.SetActive))

	ct := a.routerCfg.ContactHandler
	a.crud(screens.PathContacts, ct.List, ct.New, ct.Create, ct.Edit, ct.Update, ct.Delete)

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes (require the admin role)
	// ─────────────────────────────────────────────────────────────────────────
	ro := a.routerCfg.RoleHandler
	a.adminCrud(screens.PathRoles, ro.List, ro.New, ro.Create, ro.Edit, ro.Update, ro.Delete)
	a.mux.Handle("GET /admin/screens", a.admin(ro.Screens))

	uh := a.routerCfg.UserHandler
	a.adminCrud(screens.PathUsers, uh.List, uh.New, uh.Create, uh.Edit, uh.Update, uh.Delete)

	co := a.routerCfg.CompanyHandler
	a.adminCrud(screens.PathCompanies, co.List, co.New, co.Create, co.Edit, co.Update, co.Delete)
}

// crud registers the list/form/mutation routes of a tenant resource at base.
// Reads need view, writes edit and deletes delete on the base screen.
func (a *App) crud(base string, list, newForm, create, edit, update, del http.HandlerFunc) {
	read, write, remove := gate.ActionView, gate.ActionEdit, gate.ActionDelete
	a.mux.Handle("GET "+base, a.screen(base, read, list))
	a.mux.Handle("GET "+base+"/new", a.screen(base, write, newForm))
	a.mux.Handle("POST "+base, a.screen(base, write, create))
	a.mux.Handle("GET "+base+"/{id}", a.screen(base, read, edit))
	a.mux.Handle("POST "+base+"/{id}", a.screen(base, write, update))
	a.mux.Handle("PUT "+base+"/{id}", a.screen(base, write, update))
	a.mux.Handle("POST "+base+"/{id}/delete", a.screen(base, remove, del))
	a.mux.Handle("DELETE "+base+"/{id}", a.screen(base, remove, del))
}

// adminCrud is crud behind the admin role check.
func (a *App) adminCrud(base string, list, newForm, create, edit, update, del http.HandlerFunc) {
	a.mux.Handle("GET "+base, a.admin(list))
	a.mux.Handle("GET "+base+"/new", a.admin(newForm))
	a.mux.Handle("POST "+base, a.admin(create))
	a.mux.Handle("GET "+base+"/{id}", a.admin(edit))
	a.mux.Handle("POST "+base+"/{id}", a.admin(update))
	a.mux.Handle("PUT "+base+"/{id}", a.admin(update))
	a.mux.Handle("POST "+base+"/{id}/delete", a.admin(del))
	a.mux.Handle("DELETE "+base+"/{id}", a.admin(del))
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// screen requires authentication and the screen permission for action.
func (a *App) screen(path string, action gate.Action, h http.HandlerFunc) http.Handler {
	return auth.RequireAuth(a.routerCfg.AuthGate.RequireScreen(path, action)(h))
}

// admin requires authentication and the admin role.
func (a *App) admin(h http.HandlerFunc) http.Handler {
	return auth.RequireAuth(a.routerCfg.AuthGate.RequireAdmin()(h))
}

// withPreferences picks the language from ?lang (remembered in a cookie),
// the lang cookie, then Accept-Language.
func withPreferences(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))
		if c, err := r.Cookie("lang"); err == nil && c.Value != "" {
			lang = c.Value
		}
		if q := r.URL.Query().Get("lang"); q != "" {
			lang = i18n.Normalize(q)
			http.SetCookie(w, &http.Cookie{
				Name:     "lang",
				Value:    lang,
				Path:     "/",
				MaxAge:   86400 * 365,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(i18n.WithLang(r.Context(), lang)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withLogging logs every request once it completes.
func withLogging(log *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		entry := log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
		// the session is parsed inside the chain, so read the cookie again
		if uid, ok := auth.ParseSession(r); ok {
			entry = entry.WithField("user_id", uid)
		}
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request")
			return
		}
		entry.Info("request")
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Page handlers
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) landingPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// healthz pings the database.
func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		a.log.WithError(err).Warn("health check failed")
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
