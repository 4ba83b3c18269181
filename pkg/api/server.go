package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/orgaccess/pkg/async"
	"github.com/platinummonkey/orgaccess/pkg/audit"
	"github.com/platinummonkey/orgaccess/pkg/httputil"
	"github.com/platinummonkey/orgaccess/pkg/observability"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const auditTimeout = 5 * time.Second

// Deps holds the services and infrastructure the server is built from. Audit,
// Health, Metrics and MetricsHandler are optional.
type Deps struct {
	Memberships MembershipService
	Roles       RoleService
	Menus       MenuService
	Permissions PermissionService

	Audit          audit.Logger
	Health         *observability.HealthChecker
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
	Log            logrus.FieldLogger
	MaxBodyBytes   int64
}

// Server is the HTTP API server
type Server struct {
	router      *mux.Router
	memberships MembershipService
	roles       RoleService
	menus       MenuService
	permissions PermissionService

	auditor      audit.Logger
	tasks        *async.Tracker
	log          logrus.FieldLogger
	maxBodyBytes int64
}

// NewServer creates a new API server and registers its routes
func NewServer(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	auditor := deps.Audit
	if auditor == nil {
		auditor = audit.NoopLogger{}
	}

	s := &Server{
		router:       mux.NewRouter(),
		memberships:  deps.Memberships,
		roles:        deps.Roles,
		menus:        deps.Menus,
		permissions:  deps.Permissions,
		auditor:      auditor,
		tasks:        async.NewTracker(log),
		log:          log,
		maxBodyBytes: deps.MaxBodyBytes,
	}
	s.setupRoutes()

	if deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}
	if deps.Health != nil {
		s.router.HandleFunc("/healthz", deps.Health.Liveness).Methods(http.MethodGet)
		s.router.HandleFunc("/readyz", deps.Health.Readiness).Methods(http.MethodGet)
	}
	if deps.MetricsHandler != nil {
		s.router.Handle("/metrics", deps.MetricsHandler).Methods(http.MethodGet)
	}
	return s
}

func (s *Server) setupRoutes() {
	s.registerMembershipRoutes(s.router)
	s.registerRoleRoutes(s.router)
	s.registerMenuRoutes(s.router)
	s.registerPermissionRoutes(s.router)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped in the request middleware chain. Requests are
// traced with the global OpenTelemetry provider.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.log),
		httputil.RecoveryMiddleware(s.log),
	}
	if s.maxBodyBytes > 0 {
		middlewares = append(middlewares, httputil.MaxBytesMiddleware(s.maxBodyBytes))
	}
	return otelhttp.NewHandler(httputil.Chain(middlewares...)(s.router), "orgaccess")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close waits for pending audit events and closes the audit logger
func (s *Server) Close(ctx context.Context) error {
	if err := s.tasks.Wait(ctx); err != nil {
		return err
	}
	return s.auditor.Close()
}

// record emits event in the background with the request's id and address
func (s *Server) record(r *http.Request, event *audit.Event) {
	event.RequestID = httputil.RequestID(r.Context())
	event.RemoteAddr = r.RemoteAddr
	event.Timestamp = time.Now().UTC()
	s.tasks.Go(r.Context(), auditTimeout, "audit."+string(event.Type), func(ctx context.Context) error {
		return s.auditor.Log(ctx, event)
	})
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func pairString(a, b int64) string {
	return idString(a) + ":" + idString(b)
}

// writeOK writes data as a 200 response
func writeOK(w http.ResponseWriter, data any) {
	httputil.WriteJSONOrError(w, http.StatusOK, data, "failed to encode response")
}
