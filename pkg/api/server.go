// Package api assembles the HTTP boundary surface: token exchange and
// refresh, workspace and membership CRUD, and the health/metrics endpoints.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atriumhq/atrium/pkg/auth"
	"github.com/atriumhq/atrium/pkg/middleware"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/workspace"
)

// Server is the HTTP server for the platform core
type Server struct {
	router       *mux.Router
	exchange     *auth.ExchangeService
	binder       *auth.Binder
	workspaces   *workspace.Service
	integrations *workspace.IntegrationStore
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// NewServer creates the server and mounts all routes
func NewServer(
	exchange *auth.ExchangeService,
	binder *auth.Binder,
	workspaces *workspace.Service,
	integrations *workspace.IntegrationStore,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		exchange:     exchange,
		binder:       binder,
		workspaces:   workspaces,
		integrations: integrations,
		logger:       logger,
		metrics:      metrics,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	// Token endpoints authenticate with the identity token alone; there is
	// no session token yet at exchange time.
	s.router.HandleFunc("/auth/exchange", s.handleExchange).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)

	// Everything under /workspaces requires both tokens.
	protected := s.router.PathPrefix("/workspaces").Subrouter()
	protected.Use(middleware.Authorization(s.binder))

	protected.HandleFunc("", s.handleCreateWorkspace).Methods(http.MethodPost)
	protected.HandleFunc("", s.handleListWorkspaces).Methods(http.MethodGet)

	s.workspaceRoute(protected, "/{workspace_id}", auth.RoleViewer, s.handleGetWorkspace, http.MethodGet)
	s.workspaceRoute(protected, "/{workspace_id}", auth.RoleOwner, s.handleDeleteWorkspace, http.MethodDelete)
	s.workspaceRoute(protected, "/{workspace_id}/members", auth.RoleViewer, s.handleListMembers, http.MethodGet)
	s.workspaceRoute(protected, "/{workspace_id}/members", auth.RoleAdmin, s.handleAddMember, http.MethodPost)
	s.workspaceRoute(protected, "/{workspace_id}/members/{member_id}", auth.RoleAdmin, s.handleUpdateMemberRole, http.MethodPut)
	s.workspaceRoute(protected, "/{workspace_id}/members/{member_id}", auth.RoleAdmin, s.handleRemoveMember, http.MethodDelete)
	s.workspaceRoute(protected, "/{workspace_id}/integrations", auth.RoleViewer, s.handleListIntegrations, http.MethodGet)
	s.workspaceRoute(protected, "/{workspace_id}/integrations", auth.RoleMember, s.handleAddIntegration, http.MethodPost)
}

// workspaceRoute mounts a workspace-scoped handler behind the role gate
func (s *Server) workspaceRoute(r *mux.Router, path string, minimum auth.Role, handler http.HandlerFunc, method string) {
	r.Handle(path, middleware.RequireRole(minimum, s.metrics)(handler)).Methods(method)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
