package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kzcare/crm/pkg/adminview"
	"github.com/kzcare/crm/pkg/audit"
	"github.com/kzcare/crm/pkg/auth"
	"github.com/kzcare/crm/pkg/httputil"
	"github.com/kzcare/crm/pkg/middleware"
	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/perms"
	"github.com/kzcare/crm/pkg/pipeline"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

// Blob is the slice of the document blob store the handlers need.
// *postgres.BlobStore implements it; tests use an in-memory fake.
type Blob interface {
	Put(ctx context.Context, motherID int64, kind models.DocumentKind, filename string, body io.Reader, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Deps carries everything the server wires together.
type Deps struct {
	Perms     *perms.Store
	Checker   *perms.Checker
	Pipeline  *pipeline.Service
	Tokens    *auth.Store
	Users     *postgres.UserStore
	Mothers   *postgres.MotherStore
	Bans      *postgres.BanStore
	Planned   *postgres.PlannedStore
	Documents *postgres.DocumentStore
	Blobs     Blob
	Audit     *audit.DBLogger
	Logger    *observability.Logger
}

// Server routes operator requests to the panels and the pipeline.
type Server struct {
	router *mux.Router
	deps   Deps

	motherPanel     *adminview.MotherPanel
	banAddPanel     *adminview.BanAddPanel
	banListPanel    *adminview.BanListPanel
	firstVisitPanel *adminview.FirstVisitPanel
	documentPanel   *adminview.DocumentPanel
}

// NewServer creates the server and registers its routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		router:          mux.NewRouter(),
		deps:            deps,
		motherPanel:     adminview.NewMotherPanel(deps.Mothers, deps.Checker, deps.Perms),
		banAddPanel:     adminview.NewBanAddPanel(deps.Checker),
		banListPanel:    adminview.NewBanListPanel(deps.Bans, deps.Checker, deps.Perms, deps.Pipeline),
		firstVisitPanel: adminview.NewFirstVisitPanel(deps.Mothers, deps.Planned, deps.Checker, deps.Perms),
		documentPanel:   adminview.NewDocumentPanel(deps.Documents, deps.Checker),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RecoveryMiddleware)
	s.router.Use(httputil.RequestIDMiddleware)

	authMW := middleware.NewAuthMiddleware(s.deps.Tokens, s.deps.Users, false)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(authMW.Handler)
	v1.Use(func(next http.Handler) http.Handler { return middleware.RequireStaff(next) })

	// Tokens
	v1.HandleFunc("/auth/tokens", s.issueToken).Methods("POST")
	v1.HandleFunc("/auth/tokens", s.listTokens).Methods("GET")
	v1.HandleFunc("/auth/tokens/{id}", s.revokeToken).Methods("DELETE")

	// Mothers
	v1.HandleFunc("/mothers", s.listMothers).Methods("GET")
	v1.HandleFunc("/mothers", s.createMother).Methods("POST")
	v1.HandleFunc("/mothers/{id}", s.getMother).Methods("GET")
	v1.HandleFunc("/mothers/{id}", s.updateMother).Methods("PUT")
	v1.HandleFunc("/mothers/{id}", s.deleteMother).Methods("DELETE")

	// Stage transitions
	v1.HandleFunc("/mothers/{id}/ban", s.moveToBan).Methods("POST")
	v1.HandleFunc("/mothers/{id}/first-visit", s.moveToFirstVisit).Methods("POST")
	v1.HandleFunc("/mothers/{id}/trash", s.moveToTrash).Methods("POST")
	v1.HandleFunc("/mothers/{id}/return-from-trash", s.returnFromTrash).Methods("POST")
	v1.HandleFunc("/mothers/{id}/revoke", s.revokeMother).Methods("POST")
	v1.HandleFunc("/mothers/{id}/return", s.returnMother).Methods("POST")

	// Ban panel
	v1.HandleFunc("/bans", s.listBans).Methods("GET")
	v1.HandleFunc("/bans/{id}/out-from-ban", s.outFromBan).Methods("POST")

	// First-visit panel
	v1.HandleFunc("/first-visit", s.listFirstVisit).Methods("GET")

	// Panel field layouts
	v1.HandleFunc("/panels/{panel}/fields", s.panelFields).Methods("GET")

	// Documents
	v1.HandleFunc("/mothers/{id}/documents", s.uploadDocument).Methods("POST")
	v1.HandleFunc("/mothers/{id}/documents", s.listDocuments).Methods("GET")
	v1.HandleFunc("/documents/{id}/download", s.downloadDocument).Methods("GET")
	v1.HandleFunc("/documents/{id}", s.deleteDocument).Methods("DELETE")

	// Audit trail, superusers only
	v1.Handle("/audit", middleware.RequireSuperuser(http.HandlerFunc(s.searchAudit))).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// explicitManager resolves the optional manager_username a request may
// carry. A missing name means the selector decides.
func (s *Server) explicitManager(r *http.Request, username string) (*models.User, bool) {
	if username == "" {
		return nil, true
	}
	user, err := s.deps.Users.GetByUsername(r.Context(), username)
	if err != nil {
		return nil, false
	}
	return user, true
}

func (s *Server) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, postgres.ErrNotFound):
		httputil.WriteNotFoundError(w, "record not found")
	case errors.Is(err, pipeline.ErrWrongStage), errors.Is(err, pipeline.ErrNoOpenBan):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, perms.ErrDenied):
		s.recordDenied(r, "permission denied")
		httputil.WriteForbidden(w, "permission denied")
	default:
		httputil.WriteInternalError(w, err)
	}
}

// recordDenied leaves an audit trace for refused requests. Failures to
// write the trace never surface to the caller.
func (s *Server) recordDenied(r *http.Request, reason string) {
	var userID *int64
	if caller := middleware.UserFromRequest(r); caller != nil {
		userID = &caller.ID
	}
	if err := audit.LogDenied(r.Context(), s.deps.Audit, userID, audit.ResourceTypeEndpoint,
		r.URL.Path, reason); err != nil && s.deps.Logger != nil {
		s.deps.Logger.WithError(err).Warn("audit write failed")
	}
}
