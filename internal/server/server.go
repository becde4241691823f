// Package server exposes the HTTP API: catalog search and CRUD, tag
// management, ingestion triggers, health and metrics.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ontomart/ontomart/api/schemas"
	"github.com/ontomart/ontomart/internal/config"
)

// Catalog is the slice of the catalog store the API depends on.
type Catalog interface {
	CreateBatch(ctx context.Context, ownerEmail string, inputs []schemas.OntologyInput) ([]schemas.Ontology, int, error)
	Search(ctx context.Context, query string, limit, offset int) (*schemas.SearchResult, error)
	Get(ctx context.Context, id uuid.UUID) (*schemas.Ontology, error)
	Update(ctx context.Context, id uuid.UUID, upd schemas.OntologyUpdate) (*schemas.Ontology, error)
	Delete(ctx context.Context, ownerEmail string, ids []uuid.UUID) (int64, error)
	Like(ctx context.Context, id uuid.UUID) (int64, error)
	ListTags(ctx context.Context) ([]string, error)
	AddTags(ctx context.Context, names []string) (int64, error)
}

// Ingestor runs an ingestion and returns the accumulated counters.
type Ingestor interface {
	Ingest(ctx context.Context, source, ontologyID string) (schemas.IngestStats, error)
}

// Pinger reports datastore connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server owns the router, middleware chain, and the underlying http.Server.
type Server struct {
	cfg      config.ServerConfig
	log      *zap.Logger
	catalog  Catalog
	ingestor Ingestor
	pinger   Pinger
	httpSrv  *http.Server
}

// New assembles the server with its middleware chain. The CORS policy and
// identity header come from the configuration.
func New(cfg config.ServerConfig, cat Catalog, ing Ingestor, pinger Pinger, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		log:      logger.Named("server"),
		catalog:  cat,
		ingestor: ing,
		pinger:   pinger,
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedHeaders([]string{"Content-Type", cfg.UserHeader}),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		}),
	)

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      cors(s.newRouter()),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// newRouter registers every route behind the request logging middleware.
func (s *Server) newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.requestLogger)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet).Name("GetHealth")
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ontologies", s.handleSearchOntologies).Methods(http.MethodGet).Name("SearchOntologies")
	api.HandleFunc("/ontologies", s.handleCreateOntologies).Methods(http.MethodPost).Name("CreateOntologies")
	api.HandleFunc("/ontologies", s.handleDeleteOntologies).Methods(http.MethodDelete).Name("DeleteOntologies")
	api.HandleFunc("/ontologies/{id}", s.handleGetOntology).Methods(http.MethodGet).Name("GetOntology")
	api.HandleFunc("/ontologies/{id}", s.handleUpdateOntology).Methods(http.MethodPut).Name("UpdateOntology")
	api.HandleFunc("/ontologies/{id}/like", s.handleLikeOntology).Methods(http.MethodPost).Name("LikeOntology")
	api.HandleFunc("/tags", s.handleListTags).Methods(http.MethodGet).Name("ListTags")
	api.HandleFunc("/tags", s.handleAddTags).Methods(http.MethodPost).Name("AddTags")
	api.HandleFunc("/ingest", s.handleIngest).Methods(http.MethodPost).Name("Ingest")

	return router
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info("HTTP server shutting down")
	return s.httpSrv.Shutdown(shutdownCtx)
}

// Handler exposes the full middleware chain; tests drive it directly.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }
