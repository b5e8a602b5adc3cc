package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/lexcache/pkg/config"
	"github.com/civicdata/lexcache/pkg/indexer"
	"github.com/civicdata/lexcache/pkg/metrics"
	"github.com/civicdata/lexcache/pkg/resolver"
)

// Server is the HTTP front of the service: public read endpoints backed
// by the resolver, and secret-protected trigger endpoints backed by the
// indexing engine.
type Server struct {
	cfg      *config.Config
	resolver *resolver.Resolver
	engine   *indexer.Engine
	router   *gin.Engine
	httpSrv  *http.Server
}

// NewServer wires the routes. Indexing triggers live under /internal and
// require the shared secret; everything under /api is public reads.
func NewServer(cfg *config.Config, res *resolver.Resolver, eng *indexer.Engine) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), observe())

	s := &Server{
		cfg:      cfg,
		resolver: res,
		engine:   eng,
		router:   router,
	}

	router.GET("/healthz", s.handleHealthz)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		api.GET("/people", s.handlePeople)
		api.GET("/people/lookup", s.handlePersonLookup)
		api.GET("/people/:id", s.handlePerson)
		api.GET("/congresses", s.handleCongresses)
		api.GET("/congresses/:congress/documents", s.handleCongressDocuments)
		api.GET("/congresses/:congress/documents/:key", s.handleDocument)
		api.GET("/committees", s.handleCommittees)
		api.GET("/committees/:code", s.handleCommittee)
	}

	internal := router.Group("/internal/index", requireSecret(cfg.Index.Secret))
	{
		internal.POST("/membership", s.handleIndexMembership)
		internal.POST("/information", s.handleIndexInformation)
		internal.POST("/committees", s.handleIndexCommittees)
		internal.POST("/congresses/:congress/documents", s.handleIndexCongressDocuments)
		internal.POST("/congresses/:congress/committee-documents", s.handleIndexCommitteeRelations)
		internal.POST("/congresses/:congress/documents/:key", s.handleIndexDocumentInfo)
	}

	return s
}

// Start begins serving on addr and blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
