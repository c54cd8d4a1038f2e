// Package api exposes the HTTP surface: job submission, job queries, the XLSX
// report and signed document downloads.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dharsanguruparan/docvalidator/internal/config"
	"github.com/dharsanguruparan/docvalidator/internal/filestore"
	"github.com/dharsanguruparan/docvalidator/internal/intake"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
	"github.com/dharsanguruparan/docvalidator/internal/model"
	"github.com/dharsanguruparan/docvalidator/internal/signing"
)

// RequestIDHeader carries the correlation id of a request.
const RequestIDHeader = "X-Request-ID"

// Creator submits new analysis jobs.
type Creator interface {
	Create(ctx context.Context, req intake.Request) (model.AnalysisJob, error)
}

// Reader is the query side of the job store.
type Reader interface {
	View(ctx context.Context, jobID string) (model.JobView, error)
	GetDocument(ctx context.Context, documentID string) (model.Document, error)
}

// Presigner is implemented by storage backends that can hand out their own
// time-limited URLs.
type Presigner interface {
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Server exposes HTTP endpoints for analyses and their documents.
type Server struct {
	cfg     *config.Config
	creator Creator
	reader  Reader
	files   filestore.Storage
	signer  *signing.Signer
	log     *slog.Logger
	engine  *gin.Engine
	server  *http.Server
	once    sync.Once
}

// New constructs a Server and its routes.
func New(cfg *config.Config, creator Creator, reader Reader, files filestore.Storage, signer *signing.Signer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		cfg:     cfg,
		creator: creator,
		reader:  reader,
		files:   files,
		signer:  signer,
		log:     logger,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the gin engine, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.engine,
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info("api.listen", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery(), requestID(), accessLog(s.log), cors())

	v1 := r.Group("/v1")
	v1.GET("/health", s.handleHealth)
	v1.POST("/analyses", s.handleCreate)
	v1.GET("/analyses/:job_id", s.handleGet)
	v1.GET("/analyses/:job_id/report.xlsx", s.handleReport)
	v1.GET("/analyses/:job_id/documents/:document_type/url", s.handleSignedURL)
	v1.GET("/files/:document_id", s.handleDownload)
	return r
}

// requestID reuses the caller's X-Request-ID or mints one, echoes it back and
// stores it in the request context as the correlation id.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"correlation_id", logging.CorrelationID(c.Request.Context()),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type,Authorization,"+RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", RequestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
