package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clemens-chr/tuner/internal/domain"
	"github.com/clemens-chr/tuner/internal/instructor"
)

// EntryStore is the catalog surface the HTTP layer reads and mutates.
type EntryStore interface {
	Get(ctx context.Context, id string) (*domain.Entry, error)
	Update(ctx context.Context, id string, fields map[string]any) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Config tunes the HTTP surface.
type Config struct {
	Addr              string
	CORSOrigins       []string
	MaxUploadBytes    int64
	AllowedImageTypes []string
	AllowedVideoTypes []string
}

// Server exposes the routing core over HTTP.
type Server struct {
	engine *gin.Engine
	ins    *instructor.Instructor
	store  EntryStore
	cfg    Config
	log    *logrus.Entry
}

// New builds the gin engine with all routes registered.
func New(ins *instructor.Instructor, store EntryStore, cfg Config, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	corsCfg.AllowCredentials = !corsCfg.AllowAllOrigins
	corsCfg.AllowHeaders = []string{"*"}
	engine.Use(cors.New(corsCfg))

	s := &Server{
		engine: engine,
		ins:    ins,
		store:  store,
		cfg:    cfg,
		log:    log.WithField("component", "server"),
	}

	engine.GET("/", s.handleRoot)
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/process", s.handleProcess)
		v1.POST("/tasks", s.handleCreateTask)
		v1.GET("/marketplace/:id", s.handleGetEntry)
		v1.PATCH("/marketplace/:id", s.handleUpdateEntry)
		v1.DELETE("/marketplace/:id", s.handleDeleteEntry)
		v1.GET("/health", s.handleHealth)
	}
	return s
}

// Handler exposes the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.engine,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.WithField("addr", s.cfg.Addr).Info("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
