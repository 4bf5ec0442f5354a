package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/corescout/config"
	"github.com/meghashyamc/corescout/db/kvdb"
	"github.com/meghashyamc/corescout/db/searchdb"
	"github.com/meghashyamc/corescout/logger"
	"github.com/meghashyamc/corescout/services/export"
	"github.com/meghashyamc/corescout/services/extract"
	"github.com/meghashyamc/corescout/services/index"
	"github.com/meghashyamc/corescout/services/search"
	"github.com/meghashyamc/corescout/validation"
)

type server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	kvdb       kvdb.DB
	searchdb   searchdb.DB
	validator  *validation.Validator
	registry   *extract.Registry
	tracker    *index.Tracker
	search     *search.Service
	export     *export.Service
	logger     logger.Logger
}

// Run serves the HTTP API until ctx is cancelled or the process is
// interrupted, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config, logger logger.Logger) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)

	defer cancel()

	s := &server{
		cfg:    cfg,
		logger: logger,
	}
	if err := s.setupDependencies(ctx); err != nil {
		return err
	}
	s.setupRouter()
	serveErr := s.setupHTTPServer(cancel)
	s.setupGracefulShutdown(ctx)

	return <-serveErr
}

func (s *server) setupDependencies(ctx context.Context) error {
	var err error
	s.kvdb, err = kvdb.New(s.logger, s.cfg.GetKVDBPath())
	if err != nil {
		s.logger.Error("error creating kvDB", "err", err.Error())
		return err
	}
	s.searchdb, err = searchdb.Open(s.logger, s.cfg.GetStorePath())
	if err != nil {
		s.logger.Error("error creating searchDB", "err", err.Error())
		s.kvdb.Close()
		return err
	}
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		s.close()
		return err
	}
	s.search, err = search.New(s.logger, s.cfg, s.searchdb)
	if err != nil {
		s.logger.Error("error creating search service", "err", err.Error())
		s.close()
		return err
	}

	s.registry = extract.Default()
	builder := index.NewBuilder(s.logger, s.searchdb)
	s.tracker = index.NewTracker(ctx, s.logger, index.New(s.logger, s.cfg, builder, s.registry), s.kvdb)
	s.export = export.New(s.logger, s.cfg, s.search.WithMaxLimit(s.cfg.GetMaxExportLimit()))

	return nil

}

func (s *server) setupRouter() {
	router := newRouter(s.cfg.GetAllowedOrigins(), s.cfg.GetMaxBodyBytes())

	router.Use(loggingMiddleware(s.logger))

	s.setupRoutes(router)

	s.router = router
}

func (s *server) setupHTTPServer(stop context.CancelFunc) <-chan error {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "err", err.Error())
			serveErr <- err
			stop()
			return
		}
		serveErr <- nil
	}()
	return serveErr
}

func (s *server) setupGracefulShutdown(ctx context.Context) {

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx := context.Background()
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err)
		}
		s.tracker.Wait()
		s.close()
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
}

func (s *server) close() {
	if s.kvdb != nil {
		if err := s.kvdb.Close(); err != nil {
			s.logger.Error("error closing kvDB", "err", err.Error())
		}
	}
	if s.searchdb != nil {
		if err := s.searchdb.Close(); err != nil {
			s.logger.Error("error closing searchDB", "err", err.Error())
		}
	}
}
