package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/trashposts/post-search/internal/config"
	"github.com/trashposts/post-search/internal/router"
	"github.com/trashposts/post-search/internal/service"
)

// API is the HTTP query service (mode api).
type API struct {
	cfg     *config.Config
	log     *zap.Logger
	httpSrv *http.Server
	postSvc service.PostServicer
}

// NewAPI connects to the search backend and builds the HTTP server.
func NewAPI(cfg *config.Config, log *zap.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	postSvc, err := service.NewPostService(cfg, log.Named("service"))
	if err != nil {
		return nil, fmt.Errorf("post service: %w", err)
	}
	return newAPI(cfg, log, postSvc), nil
}

func newAPI(cfg *config.Config, log *zap.Logger, postSvc service.PostServicer) *API {
	handler := router.New(router.Deps{
		Service:          postSvc,
		Log:              log.Named("http"),
		CORSOrigins:      cfg.CORSOrigins,
		ImportMaxBytes:   cfg.ImportMaxBytes,
		ImportRatePerMin: cfg.ImportRatePerMin,
	})

	readTimeout, writeTimeout := serverTimeouts(cfg)
	httpSrv := &http.Server{
		Addr:              cfg.AppHost + ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return &API{
		cfg:     cfg,
		log:     log,
		httpSrv: httpSrv,
		postSvc: postSvc,
	}
}

// minUploadRate is the slowest client upload an import of ImportMaxBytes
// must still fit into.
const minUploadRate = 256 << 10

// serverTimeouts sizes the server so a full-size import can be both read
// and answered.
func serverTimeouts(cfg *config.Config) (read, write time.Duration) {
	read = 30*time.Second + time.Duration(cfg.ImportMaxBytes/minUploadRate)*time.Second
	write = cfg.ImportTimeout + 30*time.Second
	if floor := cfg.Elasticsearch.Timeout + 30*time.Second; write < floor {
		write = floor
	}
	return read, write
}

// Run serves HTTP and blocks until ctx is cancelled or the listener fails.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("HTTP server listening",
		zap.String("addr", a.httpSrv.Addr),
		zap.String("index", a.cfg.Elasticsearch.Index),
		zap.String("swagger", base+router.PathSwagger),
		zap.String("health", base+router.PathHealth),
		zap.String("search", base+"/api/search"))

	serveErr := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
