// Package devserver serves the build output locally, rebuilding when the
// sources change and telling connected browsers to reload.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/build"
	"github.com/wolfeidau/sitepack/internal/config"
	"github.com/wolfeidau/sitepack/internal/logger"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Builder produces a fresh build output.
type Builder interface {
	Run(ctx context.Context) (*build.Report, error)
}

type Server struct {
	cfg     config.Config
	builder Builder
	hub     *Hub
}

func New(cfg config.Config, builder Builder) *Server {
	return &Server{
		cfg:     cfg,
		builder: builder,
		hub:     NewHub(),
	}
}

// Addr is the listen address, the port does not depend on the mode.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.DevServer.Host, strconv.Itoa(s.cfg.DevServer.Port))
}

// Hub exposes the live reload clients.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler serves the output directory and the live reload endpoint.
func (s *Server) Handler() http.Handler {
	static := http.FileServer(http.Dir(s.cfg.Path(s.cfg.OutDir)))

	var site http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// always serve the latest build
		w.Header().Set("Cache-Control", "no-store")
		static.ServeHTTP(w, r)
	})
	site = gzhttp.GzipHandler(site)
	site = corsHandler(s.cfg.DevServer.CORSOrigins).Handler(site)
	site = logger.Requests(log.Logger)(site)

	mux := http.NewServeMux()
	// websocket upgrades need the raw connection, keep them outside the middleware
	mux.Handle(ReloadPath, s.hub.Handler())
	mux.Handle("/", site)

	return mux
}

func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		return cors.AllowAll()
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	})
}

// Rebuild runs a build and tells browsers to reload when it succeeds.
func (s *Server) Rebuild(ctx context.Context) error {
	report, err := s.builder.Run(ctx)
	if err != nil {
		return err
	}

	sent := s.hub.Broadcast(ctx, ReloadMessage)
	log.Info().
		Str("build_id", report.ID).
		Dur("duration", report.Duration).
		Int("clients", sent).
		Msg("Rebuilt")
	return nil
}

// ListenAndServe builds once, then serves and watches the sources until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Rebuild(ctx); err != nil {
		// keep serving so the next save can fix the build
		log.Error().Err(err).Msg("Initial build failed")
	}

	watcher, err := NewWatcher(s.cfg.Path(s.cfg.DevServer.Watch), DefaultDebounce,
		s.cfg.Path(s.cfg.OutDir), s.cfg.Path(s.cfg.CacheDir))
	if err != nil {
		return err
	}

	srv := configureHTTPServer(s.Addr(), s.Handler())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watcher.Run(gctx, func(ctx context.Context, paths []string) {
			if err := s.Rebuild(ctx); err != nil {
				log.Error().Err(err).Strs("paths", paths).Msg("Rebuild failed")
			}
		})
	})

	g.Go(func() error {
		log.Info().
			Str("url", "http://"+s.Addr()).
			Str("watch", s.cfg.DevServer.Watch).
			Msg("Dev server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		s.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown dev server: %w", err)
		}
		log.Info().Msg("Dev server stopped")
		return nil
	})

	return g.Wait()
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		// websocket connections stay open, only the header read is bounded
		IdleTimeout:    5 * time.Minute,
		MaxHeaderBytes: 8 * 1024, // 8KiB
	}
}
