package hub

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tracelight/callscope/callscope/pkg/archive"
	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/xlog"
	"github.com/tracelight/callscope/library/go/core/log"
)

// Service is the callscope hub: it ingests live recording sessions,
// persists finished traces to the archive and serves the query API.
type Service struct {
	l       xlog.Logger
	cfg     *Config
	reg     *prometheus.Registry
	metrics *metrics

	archive *archive.Archive
	cache   *lru.Cache

	mu       sync.Mutex
	sessions map[string]*session

	httpRouter http.Handler
}

func NewService(cfg *Config, l xlog.Logger) (*Service, error) {
	cfg.FillDefault()

	arc, err := archive.Open(cfg.Archive.Path, l)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New(cfg.Archive.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("hub: build trace cache: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Service{
		l:        l.WithName("hub"),
		cfg:      cfg,
		reg:      reg,
		metrics:  newMetrics(reg),
		archive:  arc,
		cache:    cache,
		sessions: make(map[string]*session),
	}
	s.httpRouter = s.routes()
	return s, nil
}

func (s *Service) Close() error {
	return s.archive.Close()
}

func (s *Service) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/traces", func(r chi.Router) {
			r.Get("/", s.handleListTraces)
			r.Post("/", s.handleUploadTrace)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTrace)
				r.Delete("/", s.handleDeleteTrace)
				r.Get("/functions", s.handleTraceFunctions)
				r.Get("/frames", s.handleTraceFrames)
			})
		})
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleOpenSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/events", s.handleSessionEvents)
				r.Get("/live", s.handleSessionLive)
				r.Delete("/", s.handleCloseSession)
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

////////////////////////////////////////////////////////////////////////////////

func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signals)

		select {
		case <-ctx.Done():
			return nil
		case sig := <-signals:
			s.l.Warn(ctx, "Shutting down on signal", log.String("signal", sig.String()))
			cancel()
			return nil
		}
	})

	g.Go(func() error {
		return s.runHTTPServer(ctx)
	})

	g.Go(func() error {
		return s.runMetricsServer(ctx)
	})

	g.Go(func() error {
		return s.runSessionReaper(ctx)
	})

	err := g.Wait()
	if closeErr := s.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (s *Service) runHTTPServer(ctx context.Context) error {
	s.l.Info(ctx, "Starting HTTP server", log.String("addr", s.cfg.Listen.HTTPAddr))
	server := &http.Server{Addr: s.cfg.Listen.HTTPAddr, Handler: s.httpRouter}
	return runServer(ctx, server)
}

func (s *Service) runMetricsServer(ctx context.Context) error {
	s.l.Info(ctx, "Starting metrics server", log.String("addr", s.cfg.Listen.MetricsAddr))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	server := &http.Server{Addr: s.cfg.Listen.MetricsAddr, Handler: mux}
	return runServer(ctx, server)
}

func runServer(ctx context.Context, server *http.Server) error {
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Service) runSessionReaper(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.reapIdleSessions(ctx, now)
		}
	}
}

func (s *Service) reapIdleSessions(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var idle []*session
	for _, sess := range s.sessions {
		if sess.idleSince(now) > s.cfg.Sessions.IdleTimeout {
			idle = append(idle, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		s.l.Warn(ctx, "Finalizing idle session",
			log.String("session.id", sess.id),
			log.Duration("idle", sess.idleSince(now)),
		)
		sess.closeTrace()
		if _, err := s.maybeArchive(ctx, sess); err != nil {
			s.l.Error(ctx, "Failed to archive idle session",
				log.String("session.id", sess.id), log.Error(err))
		}
	}
}

////////////////////////////////////////////////////////////////////////////////

func (s *Service) sessionByID(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return nil, errSessionNotFound
}

// maybeArchive moves a finished session's trace into the archive. The
// session is unregistered first so exactly one caller performs the move.
func (s *Service) maybeArchive(ctx context.Context, sess *session) (*archive.Meta, error) {
	if !sess.finished() {
		return nil, nil
	}

	s.mu.Lock()
	_, present := s.sessions[sess.id]
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	if !present {
		return nil, nil
	}

	meta, err := s.archive.Put(ctx, sess.trace, sess.label)
	if err != nil {
		return nil, err
	}
	s.metrics.tracesArchived.Inc()
	s.cache.Add(meta.ID, sess.trace)
	s.l.Info(ctx, "Archived session trace",
		log.String("session.id", sess.id),
		log.String("trace.id", meta.ID),
		log.Int("frames", meta.NumFrames),
	)
	return meta, nil
}

func (s *Service) traceByID(ctx context.Context, id string) (*calltree.Trace, error) {
	if cached, ok := s.cache.Get(id); ok {
		s.metrics.cacheHits.Inc()
		return cached.(*calltree.Trace), nil
	}
	s.metrics.cacheMisses.Inc()

	tree, err := s.archive.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, tree)
	return tree, nil
}
