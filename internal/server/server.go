// Package server exposes the gallery over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/dapp"
	"github.com/mrz1836/pharos-avatars/internal/metrics"
	"github.com/mrz1836/pharos-avatars/internal/nft"
	"github.com/mrz1836/pharos-avatars/internal/output"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// ErrGalleryNotReady is returned until the first refresh has committed.
var ErrGalleryNotReady = &avatarerr.AvatarError{ //nolint:gochecknoglobals // sentinel error
	Code:       "GALLERY_NOT_READY",
	Message:    "gallery has not been loaded yet",
	Suggestion: "retry after the first refresh completes",
	ExitCode:   avatarerr.ExitGeneral,
}

const (
	// DefaultRequestTimeout bounds a single API request, including owned scans.
	DefaultRequestTimeout = 60 * time.Second

	shutdownTimeout = 10 * time.Second
)

// Config holds the server settings.
type Config struct {
	Address         string
	AllowedOrigins  []string
	RatePerMinute   int
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
}

// Refresher rebuilds the gallery snapshot.
type Refresher interface {
	Refresh(ctx context.Context) (*nft.Snapshot, error)
}

// OwnedResolver lists the tokens an account owns.
type OwnedResolver interface {
	Owned(ctx context.Context, owner common.Address, counter int) ([]nft.Record, error)
}

// Server serves the gallery and keeps it fresh in the background.
type Server struct {
	cfg        Config
	store      *dapp.Store
	refresher  Refresher
	owned      OwnedResolver
	logger     zerolog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// New builds the router. m may be nil, in which case /metrics is not mounted.
func New(cfg Config, store *dapp.Store, refresher Refresher, owned OwnedResolver, m *metrics.Metrics, logger zerolog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	s := &Server{
		cfg:       cfg,
		store:     store,
		refresher: refresher,
		owned:     owned,
		logger:    logger,
	}

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(requestLogger(logger))
	mux.Use(recoverer(logger))
	mux.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(cfg.RatePerMinute, time.Minute))
	}

	mux.Get("/healthz", s.handleHealth)
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	mux.Route("/api", func(r chi.Router) {
		r.Use(noStore)
		r.Get("/gallery", s.handleGallery)
		r.Get("/gallery/{id}", s.handleToken)
		r.Get("/owned/{address}", s.handleOwned)
		r.Post("/refresh", s.handleRefresh)
	})

	s.handler = newCORSHandler(cfg.AllowedOrigins, mux)
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Refresh rebuilds the snapshot and commits it unless a newer refresh won.
func (s *Server) Refresh(ctx context.Context) (dapp.Generation, bool, error) {
	gen := s.store.Begin()
	snap, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.logger.Error().Err(err).Uint64("generation", uint64(gen)).Msg("gallery refresh failed")
		return gen, false, err
	}
	committed := s.store.Commit(gen, snap)
	minted, mintable, unknown := snap.Counts()
	s.logger.Info().
		Uint64("generation", uint64(gen)).
		Bool("committed", committed).
		Int("minted", minted).
		Int("mintable", mintable).
		Int("unknown", unknown).
		Int("counter", snap.Counter).
		Msg("gallery refreshed")
	return gen, committed, nil
}

// Run serves until ctx is cancelled, refreshing the gallery on the
// configured interval. The first refresh starts immediately.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info().Str("address", s.cfg.Address).Msg("gallery server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.refreshLoop(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down gallery server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("error shutting down gallery server")
		return err
	}
	return nil
}

func (s *Server) refreshLoop(ctx context.Context) {
	_, _, _ = s.Refresh(ctx)
	if s.cfg.RefreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _, _ = s.Refresh(ctx)
		}
	}
}

type counts struct {
	Minted   int `json:"minted"`
	Mintable int `json:"mintable"`
	Unknown  int `json:"unknown"`
}

type galleryResponse struct {
	*nft.Snapshot

	Counts counts      `json:"counts"`
	Status dapp.Status `json:"status"`
}

type ownedResponse struct {
	Owner   string       `json:"owner"`
	Counter int          `json:"mintCounter"`
	Records []nft.Record `json:"records"`
}

type refreshResponse struct {
	Generation uint64 `json:"generation"`
	Committed  bool   `json:"committed"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"avatars-gallery"}`))
}

func (s *Server) handleGallery(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	if snap == nil {
		s.writeError(w, ErrGalleryNotReady)
		return
	}
	minted, mintable, unknown := snap.Counts()
	s.writeJSON(w, http.StatusOK, galleryResponse{
		Snapshot: snap,
		Counts:   counts{Minted: minted, Mintable: mintable, Unknown: unknown},
		Status:   s.store.Status(),
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		s.writeError(w, avatarerr.WithDetails(avatarerr.ErrInvalidInput, map[string]string{"token_id": raw}))
		return
	}
	if s.store.Snapshot() == nil {
		s.writeError(w, ErrGalleryNotReady)
		return
	}
	rec, ok := s.store.Record(id)
	if !ok {
		s.writeError(w, avatarerr.WithDetails(avatarerr.ErrNotFound, map[string]string{"token_id": raw}))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleOwned(w http.ResponseWriter, r *http.Request) {
	owner, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap := s.store.Snapshot()
	if snap == nil {
		s.writeError(w, ErrGalleryNotReady)
		return
	}

	records, err := s.owned.Owned(r.Context(), owner, snap.Counter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ownedResponse{
		Owner:   owner.Hex(),
		Counter: snap.Counter,
		Records: records,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	gen, committed, err := s.Refresh(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, refreshResponse{Generation: uint64(gen), Committed: committed})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("writing response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, httpStatus(err), output.ErrorOutput{Error: output.NewErrorDetail(err)})
}

// httpStatus maps an error onto a response code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrGalleryNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, avatarerr.ErrNetworkError):
		return http.StatusBadGateway
	}
	switch avatarerr.ExitCode(err) {
	case avatarerr.ExitInput:
		return http.StatusBadRequest
	case avatarerr.ExitNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
