// Package server exposes an opened database over the remote protocol.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mwantia/blockdb"
	"github.com/mwantia/blockdb/log"
	"github.com/mwantia/blockdb/metrics"
	"github.com/mwantia/blockdb/protocol"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type Server struct {
	db      *blockdb.DB
	log     *log.Logger
	limiter *rate.Limiter
	mux     *http.ServeMux

	maxBodySize int64
}

func NewServer(db *blockdb.DB, opts ...ServerOption) (*Server, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	s := &Server{
		db:          db,
		log:         options.Logger.Named("server"),
		mux:         http.NewServeMux(),
		maxBodySize: options.MaxBodySize,
	}
	if options.RateLimit > 0 {
		s.limiter = rate.NewLimiter(options.RateLimit, options.Burst)
	}

	s.mux.HandleFunc("POST "+protocol.Endpoint, s.limit(s.handleOperation))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /health", s.handleHealth)

	return s, nil
}

// Handler returns the root handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve accepts connections on lis until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Listening on '%s'", lis.Addr())
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		s.log.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			metrics.RateLimited.Inc()
			s.writeError(w, protocol.NewError(protocol.NameRateLimited, "blockdb: too many requests"))
			return
		}

		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","backend":%q}`, s.db.Backend().Name())
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodySize+1))
	if err != nil {
		s.writeError(w, protocol.NewError(protocol.NameBadRequest, "failed to read body: "+err.Error()))
		return
	}
	if int64(len(body)) > s.maxBodySize {
		s.writeError(w, protocol.NewError(protocol.NameBadRequest, "request body too large"))
		return
	}

	var req protocol.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, protocol.NewError(protocol.NameBadRequest, "invalid json: "+err.Error()))
		return
	}

	start := time.Now()
	result, err := s.execute(r.Context(), &req)
	metrics.OperationSeconds.WithLabelValues(string(req.Operation)).Observe(time.Since(start).Seconds())

	if err != nil {
		perr := protocol.FromError(err)
		metrics.Operations.WithLabelValues(string(req.Operation), perr.Name).Inc()

		s.log.With("operation", req.Operation).With("path", req.Path).Debug("Operation failed: %v", err)
		s.writeError(w, perr)
		return
	}

	metrics.Operations.WithLabelValues(string(req.Operation), "OK").Inc()

	raw, err := json.Marshal(result)
	if err != nil {
		s.writeError(w, protocol.NewError(protocol.NameInternal, err.Error()))
		return
	}

	s.write(w, http.StatusOK, &protocol.Response{Result: raw})
}

func (s *Server) writeError(w http.ResponseWriter, perr *protocol.Error) {
	s.write(w, perr.StatusCode(), &protocol.Response{Error: perr})
}

func (s *Server) write(w http.ResponseWriter, status int, resp *protocol.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("Failed to write response: %v", err)
	}
}
