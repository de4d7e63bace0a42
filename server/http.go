package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the relay routes
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.Recoverer)
	if s.cors != nil {
		router.Use(s.cors.Middleware, originValidationMiddleware(s.cors))
	}
	router.Get("/health", s.handleHealth)
	router.Group(func(r chi.Router) {
		r.Use(bearerMiddleware(s.token))
		stream := strings.TrimRight(s.sseURI, "/")
		r.Get(stream, s.handleStream)
		r.Get(stream+"/", s.handleStream)
		messages := strings.TrimRight(s.messageURI, "/")
		r.Post(messages, s.handleMessage)
		r.Post(messages+"/", s.handleMessage)
		r.Handle("/metrics", s.metricsHandler())
	})
	return router
}

// HTTP returns an http.Server serving the relay routes; streams end when ctx is cancelled
func (s *Server) HTTP(ctx context.Context, addr string) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}

func (s *Server) metricsHandler() http.Handler {
	if s.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

type health struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	APIKeyConfigured bool   `json:"api_key_configured"`
	Sessions         int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&health{
		Status:           "healthy",
		Service:          s.name,
		APIKeyConfigured: s.token != "",
		Sessions:         s.Sessions(),
	})
}
