package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// readinessChecker reports whether the relay can reach the network.
type readinessChecker interface {
	GetBlockCount() (uint32, error)
}

func newRouter(log *zap.Logger, gatherer prometheus.Gatherer, chain readinessChecker) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		_, err := chain.GetBlockCount()
		if err != nil {
			log.Warn("readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("blockchain is unreachable: " + err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return r
}
