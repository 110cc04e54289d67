package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vidbox/src/handler/api"
	"vidbox/src/player"
	"vidbox/src/util"
)

// New assembles the root router: the REST API, the Prometheus scrape
// endpoint and a version probe.
func New(build, version string, players player.List) chi.Router {
	service := chi.NewRouter()
	service.Use(util.LogHandler)
	service.Use(middleware.Compress(5))

	service.Route("/api", func(r chi.Router) {
		api.InitRouter(r, players)
	})
	service.Method(http.MethodGet, "/metrics", promhttp.Handler())
	service.Get("/version", versionHandler(build, version))

	return service
}

func versionHandler(build, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": version,
			"build":   build,
		})
	}
}
