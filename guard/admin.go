package guard

import "net/http"

// AdminHandler returns the administrative surface for g:
//
//	GET  /admin/stats
//	POST /admin/circuits/{service}/reset
//	POST /admin/ratelimits/reset
//	POST /admin/cache/clear
//	POST /admin/maintenance
//
// It exposes counters and circuit states only, never cached contents or
// rate limit keys. Mount it behind whatever access control the deployment
// uses.
func AdminHandler(g *Guard) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /admin/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, g.Stats())
	})

	mux.HandleFunc("POST /admin/circuits/{service}/reset", func(w http.ResponseWriter, r *http.Request) {
		service := r.PathValue("service")
		g.ResetCircuit(service)
		writeJSON(w, http.StatusOK, g.Circuit(service))
	})

	mux.HandleFunc("POST /admin/ratelimits/reset", func(w http.ResponseWriter, r *http.Request) {
		g.ResetRateLimits()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /admin/cache/clear", func(w http.ResponseWriter, r *http.Request) {
		g.ClearCache()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /admin/maintenance", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, g.RunMaintenance())
	})

	return mux
}
