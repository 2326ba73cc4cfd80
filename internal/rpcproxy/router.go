package rpcproxy

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter serves the health and metrics endpoints and forwards every other
// path to the node
func NewRouter(p *Proxy) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", p.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.PathPrefix("/").Handler(p.Handler())
	return router
}

func (p *Proxy) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"target": p.target,
	})
}
