package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

type apiRoute struct {
	Path    string
	Method  string
	Handler http.HandlerFunc
}

func (s *Server) routes() []apiRoute {
	return []apiRoute{
		{Path: "/health", Method: http.MethodGet, Handler: s.health},
		{Path: "/price", Method: http.MethodGet, Handler: s.price},
		{Path: "/greeks", Method: http.MethodGet, Handler: s.greeks},
		{Path: "/sweep", Method: http.MethodGet, Handler: s.sweep},
		{Path: "/profile", Method: http.MethodGet, Handler: s.profile},
		{Path: "/metrics", Method: http.MethodPost, Handler: s.metrics},
	}
}

func (s *Server) serveRoutes(router *mux.Router) {
	for _, r := range s.routes() {
		router.HandleFunc(r.Path, r.Handler).Methods(r.Method)
	}
	router.Use(s.logRequests)
}
