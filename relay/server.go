package relay

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Hub is the part of the websocket hub the HTTP surface needs.
type Hub interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	Users() []string
}

// Server routes relay HTTP requests.
type Server struct {
	hub    Hub
	router *mux.Router
}

// NewServer creates a relay server backed by hub.
func NewServer(hub Hub) *Server {
	s := &Server{
		hub:    hub,
		router: mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/ws", s.hub.ServeWS)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/users", s.handleListUsers).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users := s.hub.Users()
	respondJSON(w, http.StatusOK, struct {
		Count int      `json:"count"`
		Users []string `json:"users"`
	}{
		Count: len(users),
		Users: users,
	})
}
