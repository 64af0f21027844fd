package handler

import (
	"net/http"

	"collabnotes-server/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

type Handlers struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Notes     *NoteHandler
	Edits     *EditHandler
	Versions  *VersionHandler
	WebSocket *WebSocketHandler
}

type RouterConfig struct {
	JWTSecret      string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

func NewRouter(h Handlers, cfg RouterConfig, logger hclog.Logger) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins, cfg.AllowedMethods, cfg.AllowedHeaders))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", h.Auth.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", h.Auth.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", h.Auth.Refresh).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	protected.HandleFunc("/users/me", h.Users.GetMe).Methods("GET", "OPTIONS")

	protected.HandleFunc("/notes", h.Notes.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes", h.Notes.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", h.Notes.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", h.Edits.Save).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}", h.Notes.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/notes/{id}/permissions", h.Notes.UpdatePermissions).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/notes/{id}/lock", h.Edits.BeginEdit).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes/{id}/lock", h.Edits.ExtendLock).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}/lock", h.Edits.CancelEdit).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/notes/{id}/lock", h.Edits.LockStatus).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}/lock/force", h.Edits.ForceUnlock).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/notes/{id}/restore", h.Edits.Restore).Methods("POST", "OPTIONS")

	protected.HandleFunc("/notes/{id}/versions", h.Versions.History).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}/versions/{version}", h.Versions.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}/versions/{v1}/compare/{v2}", h.Versions.Compare).Methods("GET", "OPTIONS")

	if h.WebSocket != nil {
		r.HandleFunc("/ws", h.WebSocket.HandleConnection)
	}
	r.HandleFunc("/health", healthHandler).Methods("GET")

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"collabnotes-server"}`))
}
