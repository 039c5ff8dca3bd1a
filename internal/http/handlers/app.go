package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/storage"
	"server/internal/timemachine"
)

// App bundles the dependencies shared by all HTTP handlers.
type App struct {
	TimeMachine *timemachine.Service
	Uploads     *storage.UploadStore
	Config      *infra.Config
	Logger      infra.Logger
}

// NewApp creates the handler container.
func NewApp(svc *timemachine.Service, uploads *storage.UploadStore, cfg *infra.Config, logger infra.Logger) *App {
	return &App{TimeMachine: svc, Uploads: uploads, Config: cfg, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
