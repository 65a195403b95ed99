package server

import (
	"net/http"
	"time"

	"github.com/Tomlord1122/todo-api/internal/config"
	"github.com/Tomlord1122/todo-api/internal/database"
	"github.com/Tomlord1122/todo-api/internal/service"
)

type Server struct {
	todoService    service.TodoService
	db             database.Service
	allowedOrigins []string
}

// NewServer wires the todo service and datastore health into an
// *http.Server listening on cfg.Addr().
func NewServer(cfg *config.Config, todoService service.TodoService, dbService database.Service) *http.Server {
	appServer := &Server{
		todoService:    todoService,
		db:             dbService,
		allowedOrigins: cfg.AllowedOrigins,
	}

	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
