package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"agentdesk/internal/core"
	"agentdesk/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// History is the read side of the submission history.
type History interface {
	GetSubmission(ctx context.Context, id string) (*core.Submission, error)
	ListSubmissions(ctx context.Context, limit, offset int) ([]*core.Submission, error)
}

// Deps are the collaborators of the HTTP server. MCP is optional.
type Deps struct {
	Session   *core.Session
	History   History
	MCP       http.Handler
	Logger    *slog.Logger
	Location  *time.Location
	AuthToken string
}

// Server holds the HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	session    *core.Session
	history    History
	mcp        http.Handler
	logger     *slog.Logger
	location   *time.Location
	authToken  string
}

// NewServer constructs the HTTP server for the web page and the JSON API.
func NewServer(addr string, deps Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	location := deps.Location
	if location == nil {
		location = time.Local
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:    router,
		session:   deps.Session,
		history:   deps.History,
		mcp:       deps.MCP,
		logger:    logger,
		location:  location,
		authToken: deps.AuthToken,
	}
	s.registerRoutes(web.Files())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(staticFS fs.FS) {
	fileServer := http.StripPrefix("/assets/", http.FileServer(http.FS(staticFS)))

	s.router.Get("/", s.handleIndex(staticFS))
	s.router.Handle("/assets/*", fileServer)

	if s.mcp != nil {
		s.router.Handle("/mcp", AuthMiddleware(s.authToken)(s.mcp))
	}

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(s.authToken))

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Put("/input", s.handleSetInput)
			r.Post("/quick/{quickID}", s.handleQuickTask)
			r.Post("/submit", s.handleSubmit)
			r.Post("/key", s.handleKey)
		})
		r.Post("/status/probe", s.handleProbe)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleListHistory)
			r.Get("/{submissionID}", s.handleGetHistory)
		})

		r.Get("/ws", s.handleWS)
	})
}

func (s *Server) handleIndex(staticFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := staticFS.Open("index.html")
		if err != nil {
			http.Error(w, "index not found", http.StatusInternalServerError)
			return
		}
		defer file.Close()
		modTime := time.Now()
		if info, err := fs.Stat(staticFS, "index.html"); err == nil {
			modTime = info.ModTime()
		}
		if reader, ok := file.(io.ReadSeeker); ok {
			http.ServeContent(w, r, "index.html", modTime, reader)
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "failed to load index", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, "index.html", modTime, bytes.NewReader(data))
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
