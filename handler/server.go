package handler

import (
	"net/http"

	"HealthIntake/metrics"
	"HealthIntake/repo"
	"HealthIntake/service"

	"github.com/rs/zerolog"
)

const defaultMaxBody = 2 << 20

// Server exposes the questionnaire API, the content CMS and the web app
type Server struct {
	intake    *service.Intake
	content   *repo.ContentStore
	admin     *AdminGate
	staticDir string
	maxBody   int64
	metrics   bool
	logger    zerolog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithStaticDir serves the built web app from dir
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithMaxBody limits request bodies to n bytes
func WithMaxBody(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithMetrics exposes /metrics and /api/stats
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.metrics = enabled }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func NewServer(intake *service.Intake, content *repo.ContentStore, admin *AdminGate, opts ...Option) *Server {
	s := &Server{
		intake:  intake,
		content: content,
		admin:   admin,
		maxBody: defaultMaxBody,
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes returns the full HTTP handler
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	public := func(methods map[string]http.HandlerFunc) http.Handler {
		return endpoint{methods: methods, cors: true}
	}
	private := func(methods map[string]http.HandlerFunc) http.Handler {
		return endpoint{methods: methods}
	}

	mux.Handle("/api/questionnaire/{type}", private(one(http.MethodGet, s.handleForm)))
	mux.Handle("/api/preview", public(one(http.MethodPost, s.handlePreview)))
	mux.Handle("/api/save-questionnaire", public(one(http.MethodPost, s.handleSave)))
	mux.Handle("/api/get-questionnaire", private(one(http.MethodGet, s.handleGet)))
	mux.Handle("/api/delete-questionnaire", public(one(http.MethodDelete, s.handleDelete)))
	mux.Handle("/api/search-questionnaires", private(one(http.MethodPost, s.handleSearch)))
	mux.Handle("/api/get-questionnaires-by-ids", private(one(http.MethodPost, s.handleByIDs)))
	mux.Handle("/api/update-questionnaire-message-id", public(one(http.MethodPost, s.handleSetMessageID)))
	mux.Handle("/api/delete-telegram-message", public(one(http.MethodPost, s.handleDeleteMessage)))

	mux.Handle("/api/admin-login", private(one(http.MethodPost, s.admin.handleLogin(s.maxBody))))
	mux.Handle("/api/admin-logout", private(one(http.MethodPost, s.admin.handleLogout)))
	mux.Handle("/api/admin-status", private(one(http.MethodGet, s.admin.handleStatus)))
	mux.Handle("/api/content", private(map[string]http.HandlerFunc{
		http.MethodGet:  s.handleContentGet,
		http.MethodPost: s.handleContentUpdate,
	}))

	mux.Handle("/healthz", private(one(http.MethodGet, handleHealth)))
	if s.metrics {
		mux.Handle("/metrics", metrics.PromHandler())
		mux.Handle("/api/stats", private(one(http.MethodGet, metrics.JSONHandler().ServeHTTP)))
	}

	mux.Handle("/api/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	}))
	if s.staticDir != "" {
		mux.Handle("/", newSPAHandler(s.staticDir))
	}

	return withAccessLog(s.logger, mux)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
