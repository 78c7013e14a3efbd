package internal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"library-catalog/internal/auth"
	"library-catalog/internal/config"
	"library-catalog/internal/handlers"
	"library-catalog/internal/models"
	"library-catalog/pkg/importer"
)

//go:embed openapi
var openapiFS embed.FS

type Server struct {
	DB       *sql.DB
	Pool     *pgxpool.Pool
	Router   *chi.Mux
	Sessions *auth.SessionManager
	Store    auth.SessionStore
	Metrics  *Metrics
	Logger   *zap.Logger
	Config   *config.Config

	limiter *auth.LoginLimiter
	now     func() time.Time
}

// OpenDatabase opens the database/sql handle used by the handlers and the
// pgx pool used by the spreadsheet importer, and checks connectivity.
func OpenDatabase(ctx context.Context, dsn string) (*sql.DB, *pgxpool.Pool, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	pool, err := pgxpool.New(pingCtx, dsn)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create pgxpool: %w", err)
	}
	return db, pool, nil
}

// NewServer wires the router. pool may be nil, in which case spreadsheet
// imports answer 503.
func NewServer(db *sql.DB, pool *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	return newServer(db, pool, cfg, logger, &sessionStore{db: db})
}

func newServer(db *sql.DB, pool *pgxpool.Pool, cfg *config.Config, logger *zap.Logger, store auth.SessionStore) (*Server, error) {
	sessions := auth.NewSessionManager(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.Expiry)
	if err := sessions.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("session configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		DB:       db,
		Pool:     pool,
		Router:   chi.NewRouter(),
		Sessions: sessions,
		Store:    store,
		Metrics:  NewMetrics(),
		Logger:   logger,
		Config:   cfg,
		limiter:  auth.NewLoginLimiter(cfg.Login.Rate, cfg.Login.Burst),
		now:      time.Now,
	}

	mapping, err := importer.LoadMapping(cfg.ImportMapping)
	if err != nil {
		return nil, fmt.Errorf("import mapping: %w", err)
	}

	r := s.Router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(s.Metrics.Middleware())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Cache-Control", auth.CSRFHeader},
			AllowCredentials: true,
		}).Handler)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	if cfg.EnableMetrics {
		r.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}
	if cfg.EnableSwagger {
		s.mountDocs(r)
	}

	imports := handlers.NewImportsHandler(pool, mapping, cfg.UploadMaxMB<<20, logger)

	r.Route("/api", func(r chi.Router) {
		r.With(s.limiter.Middleware).Post("/auth/login", s.login)
		r.Post("/auth/logout", s.logout)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.Sessions, s.Store, s))

			r.Get("/auth/profile", s.profile)

			r.Get("/libraries", s.listLibraries)
			r.Post("/libraries", s.createLibrary)
			r.Put("/libraries/edit", s.editLibrary)

			r.Get("/projects", s.listProjects)
			r.Get("/project_libraries", s.listProjectLibraries)
			r.Get("/project_libraries/{id}", s.getProjectLibrary)

			r.Group(func(r chi.Router) {
				r.Use(auth.MustProjectPermissions())
				r.Post("/projects", s.createProject)
				r.Put("/projects/edit", s.editProject)
				r.Delete("/projects", s.deleteProject)

				r.Post("/project_libraries", s.createProjectLibrary)
				r.Put("/project_libraries/{id}", s.updateProjectLibrary)
				r.Patch("/project_libraries/{id}", s.updateProjectLibrary)
				r.Delete("/project_libraries/{id}", s.deleteProjectLibrary)
			})

			r.With(auth.MustStaff()).Post("/imports/excel", imports.UploadExcel)
		})
	})

	return s, nil
}

// Close releases the database handles.
func (s *Server) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *Server) today() models.Date {
	return models.NewDate(s.now())
}

// internalError logs err and answers 500 without leaking details.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.Logger.Error(msg,
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
	auth.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error.")
}

// mountDocs serves the OpenAPI document and a Swagger UI page.
func (s *Server) mountDocs(r chi.Router) {
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI spec", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(data)
	})

	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, docsPage, s.Config.AppName)
	})
}

const docsPage = `<!doctype html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>%s - API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({url: '/openapi.yaml', dom_id: '#swagger-ui', deepLinking: true});
        };
    </script>
</body>
</html>`
