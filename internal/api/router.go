package api

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/turnout-tracker/internal/api/dto"
	"github.com/hugh/turnout-tracker/internal/api/handlers"
	"github.com/hugh/turnout-tracker/internal/api/middleware"
	"github.com/hugh/turnout-tracker/internal/auth"
	"github.com/hugh/turnout-tracker/internal/branding"
	"github.com/hugh/turnout-tracker/internal/tags"
	"github.com/hugh/turnout-tracker/internal/tasks"
	"github.com/hugh/turnout-tracker/internal/users"
	"github.com/hugh/turnout-tracker/internal/voters"
	"github.com/hugh/turnout-tracker/pkg/crypto"
	"github.com/hugh/turnout-tracker/pkg/storage"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
	limiters []*middleware.RateLimiter
}

type RouterConfig struct {
	DB          *gorm.DB
	Redis       *redis.Client // optional
	Logger      *slog.Logger
	JWTService  auth.TokenService
	AuthService auth.Authenticator
	Encryptor   *crypto.Encryptor
	Store       storage.Store

	// Background imports; both nil disables ?async=true.
	Enqueuer   tasks.Enqueuer
	Inspector  tasks.TaskInspector
	StagingDir string

	// LocalUploadsDir is served at /uploads when the local storage backend is used.
	LocalUploadsDir string
	PublicURL       string
	DefaultAppName  string

	AllowedOrigins []string
	RateLimitReqs  int
	RateLimitSecs  int
	LoginRateLimit int
	RequestTimeout time.Duration
	ImportTimeout  time.Duration
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()
	router := &Router{Router: r}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = 10 * time.Minute
	}

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitReqs, cfg.RateLimitSecs)
		router.limiters = append(router.limiters, limiter)
		r.Use(middleware.RateLimit(limiter))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Compress())

	// Services
	voterService := voters.NewService(cfg.DB, cfg.Logger)
	importer := voters.NewImporter(cfg.DB, cfg.Logger)
	tagService := tags.NewService(cfg.DB, cfg.Encryptor, cfg.Logger)
	userService := users.NewService(cfg.DB, cfg.Logger)
	brandingService := branding.NewService(cfg.DB, cfg.Store, cfg.DefaultAppName, cfg.PublicURL, cfg.Logger)

	// Handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.JWTService, cfg.Logger)
	voterHandler := handlers.NewVoterHandler(voterService, cfg.Logger)
	tagHandler := handlers.NewTagHandler(tagService, cfg.Logger)
	userHandler := handlers.NewUserHandler(userService, cfg.Logger)
	importHandler := handlers.NewImportHandler(importer, voterService, cfg.Enqueuer, cfg.Inspector,
		cfg.StagingDir, cfg.MaxUploadBytes, cfg.Logger)
	brandingHandler := handlers.NewBrandingHandler(brandingService, cfg.Logger)

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	if cfg.LocalUploadsDir != "" {
		r.Handle("/uploads/logos/*", http.StripPrefix("/uploads/logos/", noListing(
			http.FileServer(http.Dir(filepath.Join(cfg.LocalUploadsDir, "logos"))))))
	}

	requireAuth := middleware.Auth(cfg.JWTService, cfg.AuthService)
	currentUser := middleware.CurrentUser(cfg.AuthService)

	// Public
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))

		r.Get("/branding", brandingHandler.Get)
		r.Get("/branding/", brandingHandler.Get)

		r.Group(func(r chi.Router) {
			if cfg.LoginRateLimit > 0 {
				limiter := middleware.NewRateLimiter(cfg.LoginRateLimit, 60)
				router.limiters = append(router.limiters, limiter)
				r.Use(middleware.RateLimit(limiter))
			}
			r.Post("/auth/login", authHandler.Login)
		})
	})

	// Authenticated
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(currentUser)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(cfg.RequestTimeout))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)

			r.Get("/voters", voterHandler.Search)
			r.Get("/voters/", voterHandler.Search)

			r.Route("/tags", func(r chi.Router) {
				r.Get("/dashboard", tagHandler.Dashboard)
				r.Get("/dashboard/export-call-list", tagHandler.ExportCallList)
				r.Post("/{voterID}", tagHandler.Tag)
				r.Delete("/{voterID}", tagHandler.Untag)
				r.Patch("/{voterID}/contact", tagHandler.UpdateContact)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			// Imports and delete-all may run long on large rolls.
			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(cfg.ImportTimeout))
				r.Post("/voters/import", importHandler.Import)
				r.Post("/voters/import-voted", importHandler.ImportVoted)
				r.Delete("/voters/delete-all", importHandler.DeleteAll)
			})

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(cfg.RequestTimeout))

				r.Get("/imports/{taskID}", importHandler.Status)

				r.Post("/users/create", userHandler.Create)
				r.Get("/users", userHandler.List)
				r.Get("/users/{userID}/county-access", userHandler.GetCounties)
				r.Put("/users/{userID}/county-access", userHandler.SetCounties)

				r.Get("/tags/overview", tagHandler.Overview)

				r.Post("/branding/logo", brandingHandler.UploadLogo)
				r.Put("/branding", brandingHandler.Update)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, dto.KindNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, dto.KindValidation, "Method not allowed")
	})

	return router
}

// Close stops the rate limiter cleanup goroutines.
func (r *Router) Close() {
	for _, l := range r.limiters {
		l.Stop()
	}
}

// noListing hides directory indexes from the uploads file server.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			writeError(w, http.StatusNotFound, dto.KindNotFound, "Not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}
