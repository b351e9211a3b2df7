package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	"github.com/scentstock/scentstock/internal/attachments"
	"github.com/scentstock/scentstock/internal/bom"
	"github.com/scentstock/scentstock/internal/dashboard"
	"github.com/scentstock/scentstock/internal/export"
	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/observability"
	"github.com/scentstock/scentstock/internal/platform/httpx"
	"github.com/scentstock/scentstock/internal/products"
	"github.com/scentstock/scentstock/internal/shopify"
	"github.com/scentstock/scentstock/internal/users"
	"github.com/scentstock/scentstock/jobs"
)

// Querier is the subset of the pool used by the health probe.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	DB      Querier
	Metrics *observability.Metrics
	Tokens  *users.TokenManager

	ProductsHandler    *products.Handler
	InventoryHandler   *inventory.Handler
	BOMHandler         *bom.Handler
	ShopifyHandler     *shopify.Handler
	UsersHandler       *users.Handler
	AttachmentsHandler *attachments.Handler
	DashboardHandler   *dashboard.Handler
	ExportHandler      *export.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with ScentStock defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	cfg := params.Config
	if cfg == nil {
		cfg = &Config{}
	}

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", databaseHealth(params.DB, params.Logger))

		// Public: login and the signed marketplace webhook.
		if params.UsersHandler != nil {
			params.UsersHandler.MountAuthRoutes(r)
		}
		if params.ShopifyHandler != nil {
			params.ShopifyHandler.MountRoutes(r)
		}

		r.Group(func(r chi.Router) {
			if cfg.AuthRequired && params.Tokens != nil {
				r.Use(params.Tokens.RequireAuth)
			}
			if params.ProductsHandler != nil {
				params.ProductsHandler.MountRoutes(r)
			}
			if params.InventoryHandler != nil {
				params.InventoryHandler.MountRoutes(r)
			}
			if params.BOMHandler != nil {
				params.BOMHandler.MountRoutes(r)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
			}
			if params.AttachmentsHandler != nil {
				params.AttachmentsHandler.MountRoutes(r)
			}
			if params.DashboardHandler != nil {
				params.DashboardHandler.MountRoutes(r)
			}
			if params.ExportHandler != nil {
				params.ExportHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no such endpoint")
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if cfg.UploadDir != "" {
		fileServer := http.StripPrefix(attachments.PublicPrefix, http.FileServer(http.Dir(cfg.UploadDir)))
		r.Handle(attachments.PublicPrefix+"*", staticCacheHandler(fileServer))
	}

	if dir := cfg.FrontendDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.NotFound(spaHandler(dir))
		} else if params.Logger != nil {
			params.Logger.Info("frontend bundle not found, serving API only", slog.String("dir", dir))
		}
	}

	return r
}

type healthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database,omitempty"`
}

func databaseHealth(db Querier, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			httpx.JSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error", Message: "database not configured", Timestamp: time.Now().UTC()})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		var (
			now      time.Time
			database string
		)
		if err := db.QueryRow(ctx, `SELECT NOW(), current_database()`).Scan(&now, &database); err != nil {
			if logger != nil {
				logger.Warn("database health check failed", slog.Any("error", err))
			}
			httpx.JSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error", Message: "database unreachable", Timestamp: time.Now().UTC()})
			return
		}
		httpx.JSON(w, http.StatusOK, healthResponse{Status: "ok", Message: "database connected", Timestamp: now.UTC(), Database: database})
	}
}

// spaHandler serves files from the built frontend and falls back to
// index.html so client-side routes survive a reload.
func spaHandler(dir string) http.HandlerFunc {
	fileServer := staticCacheHandler(http.FileServer(http.Dir(dir)))
	index := filepath.Join(dir, "index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}
		clean := path.Clean("/" + r.URL.Path)
		if clean != "/" {
			if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))); err == nil && !info.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, index)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets (JS, CSS, fonts, images, uploads) are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
