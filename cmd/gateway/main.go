package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	api "github.com/prepstack/mockcat/internal/api/http"
	"github.com/prepstack/mockcat/internal/attempt"
	auth "github.com/prepstack/mockcat/internal/auth/middleware"
	"github.com/prepstack/mockcat/internal/config"
	"github.com/prepstack/mockcat/internal/db"
	"github.com/prepstack/mockcat/internal/eventlog"
	"github.com/prepstack/mockcat/internal/paper"
	"github.com/prepstack/mockcat/internal/ratelimit"
	"github.com/prepstack/mockcat/internal/rbac"
	"github.com/prepstack/mockcat/internal/telemetry"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	papers := paper.NewSQLStore(dbh)
	attempts := attempt.NewSQLStore(dbh)
	events := eventlog.NewRepo(dbh, cfg.SiteID)
	metrics := telemetry.NewCounter()

	svc := attempt.NewService(papers, attempts,
		attempt.WithEvents(events),
		attempt.WithMetrics(metrics),
	)

	// --- Auth (local JWT for offline/dev) ---
	secret := cfg.AuthHMACSecret
	if secret == "" {
		// Per-process secret: every restart logs everyone out. Good enough
		// offline; set AUTH_HMAC_SECRET in production.
		secret = uuid.NewString()
		log.Printf("AUTH_HMAC_SECRET not set, using ephemeral secret")
	}
	authSvc := auth.NewAuthService(secret)

	startLimiter := ratelimit.New(cfg.AttemptRateLimit, cfg.AttemptRateWindow)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, auth.LoginConfig{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
		}))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		// Editor/admin: load and publish paper bundles
		pr.With(rbac.Require("paper:create")).
			Put("/papers", api.PutPaperHandler(papers))
		pr.With(rbac.Require("paper:publish")).
			Post("/papers/{paperRef}/publish", api.PublishPaperHandler(papers))

		// Delivery view, answer keys stripped
		pr.With(rbac.Require("exam:view")).
			Get("/papers/{paperRef}/exam", api.GetExamHandler(papers))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/papers/{paperRef}/attempts", api.CreateAttemptHandler(svc, startLimiter))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/session", api.InitSessionHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/responses", api.SaveResponseHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/progress", api.SyncProgressHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/pause", api.PauseAttemptHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/results", api.GetResultsHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(svc))

		// Roster management (admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
