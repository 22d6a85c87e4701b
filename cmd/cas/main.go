package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/addis-gov/cas/internal/announcement"
	caseapi "github.com/addis-gov/cas/internal/case/api"
	caseinfra "github.com/addis-gov/cas/internal/case/infrastructure"
	"github.com/addis-gov/cas/internal/identity"
	"github.com/addis-gov/cas/internal/ledger"
	"github.com/addis-gov/cas/internal/office"
	"github.com/addis-gov/cas/internal/report"
	sharedauth "github.com/addis-gov/cas/internal/shared/auth"
	"github.com/addis-gov/cas/internal/shared/config"
	"github.com/addis-gov/cas/internal/shared/database"
	"github.com/addis-gov/cas/internal/shared/events"
	"github.com/addis-gov/cas/internal/shared/metrics"
	secmiddleware "github.com/addis-gov/cas/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	Redis  *redis.Client
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	// Pool gauge for the metrics endpoint.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metrics.RecordDBConnections(int(db.Pool.Stat().AcquiredConns()))
		}
	}()

	// Event streaming is optional; the service degrades to not publishing.
	if cfg.EventStore.Enabled {
		bus, err := events.NewBus(cfg.EventStore.ConnectionString())
		if err != nil {
			fmt.Printf("Warning: event store not available: %v\n", err)
			fmt.Println("Running without event streaming...")
		} else {
			app.Bus = bus
			defer bus.Close()
			fmt.Println("Event bus initialized")
		}
	}

	// Report cache is optional; reports fall back to direct queries.
	var reportCache *report.Cache
	if cfg.Redis.Enabled {
		app.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			fmt.Printf("Warning: Redis not available: %v\n", err)
			fmt.Println("Running without report caching...")
			app.Redis = nil
		} else {
			reportCache = report.NewCache(app.Redis, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
			defer app.Redis.Close()
			fmt.Println("Report cache initialized")
		}
	}

	rateLimiter := secmiddleware.NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.CORS)
	r.Use(secmiddleware.MaxBodySize(1 << 20))
	r.Use(rateLimiter.Middleware)
	r.Use(metrics.Middleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	// Repositories
	userRepo := identity.NewRepository(db)
	officeRepo := office.NewRepository(db)
	caseRepo := caseinfra.NewPostgresRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	reportService := report.NewService(db, reportCache)
	announcementRepo := announcement.NewRepository(db)

	// Handlers
	userHandler := identity.NewHandler(userRepo)
	officeHandler := office.NewHandler(officeRepo)
	caseHandler := caseapi.NewHandler(caseRepo, officeRepo, userRepo, app.Bus)
	ledgerHandler := ledger.NewHandler(ledgerRepo, officeRepo, userRepo, app.Bus)
	reportHandler := report.NewHandler(reportService)
	announcementHandler := announcement.NewHandler(announcementRepo)

	r.Route("/api/v1", func(r chi.Router) {
		// Bearer tokens resolve to an actor; anonymous requests pass
		// through and are denied per-operation by the policy engine.
		r.Use(sharedauth.Middleware(cfg.Auth))

		r.Mount("/users", userHandler.Routes())
		r.Mount("/offices", officeHandler.Routes())
		r.Mount("/cases", caseHandler.Routes())
		r.Mount("/transfers", ledgerHandler.TransferRoutes())
		r.Mount("/assignments", ledgerHandler.AssignmentRoutes())
		r.Mount("/reports", reportHandler.Routes())
		r.Mount("/announcements", announcementHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Citizen Case Management Service")
	fmt.Println("============================================")
	fmt.Printf("Environment: %s\n", cfg.Server.Env)
	fmt.Printf("Server:      http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:         http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:      http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Citizen Case Management Service",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(r.Context()); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		if app.Redis != nil {
			if err := app.Redis.Ping(r.Context()).Err(); err != nil {
				checks["redis"] = "not ready: " + err.Error()
			} else {
				checks["redis"] = "ready"
			}
		} else {
			checks["redis"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
