package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"a55pay-sdk/config"
	"a55pay-sdk/database"
	"a55pay-sdk/handlers"
	"a55pay-sdk/middleware"
	"a55pay-sdk/orchestrator"
	"a55pay-sdk/page"
	"a55pay-sdk/queue"
	"a55pay-sdk/services/a55"
	"a55pay-sdk/services/auth"
	"a55pay-sdk/services/report"
	"a55pay-sdk/store"
	"a55pay-sdk/worker"
)

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		// Registrar apenas requisições com duração longa ou erros
		elapsed := time.Since(start)
		if elapsed > 500*time.Millisecond || wrapper.status >= 400 {
			log.Printf("%s %s %s %d %v", r.Method, r.RequestURI, r.RemoteAddr, wrapper.status, elapsed)
		}
	})
}

func connectDatabase(cfg database.DatabaseConfig) (*database.Connection, error) {
	var db *database.Connection
	var err error
	for retries := 0; retries < 5; retries++ {
		db, err = database.NewConnection(cfg)
		if err == nil {
			return db, nil
		}
		retryDelay := time.Duration(retries+1) * time.Second
		log.Printf("Failed to connect to database (attempt %d/5): %v. Retrying in %v...",
			retries+1, err, retryDelay)
		time.Sleep(retryDelay)
	}
	return nil, err
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds | log.LUTC)
	log.Printf("Server starting with %d CPUs available", runtime.NumCPU())

	cfg := config.Load()

	checks := map[string]handlers.HealthCheck{}
	var reporter report.Reporter = report.LogReporter{}
	var flows store.FlowStore = store.NewMemoryStore()
	var rateLimiter *middleware.RateLimiter

	// Redis: fila de relatórios, estado dos fluxos e rate limiting
	jobQueue, err := queue.NewQueue(cfg.Redis.URL, cfg.Redis.QueueName)
	if err != nil {
		log.Printf("Warning: Redis unavailable, flow state kept in memory: %v", err)
	} else {
		defer jobQueue.Close()
		log.Println("Successfully connected to Redis")
		flows = store.NewRedisStore(jobQueue.Client(), store.DefaultTTL)
		rateLimiter = middleware.NewRateLimiterWithClient(jobQueue.Client())
		checks["redis"] = jobQueue.Ping
	}

	var reportWorker *worker.Worker
	if cfg.DatabaseEnabled() {
		db, err := connectDatabase(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database after retries: %v", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to prepare database schema: %v", err)
		}
		cancel()
		log.Println("Successfully connected to database")
		checks["database"] = db.GetDB().PingContext

		if jobQueue != nil {
			reporter = report.NewQueueReporter(jobQueue, report.Fields{"service": "a55pay-sdk"})

			concurrency := cfg.Redis.WorkerConcurrency
			if concurrency > 8 {
				concurrency = 8
			}
			reportWorker = worker.NewWorker(jobQueue, db)
			reportWorker.Start(concurrency)
		}
	}

	client := a55.NewClient(cfg.A55.BaseURL)
	sessions := handlers.NewSessionManager(
		cfg.Server.SessionSecret,
		len(cfg.Server.AllowedOrigins) > 0,
		cfg.Server.SessionIdleTTL,
		func(env page.Environment) *orchestrator.Session {
			return orchestrator.NewSession(client, env, cfg.Flow, reporter)
		},
	)
	tokens := auth.NewFlowTokenService(cfg.Server.RelaySecret, "a55pay-sdk")

	router := handlers.NewRouter(
		handlers.NewFlowHandler(sessions, tokens, flows),
		handlers.NewRelayHandler(sessions),
		handlers.NewHealthHandler(sessions, checks),
		tokens,
	)
	router.Use(loggingMiddleware)
	router.Use(middleware.SecurityHeadersMiddleware)
	if rateLimiter != nil {
		router.Use(rateLimiter.RateLimitMiddleware())
	}

	sweepStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepStop:
				return
			case <-ticker.C:
				if n := sessions.Sweep(); n > 0 {
					log.Printf("Expired %d idle page sessions", n)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        middleware.CORS(cfg.Server.AllowedOrigins)(router),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	log.Println("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	close(sweepStop)
	log.Println("Closing page sessions...")
	sessions.Close()

	if reportWorker != nil {
		log.Println("Stopping report worker...")
		reportWorker.Stop()
	}

	log.Println("Server exited properly")
}
