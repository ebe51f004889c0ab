package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pitch-pipeline/internal/collab"
	"pitch-pipeline/internal/pipeline"
	"pitch-pipeline/internal/platform/config"
	"pitch-pipeline/internal/platform/logger"
	"pitch-pipeline/internal/platform/metrics"
	"pitch-pipeline/internal/provider"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	tokenID, tokenSecret := config.ProviderCredentials()
	creds := provider.Credentials{TokenID: tokenID, TokenSecret: tokenSecret}

	client := provider.NewClient(config.GetEnv("PROVIDER_API_BASE", provider.DefaultAPIBase), creds, log)
	resolver := provider.NewResolver(client, provider.ResolverConfig{
		MaxRetries: config.GetEnvInt("RESOLVER_MAX_RETRIES", provider.DefaultMaxRetries),
	}, log)

	frames := pipeline.NewFrameGenerator(
		config.GetEnv("FRAME_IMAGE_BASE", pipeline.DefaultImageBase),
		config.GetEnvInt("FRAME_INTERVAL_SECONDS", pipeline.DefaultFrameIntervalSeconds),
	)
	pricing := pipeline.Pricing{
		UploadFlatFee: config.GetEnvFloat("UPLOAD_FLAT_FEE", pipeline.DefaultUploadFlatFee),
		PerFrameFee:   config.GetEnvFloat("PER_FRAME_FEE", pipeline.DefaultPerFrameFee),
	}

	met := metrics.New()
	sessions := pipeline.NewSessionRepository()
	machine := pipeline.NewMachine(pipeline.MachineConfig{
		Sessions:    sessions,
		Resolver:    resolver,
		Transcriber: collab.NewHTTPTranscriber(config.GetEnv("TRANSCRIBER_URL", "")),
		Analyzer:    collab.NewHTTPAnalyzer(config.GetEnv("ANALYZER_URL", "")),
		Frames:      frames,
		Pricing:     pricing,
		Log:         log,
		Metrics:     met,
	})

	h := pipeline.NewHandler(machine, pipeline.EnvironmentCheck{
		CredentialIDPresent:     tokenID != "",
		CredentialSecretPresent: tokenSecret != "",
	}, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(sessions.ActiveSessionCount()) }).ServeHTTP(w, r)
	})
	r.Route("/api", h.Routes)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"credential_id_present", tokenID != "",
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
