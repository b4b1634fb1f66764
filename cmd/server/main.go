package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/Bormex-edergustavo/bormex-nuevo/internal/blob"
	"github.com/Bormex-edergustavo/bormex-nuevo/internal/messaging"
	"github.com/Bormex-edergustavo/bormex-nuevo/internal/orders"
	"github.com/Bormex-edergustavo/bormex-nuevo/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "bormex", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("bormex", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	mediaDir := os.Getenv("MEDIA_DIR")
	if mediaDir == "" {
		mediaDir = "media"
	}
	mediaBaseURL := os.Getenv("MEDIA_BASE_URL")
	if mediaBaseURL == "" {
		mediaBaseURL = "http://localhost:" + port + "/media"
	}
	blobs, err := blob.NewFSStore(mediaDir, mediaBaseURL)
	if err != nil {
		logger.Error("failed to initialize blob store", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		producer = messaging.NewProducer(strings.Split(kafkaBrokers, ","), messaging.OrderEventsTopic)
		defer func() { _ = producer.Close() }()
	}

	repo := orders.NewRepository(db, blobs, logger)

	hub := orders.NewHub(repo, logger)
	if err := hub.Listen(postgresURL); err != nil {
		logger.Error("failed to listen for order changes", "error", err)
		os.Exit(1)
	}
	defer hub.Close()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	handler := orders.NewHandler(repo, hub, producer, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders/souvenir", telemetry.WithHTTPRoute(handler.HandleCreateSouvenir))
	mux.HandleFunc("POST /orders/service", telemetry.WithHTTPRoute(handler.HandleCreateService))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("GET /orders/watch", telemetry.WithHTTPRoute(handler.HandleWatchActive))
	mux.HandleFunc("GET /orders/archived", telemetry.WithHTTPRoute(handler.HandleListArchived))
	mux.HandleFunc("GET /orders/archived/watch", telemetry.WithHTTPRoute(handler.HandleWatchArchived))
	mux.HandleFunc("POST /orders/archived/empty", telemetry.WithHTTPRoute(handler.HandleEmptyArchive))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}", telemetry.WithHTTPRoute(handler.HandleUpdate))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(handler.HandleDelete))
	mux.HandleFunc("POST /orders/{id}/archive", telemetry.WithHTTPRoute(handler.HandleArchive))
	mux.HandleFunc("POST /orders/{id}/restore", telemetry.WithHTTPRoute(handler.HandleRestore))
	mux.HandleFunc("POST /orders/{id}/images", telemetry.WithHTTPRoute(handler.HandleAttachImage))
	mux.HandleFunc("DELETE /orders/{id}/images", telemetry.WithHTTPRoute(handler.HandleDetachImage))
	mux.HandleFunc("PATCH /orders/{id}/flags", telemetry.WithHTTPRoute(handler.HandleSetFlags))
	mux.HandleFunc("PATCH /orders/{id}/designs/{index}", telemetry.WithHTTPRoute(handler.HandleUpdateDesign))
	mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(blobs.Dir()))))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "bormex",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout: 10 * time.Second,
		// No write timeout: the watch endpoints hold the response open.
	}

	go func() {
		logger.Info("starting bormex service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
