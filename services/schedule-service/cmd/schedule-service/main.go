package main

import (
	"context"
	"net/http"
	"time"

	"github.com/tbraddock/clinicflow/libs/config"
	"github.com/tbraddock/clinicflow/libs/db"
	"github.com/tbraddock/clinicflow/libs/httpx"
	"github.com/tbraddock/clinicflow/libs/kafkax"
	otelx "github.com/tbraddock/clinicflow/libs/otel"
	"github.com/tbraddock/clinicflow/libs/runtime"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/availability"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/consumer"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/handlers"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/inbox"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/outbox"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "schedule-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewScheduleRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	gen := availability.NewGenerator(repo)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	startConsumer := func(topic string, handler consumer.Handler) {
		brokers := config.String("KAFKA_BROKERS", "")
		if brokers == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "schedule-service"),
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}
	startConsumer(consumer.TopicAppointmentBooked, consumer.AppointmentBookedHandler(repo))
	startConsumer(consumer.TopicAppointmentCancelled, consumer.AppointmentCancelledHandler(repo))

	defaultDuration := config.Int("DEFAULT_SLOT_DURATION_MINUTES", 30)
	defaultBuffer := config.Int("DEFAULT_SLOT_BUFFER_MINUTES", 0)
	slotsHandler := handlers.NewSlotsHandler(gen, repo, logger, defaultDuration, defaultBuffer)
	scheduleHandler := handlers.NewScheduleHandler(repo, outboxRepo, logger)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/slots", slotsHandler.Slots)
	mux.HandleFunc("/api/v1/schedule/weekly", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			scheduleHandler.GetWeekly(w, r)
			return
		}
		if r.Method == http.MethodPut {
			scheduleHandler.PutWeekly(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	mux.HandleFunc("/api/v1/schedule/blocks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			scheduleHandler.ListBlocks(w, r)
			return
		}
		if r.Method == http.MethodPost {
			scheduleHandler.CreateBlock(w, r)
			return
		}
		if r.Method == http.MethodDelete {
			scheduleHandler.DeleteBlock(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	mux.HandleFunc("/api/v1/practice/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			scheduleHandler.GetProfile(w, r)
			return
		}
		if r.Method == http.MethodPut {
			scheduleHandler.UpdateProfile(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "schedule")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	if err := startGrpcServer(ctx, logger, gen, repo); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
