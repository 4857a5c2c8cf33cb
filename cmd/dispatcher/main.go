package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compositesvc/internal/config"
	"compositesvc/internal/dispatch"
	"compositesvc/internal/enrich"
	"compositesvc/internal/httpserver"
	"compositesvc/internal/mailer"
	"compositesvc/internal/mqhandler"
	"compositesvc/pkg/logger"
	"compositesvc/pkg/mq"
	"compositesvc/pkg/redis"
	"compositesvc/pkg/util"

	"go.uber.org/zap"
)

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config", zap.Error(err))
	}

	log.Info("Starting notification dispatcher...",
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("users_url", cfg.Users.URL),
		zap.String("smtp_host", cfg.SMTP.Host),
	)

	// Redis backs the not-found retry bound.
	rdb := redis.NewClient(cfg.Redis)
	defer rdb.Close()
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	usersClient := enrich.NewClient(
		cfg.Users.URL,
		cfg.Users.InternalUID,
		time.Duration(cfg.Users.TimeoutSeconds)*time.Second,
	)
	smtpSender := mailer.NewSMTPSender(cfg.SMTP)

	dlq, err := mq.NewDeadLetterPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init DLQ publisher", zap.Error(err))
	}
	defer dlq.Close()

	eventHandler := mqhandler.NewEventCreatedHandler(
		usersClient, smtpSender, retryCounter,
		cfg.Notifier.RetryMax, cfg.Notifier.EventQueue, log,
	)
	userHandler := mqhandler.NewUserCreatedHandler(smtpSender, cfg.Notifier.UserQueue, log)

	supervisor := dispatch.NewSupervisor(cfg.MQ.URL, dlq, log)
	bindings := []dispatch.Binding{
		{Queue: cfg.Notifier.EventQueue, RoutingKey: cfg.Notifier.EventTopic, Handler: eventHandler.Handle},
		{Queue: cfg.Notifier.UserQueue, RoutingKey: cfg.Notifier.UserTopic, Handler: userHandler.Handle},
	}
	if err := supervisor.Start(context.Background(), bindings); err != nil {
		log.Fatal("Failed to start subscription workers", zap.Error(err))
	}
	log.Info("Subscription workers started", zap.Int("count", supervisor.Running()))

	// HTTP server for health checks and metrics.
	router := httpserver.NewRouter(rdb, dlq.IsConnected, supervisor.Running)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Engine,
	}
	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("Notification dispatcher is fully initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notification dispatcher gracefully...")

	grace := time.Duration(cfg.Notifier.ShutdownGraceSeconds) * time.Second
	supervisor.Stop(grace)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Notification dispatcher shutdown complete")
}
