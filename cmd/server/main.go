package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"

	"complaintdesk/internal/auth"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/config"
	"complaintdesk/internal/database"
	"complaintdesk/internal/events"
	"complaintdesk/internal/httpserver"
	"complaintdesk/internal/logging"
	"complaintdesk/internal/mail"
	"complaintdesk/internal/repo"
	"complaintdesk/internal/search"
	"complaintdesk/internal/token"
	"complaintdesk/internal/verify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := database.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	users := repo.NewUserRepo(db)
	tokens := repo.NewTokenRepo(db)
	otps := repo.NewOtpRepo(db)
	complaints := repo.NewComplaintRepo(db)

	codec := token.NewCodec(cfg.JWTSecret)
	mailer := mail.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.FromEmail, cfg.FromName)

	authSvc := &auth.Service{
		Users:      users,
		Tokens:     tokens,
		Codec:      codec,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}
	verifySvc := &verify.Service{
		Users:    users,
		Otps:     otps,
		Codec:    codec,
		Notifier: mailer,
		ResetTTL: cfg.ResetTokenTTL,
	}

	complaintSvc := &complaint.Service{Complaints: complaints}

	if cfg.KafkaAddress != "" {
		producer := events.NewProducer(cfg.KafkaAddress, cfg.KafkaTopic)
		defer producer.Close()
		complaintSvc.Events = producer
	} else {
		logger.Warn("KAFKA_ADDRESS not set, complaint events disabled")
	}

	if cfg.ESURL != "" {
		esClient, err := search.NewClient(cfg)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
		complaintSvc.Indexer = search.NewComplaintIndex(esClient, cfg.ESIndex)
	} else {
		logger.Warn("ES_URL not set, complaint search disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(httpserver.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		Auth:       authSvc,
		Verify:     verifySvc,
		Complaints: complaintSvc,
	})

	go func() {
		if err := e.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}
