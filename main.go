package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/assocvote/auth"
	"github.com/danielhkuo/assocvote/cliparse"
	"github.com/danielhkuo/assocvote/db"
	"github.com/danielhkuo/assocvote/handlers"
	"github.com/danielhkuo/assocvote/middleware"
	"github.com/danielhkuo/assocvote/notify"
	"github.com/danielhkuo/assocvote/router"
)

func main() {
	// hash-key prints the bcrypt hash for an operators file entry
	if len(os.Args) > 1 && os.Args[1] == "hash-key" {
		if len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: assocvote hash-key <key>")
			os.Exit(2)
		}
		hash, err := auth.HashOperatorKey(os.Args[2], bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	if err := cliparse.LoadEnv(".env"); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
	if len(cfg.Operators) == 0 {
		slog.Warn("no operators configured, admin routes will refuse every request")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect and create schema
	dbConn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err, "type", cfg.DatabaseType)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.CreateSchema(ctx, dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	gateway, err := newGateway(cfg)
	if err != nil {
		slog.Error("notification setup failed", "error", err)
		os.Exit(1)
	}
	slog.Info("OTP delivery", "channels", gateway.Enabled())

	var alerter notify.Alerter
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramAlerter(cfg.Telegram.BotToken, cfg.Telegram.AlertChatID)
		if err != nil {
			slog.Error("telegram alerter failed, alerts go to the log", "error", err)
		} else {
			alerter = tg
		}
	}

	// Create router
	svc := handlers.NewServices(dbConn, cfg, gateway, alerter)
	mux := router.NewRouter(dbConn, cfg, svc)

	handler := middleware.CORS(mux)
	if cfg.TrustProxy {
		handler = middleware.TrustProxy(handler)
	}

	server := http.Server{
		Handler:           handler,
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		// Wait for Ctrl-C signal
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port, "base_url", cfg.PublicBaseURL)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}
}

// newGateway builds the OTP channels enabled in cfg
func newGateway(cfg cliparse.Config) (*notify.Gateway, error) {
	var email, sms notify.Sender
	if cfg.SendEmail {
		s, err := notify.NewEmailSender(notify.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			BaseURL:  cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		email = s
	}
	if cfg.SendSMS {
		sms = notify.NewSMSSender(notify.SMSConfig{
			BaseURL:   cfg.SMS.APIURL,
			APIKey:    cfg.SMS.APIKey,
			Sender:    cfg.SMS.Sender,
			PatternID: cfg.SMS.PatternID,
		})
	}
	return notify.NewGateway(email, sms), nil
}
