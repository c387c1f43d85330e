package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/telebot.v3"

	"paidqa/internal/auth"
	"paidqa/internal/bot"
	"paidqa/internal/config"
	"paidqa/internal/handlers"
	"paidqa/internal/logger"
	"paidqa/internal/metrics"
	"paidqa/internal/realtime"
	"paidqa/internal/service"
	"paidqa/internal/storage"
)

const (
	webDir           = "./web"
	shutdownTimeout  = 15 * time.Second
	operatorTokenTTL = 30 * 24 * time.Hour
)

func main() {
	configPath := flag.String("config", os.Getenv("PAIDQA_CONFIG"), "path to a YAML or TOML config file")
	issueOperator := flag.String("issue-operator-token", "", "print an operator token for the given subject and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *issueOperator != "" {
		token, err := auth.NewOperatorAuth(cfg.OperatorJWTSecret, cfg.OperatorJWTIssuer).
			Issue(*issueOperator, service.RoleOperator, operatorTokenTTL)
		if err != nil {
			log.Fatalf("Failed to issue operator token: %v", err)
		}
		fmt.Println(token)
		return
	}

	_, logCloser := logger.Setup(logger.Options{
		Service: "paidqa",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})

	err = run(cfg)
	if err != nil {
		logger.Error(0, "service_failed", err.Error())
	}
	logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(0, "database_open", fmt.Sprintf("path=%s", cfg.DatabasePath))
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	metrics.Escrow()

	hub := realtime.NewHub(realtime.OriginHosts(cfg.WebAppURL)...)
	emitter := service.NewEmitter(cfg.EventQueueCapacity, hub)

	escrow := service.NewEscrowService(store,
		service.WithNotifier(emitter),
		service.WithMessenger(store),
		service.WithSettlementWindow(cfg.SettlementWindow),
		service.WithPartialRefundBps(cfg.PartialRefundBps),
	)

	var tb *telebot.Bot
	if cfg.TelegramBotToken != "" {
		tb, err = bot.NewTelebot(cfg.TelegramBotToken)
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		emitter.AddSink(service.NewTelegramSink(tb, store, cfg.AdminTelegramID))
		bot.New(store, escrow, bot.Config{
			WebAppURL:    cfg.WebAppURL,
			AdminID:      cfg.AdminTelegramID,
			WelcomeBonus: cfg.WelcomeBonus,
		}).Register(tb)
	} else {
		logger.Info(0, "bot_disabled", "TELEGRAM_BOT_TOKEN not set, running HTTP API only")
	}

	emitterCtx, stopEmitter := context.WithCancel(context.Background())
	emitterDone := make(chan struct{})
	go func() {
		defer close(emitterDone)
		emitter.Run(emitterCtx)
	}()

	worker := service.NewSettlementWorker(escrow, cfg.SettlementInterval)
	worker.Start(ctx)

	if tb != nil {
		go tb.Start()
		logger.Info(0, "bot_started", fmt.Sprintf("username=%s", tb.Me.Username))
	}

	routerCfg := handlers.Config{
		Escrow:       escrow,
		Users:        store,
		Hub:          hub,
		InitData:     auth.NewValidator(cfg.TelegramBotToken, 0),
		Operators:    auth.NewOperatorAuth(cfg.OperatorJWTSecret, cfg.OperatorJWTIssuer),
		RateLimiter:  handlers.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		WelcomeBonus: cfg.WelcomeBonus,
	}
	if info, err := os.Stat(webDir); err == nil && info.IsDir() {
		routerCfg.StaticDir = webDir
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handlers.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(0, "server_starting", fmt.Sprintf("addr=%s", cfg.ListenAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			worker.Stop()
			stopEmitter()
			<-emitterDone
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info(0, "server_shutdown", "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(0, "server_shutdown_failed", err.Error())
	}
	if tb != nil {
		tb.Stop()
	}
	worker.Stop()

	stopEmitter()
	<-emitterDone
	return nil
}
