package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tg_subscription_bot/internal/config"
	"tg_subscription_bot/internal/dispatch"
	"tg_subscription_bot/internal/domain"
	"tg_subscription_bot/internal/feature/menu"
	featurepayment "tg_subscription_bot/internal/feature/payment"
	"tg_subscription_bot/internal/health"
	"tg_subscription_bot/internal/logging"
	"tg_subscription_bot/internal/payment"
	"tg_subscription_bot/internal/store"
	"tg_subscription_bot/internal/telegram"
)

const (
	mongoConnectTimeout    = 10 * time.Second
	mongoIndexTimeout      = 5 * time.Second
	mongoDisconnectTimeout = 5 * time.Second
	pollerShutdownTimeout  = 45 * time.Second
	httpShutdownTimeout    = 5 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
	}).Info("configuration loaded")

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}
	cancelIndexes()

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	tgClient, err := telegram.NewClient(cfg.TelegramAPIURL, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	gateway, err := payment.NewGateway(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("payment gateway setup error")
		fmt.Fprintf(os.Stderr, "payment gateway setup error: %v\n", err)
		os.Exit(1)
	}

	orders := domain.NewOrderRepository(mongoManager.Orders(), mongoManager.Sequence())
	menuHandlers := menu.NewHandlers(tgClient, orders, logger)
	payHandler := featurepayment.NewHandler(tgClient, gateway, orders, logger)

	dispatcher := dispatch.New(logger)
	dispatcher.Register(menu.CmdStart, dispatch.HandlerFunc(menuHandlers.Initial))
	dispatcher.Register(menu.CmdHelp, dispatch.HandlerFunc(menuHandlers.Help))
	dispatcher.Register(menu.CmdProfile, dispatch.HandlerFunc(menuHandlers.Profile))
	dispatcher.Register(menu.CmdPay, dispatch.HandlerFunc(menuHandlers.PaymentMenu))
	dispatcher.Register(menu.CmdHistory, dispatch.HandlerFunc(menuHandlers.History))
	dispatcher.Register(menu.CmdUnsubscribe, dispatch.HandlerFunc(menuHandlers.Unsubscribe))
	dispatcher.Register(menu.CmdMainMenu, dispatch.HandlerFunc(menuHandlers.Initial))
	dispatcher.Register(menu.CmdOther, dispatch.HandlerFunc(menuHandlers.Initial))
	dispatcher.RegisterPrefix(domain.TariffPrefix, dispatch.HandlerFunc(payHandler.SelectTariff))
	dispatcher.RegisterFallback(dispatch.HandlerFunc(menuHandlers.Unknown))

	checker, err := featurepayment.NewChecker(gateway, orders, tgClient, cfg.PaymentCheckInterval, cfg.PaymentCheckLimit, logger)
	if err != nil {
		logger.WithError(err).Error("payment checker setup error")
		fmt.Fprintf(os.Stderr, "payment checker setup error: %v\n", err)
		os.Exit(1)
	}
	if err := checker.Start(); err != nil {
		logger.WithError(err).Error("payment checker start error")
		fmt.Fprintf(os.Stderr, "payment checker start error: %v\n", err)
		os.Exit(1)
	}

	webhook := telegram.NewWebhookHandler(dispatcher, logger)
	httpServer := health.NewServer(cfg.HTTPPort, mongoManager, webhook, logger)

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.ListenAndServe()
	}()

	pollerCtx, cancelPoller := context.WithCancel(context.Background())
	poller := telegram.NewPoller(tgClient, dispatcher, logger)
	pollerDone := make(chan struct{})

	go func() {
		poller.Run(pollerCtx)
		close(pollerDone)
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping")
	case err := <-httpErr:
		if err != nil {
			logger.WithError(err).Error("http server error")
		} else {
			logger.WithField("event", "http_stopped_early").Warn("http server stopped before shutdown signal")
		}
	case <-pollerDone:
		logger.WithField("event", "poller_stopped_early").Warn("poller stopped before shutdown signal")
	}

	cancelPoller()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), pollerShutdownTimeout)
	select {
	case <-pollerDone:
	case <-waitCtx.Done():
		logger.WithField("event", "poller_shutdown_timeout").Warn("timed out waiting for poller to stop")
	}
	cancelWait()

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), httpShutdownTimeout)
	if err := httpServer.Shutdown(httpCtx); err != nil {
		logger.WithError(err).Error("http shutdown error")
	}
	cancelHTTP()

	<-checker.Stop().Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
