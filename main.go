package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denisbrodbeck/machineid"

	"github.com/devpro-denny/R-25V1/internal/api"
	"github.com/devpro-denny/R-25V1/internal/bot"
	"github.com/devpro-denny/R-25V1/internal/events"
	"github.com/devpro-denny/R-25V1/internal/market"
	"github.com/devpro-denny/R-25V1/internal/monitor"
	"github.com/devpro-denny/R-25V1/internal/notify"
	"github.com/devpro-denny/R-25V1/internal/trade"
	"github.com/devpro-denny/R-25V1/pkg/config"
	"github.com/devpro-denny/R-25V1/pkg/db"
	"github.com/devpro-denny/R-25V1/pkg/deriv"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	botCfg, err := config.LoadBot(cfg.BotFile)
	if err != nil {
		return err
	}

	instanceID, err := machineid.ProtectedID("r25-bot")
	if err != nil {
		instanceID = "unknown"
	}
	log.Printf("starting bot instance %.12s strategy=%s dry_run=%v", instanceID, cfg.Strategy, cfg.DryRun)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Init(ctx); err != nil {
		return err
	}

	bus := events.NewBus()

	client := deriv.NewClient(cfg.APIEndpoint, cfg.AppID, cfg.APIToken)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	source := market.NewDerivSource(client)

	bundle, err := bot.Build(cfg.Strategy, source, botCfg, database, bus)
	if err != nil {
		return err
	}
	if loader, ok := bundle.Risk.(interface{ Load(context.Context) error }); ok {
		if err := loader.Load(ctx); err != nil {
			return err
		}
	}

	instruments := make(market.InstrumentTable, len(botCfg.Instruments))
	for _, spec := range botCfg.Instruments {
		instruments[spec.Symbol] = market.Instrument{
			Symbol:     spec.Symbol,
			Multiplier: spec.Multiplier,
			TickSize:   spec.TickSize,
			TickValue:  spec.TickValue,
			MinLot:     spec.MinLot,
			MaxLot:     spec.MaxLot,
			LotStep:    spec.LotStep,
		}
	}

	var broker trade.Broker
	if cfg.DryRun {
		log.Printf("dry run: orders are simulated against live candles")
		broker = trade.NewSimBroker(source)
	} else {
		broker = trade.NewDerivBroker(client, botCfg.Trade.BuyRetries, botCfg.Trade.MaxPriceDriftPct)
	}

	engine := trade.NewEngine(trade.Config{
		Broker:       broker,
		Account:      source,
		RiskMgr:      bundle.Risk,
		Bus:          bus,
		Store:        database,
		Instruments:  instruments,
		Params:       botCfg.Trade,
		MaxRiskPct:   botCfg.Risk.MaxRiskPct,
		FixedLot:     botCfg.Risk.FixedLot,
		StrategyName: bundle.Strategy.Name(),
		EarlyExit:    bundle.EarlyExit,
	})

	notifier, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, bus)
	if err != nil {
		log.Printf("telegram disabled: %v", err)
	}
	notifier.Start(ctx)

	(&monitor.Monitor{Bus: bus, AlertFn: func(msg string) { log.Printf("ALERT %s", msg) }}).Start(ctx)

	server := &api.Server{
		Risk:       bundle.Risk,
		Engine:     engine,
		Store:      database,
		JWTSecret:  cfg.JWTSecret,
		InstanceID: instanceID,
		Strategy:   bundle.Strategy.Name(),
		StartedAt:  time.Now(),
	}
	if sp, ok := bundle.Risk.(api.StatsProvider); ok {
		server.Stats = sp
	}
	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: server.Router()}
	go func() {
		log.Printf("status api listening on :%s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("status api: %v", err)
		}
	}()

	watchdogAge := time.Duration(botCfg.Trade.HardTimeoutSec+botCfg.Trade.PendingWatchdogSec) * time.Second
	controller := bot.NewController(
		bundle.Strategy, bundle.Risk, engine, bus,
		time.Duration(botCfg.PollIntervalSec)*time.Second,
		watchdogAge,
	)

	err = controller.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	if err == context.Canceled {
		log.Printf("stopped")
		return nil
	}
	return err
}
