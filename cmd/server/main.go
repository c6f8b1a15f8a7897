// Command server is the Janus process: it loads configuration, brings
// up the symbol registry, event bus and OMS cache, connects one
// adapter per configured account, and serves the RPC Service over
// websocket until an interrupt signal requests a graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rfzwl/janus/internal/brokera"
	"github.com/rfzwl/janus/internal/brokerb"
	"github.com/rfzwl/janus/internal/config"
	"github.com/rfzwl/janus/internal/db"
	"github.com/rfzwl/janus/internal/eventbus"
	"github.com/rfzwl/janus/internal/gateway"
	"github.com/rfzwl/janus/internal/harmony"
	"github.com/rfzwl/janus/internal/oms"
	"github.com/rfzwl/janus/internal/registry"
	"github.com/rfzwl/janus/internal/router"
	"github.com/rfzwl/janus/internal/rpc"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	appName      = "janus"
	brokerAPool  = 16
	shutdownWait = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to configuration directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: load config: %v\n", appName, err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: build logger: %v\n", appName, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("janus exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("no accounts configured")
	}

	gormDB, err := openDatabase(cfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	reg := registry.New(gormDB, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := reg.Load(ctx); err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	bus := eventbus.New(logger, time.Duration(cfg.Reconnect.IntervalSeconds)*time.Second)
	cache := oms.New()
	cache.Attach(bus)

	brokers := make(map[string]router.Broker, len(cfg.Accounts))
	accountBindings := make(map[string]rpc.AccountBinding, len(cfg.Accounts))
	connectedBrokers := make([]harmony.ConnectedBroker, 0, len(cfg.Accounts))
	seenKinds := make(map[config.BrokerKind]bool, len(cfg.Accounts))

	for _, acc := range cfg.Accounts {
		gw, resolver, err := buildGateway(acc, cfg, bus, logger)
		if err != nil {
			return fmt.Errorf("build gateway for %s: %w", acc.Alias, err)
		}

		brokers[acc.Alias] = router.Broker{
			Gateway:    gw,
			Kind:       acc.Broker,
			AllowShort: acc.AllowShort,
			AutoFill:   true,
		}
		accountBindings[acc.Alias] = rpc.AccountBinding{Config: acc, Gateway: gw}
		if !seenKinds[acc.Broker] {
			seenKinds[acc.Broker] = true
			connectedBrokers = append(connectedBrokers, harmony.ConnectedBroker{Kind: acc.Broker, Resolver: resolver})
		}
	}

	bus.Start(ctx)
	defer bus.Stop()

	for alias, b := range brokers {
		connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
		err := b.Gateway.Connect(connectCtx)
		connectCancel()
		if err != nil {
			return fmt.Errorf("connect %s: %w", alias, err)
		}
	}

	rtr := router.New(reg, cache, brokers)
	harmonyOrchestrator := harmony.New(reg)

	rpcServer := rpc.NewServer(logger)
	rpc.AttachPublisher(bus, rpcServer)
	rpc.NewService(rpcServer, rtr, cache, harmonyOrchestrator, accountBindings, connectedBrokers)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rpcServer.HandleWebSocket)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.RPC.Host, cfg.RPC.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("janus rpc listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("rpc server stopped unexpectedly", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownWait)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc server shutdown error", zap.Error(err))
	}

	bus.Stop()
	for alias, b := range brokers {
		if err := b.Gateway.Close(); err != nil {
			logger.Warn("adapter close error", zap.String("account", alias), zap.Error(err))
		}
	}

	return nil
}

func openDatabase(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password,
		cfg.Database.Name, cfg.Database.SSLMode)

	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := db.MigrateJanusSchema(gormDB, logger); err != nil {
			return nil, err
		}
	}
	return gormDB, nil
}

// buildGateway constructs the broker adapter for one configured
// account and returns it alongside the registry.ContractResolver view
// the harmony orchestrator and router auto-fill rely on (every adapter
// satisfies both interfaces, this just names the narrower one).
func buildGateway(acc config.AccountConfig, cfg *config.Config, bus *eventbus.Bus, logger *zap.Logger) (gateway.BrokerGateway, registry.ContractResolver, error) {
	switch acc.Broker {
	case config.BrokerB:
		addr := fmt.Sprintf("%s:%d", acc.Host, acc.Port)
		client := brokerb.NewSocketClient(acc.Alias, addr, bus, logger)
		client.AttachReconnect(bus)
		return client, client, nil
	case config.BrokerA:
		transport := brokera.NewRESTTransport(fmt.Sprintf("https://%s", acc.Host), acc.Username, acc.Password)
		stream := brokera.NewGRPCStream(acc.TradeEvents.Host, acc.TradeEvents.RegionID, acc.Alias)
		adapterCfg := brokera.Config{AccountAlias: acc.Alias, RefreshDebounceMs: cfg.RefreshDebounceMs}
		adapter, err := brokera.NewAdapter(adapterCfg, transport, stream, bus, logger, brokerAPool)
		if err != nil {
			return nil, nil, err
		}
		return adapter, adapter, nil
	default:
		return nil, nil, fmt.Errorf("unknown broker kind %q for account %s", acc.Broker, acc.Alias)
	}
}
