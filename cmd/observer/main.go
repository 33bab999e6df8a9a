// Command observer runs the per-validator FTSO/FDC liveness and correctness
// watcher: it reconstructs signing policies and voting rounds from chain
// data for one target identity and emits validation messages to the
// configured notification sinks, alongside a Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flarewatch/chainio"
	"flarewatch/config"
	"flarewatch/fsp/epoch"
	"flarewatch/notify"
	"flarewatch/observability/logging"
	"flarewatch/observability/metrics"
	"flarewatch/observer"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("observer: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.ContractManifestPath == "" {
		return fmt.Errorf("CONTRACT_MANIFEST_PATH is required")
	}

	env := os.Getenv("OBSERVER_ENV")
	slogger := logging.Setup("observer", env)
	slogger.Info("resolved configuration",
		logging.MaskField("rpc_url", cfg.RPCURL),
		slog.String("identity_address", cfg.IdentityAddress.Hex()),
		logging.MaskField("discord_webhook", cfg.Notifications.DiscordWebhook),
		logging.MaskField("slack_webhook", cfg.Notifications.SlackWebhook),
		logging.MaskField("telegram_bot_token", cfg.Notifications.TelegramBotToken),
		logging.MaskField("telegram_chat_id", cfg.Notifications.TelegramChatID),
		logging.MaskField("generic_webhook", cfg.Notifications.GenericWebhook),
	)

	client, err := chainio.Dial(cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dial chain: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	chainID, err := client.ChainID(dialCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("resolve chain id: %w", err)
	}
	if err := cfg.ResolveChain(chainID); err != nil {
		return fmt.Errorf("resolve chain: %w", err)
	}
	client.SetChainID(chainID)

	manifest, addresses, err := observer.LoadManifest(cfg.ContractManifestPath)
	if err != nil {
		return fmt.Errorf("load contract manifest: %w", err)
	}
	abiPaths := make([]string, 0, len(manifest))
	for _, m := range manifest {
		if m.ABIPath != "" {
			abiPaths = append(abiPaths, m.ABIPath)
		}
	}
	decoder, err := observer.LoadABIFiles(abiPaths)
	if err != nil {
		return fmt.Errorf("load contract abis: %w", err)
	}

	sink := buildSink(cfg)

	metrics.Observer().SetObserverInfo(cfg.IdentityAddress.Hex(), strconv.FormatUint(cfg.ChainID, 10))

	loop := observer.NewLoop(client, decoder, sink, observer.Config{
		NetworkName:    cfg.ChainName,
		TargetIdentity: cfg.IdentityAddress,
		Epochs:         epoch.NewFactory(epoch.Songbird),
		Addresses:      addresses,
		AvgBlockTimeS:  cfg.AvgBlockTimeSeconds,
	}, slogger)

	metricsAddr := cfg.MetricsListenAddress
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:         metricsAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	go func() {
		slogger.Info("metrics endpoint listening", "address", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("metrics server: %w", err)
			return
		}
		errs <- nil
	}()
	go func() {
		errs <- loop.Run(stopCtx)
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			_ = metricsServer.Close()
		}
		return nil
	case err := <-errs:
		return err
	}
}

// buildSink constructs the fan-out of configured notification sinks,
// skipping any endpoint that wasn't set. An empty MultiSink is a valid,
// fully-functional no-op sink.
func buildSink(cfg *config.Config) notify.Sink {
	var sinks []notify.Sink

	if cfg.Notifications.DiscordWebhook != "" {
		if s, err := notify.NewDiscordSink(cfg.Notifications.DiscordWebhook); err == nil {
			sinks = append(sinks, s)
		} else {
			log.Printf("observer: discord sink: %v", err)
		}
	}
	if cfg.Notifications.SlackWebhook != "" {
		if s, err := notify.NewSlackSink(cfg.Notifications.SlackWebhook); err == nil {
			sinks = append(sinks, s)
		} else {
			log.Printf("observer: slack sink: %v", err)
		}
	}
	if cfg.Notifications.TelegramBotToken != "" && cfg.Notifications.TelegramChatID != "" {
		if s, err := notify.NewTelegramSink(cfg.Notifications.TelegramBotToken, cfg.Notifications.TelegramChatID); err == nil {
			sinks = append(sinks, s)
		} else {
			log.Printf("observer: telegram sink: %v", err)
		}
	}
	if cfg.Notifications.GenericWebhook != "" {
		if s, err := notify.NewGenericWebhookSink(cfg.Notifications.GenericWebhook); err == nil {
			sinks = append(sinks, s)
		} else {
			log.Printf("observer: generic webhook sink: %v", err)
		}
	}

	return notify.NewMultiSink(sinks...)
}
