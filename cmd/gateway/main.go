// Command gateway serves the paid /weather and /tee-demo routes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	x402 "github.com/vitwit/x402-gateway"
	"github.com/vitwit/x402-gateway/clients"
	"github.com/vitwit/x402-gateway/config"
	"github.com/vitwit/x402-gateway/gateway"
	"github.com/vitwit/x402-gateway/logger"
	"github.com/vitwit/x402-gateway/metrics"
	"github.com/vitwit/x402-gateway/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewZapLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	rec := metrics.NewPrometheusRecorder()

	weatherReq, err := x402.NewPaymentRequirement(cfg.Network, cfg.Asset, cfg.PayTo, cfg.WeatherPrice,
		x402.WithResource(cfg.WeatherPath),
		x402.WithDescription("Current weather report"),
	)
	if err != nil {
		return fmt.Errorf("weather requirement: %w", err)
	}

	teeReq, err := x402.NewPaymentRequirement(cfg.Network, cfg.Asset, cfg.PayTo, cfg.TEEDemoPrice,
		x402.WithResource(cfg.TEEDemoPath),
		x402.WithDescription("Attested AI completion"),
	)
	if err != nil {
		return fmt.Errorf("tee demo requirement: %w", err)
	}

	payments, err := x402.New(cfg.X402Config(), x402.WithLogger(log), x402.WithMetrics(rec))
	if err != nil {
		return err
	}
	defer payments.Close()

	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 5*time.Second)
	if err := payments.CheckSupported(checkCtx, weatherReq); err != nil {
		log.Warn("facilitator support check failed", map[string]any{
			"network": cfg.Network,
			"error":   err,
		})
	}
	cancelCheck()

	tee := clients.NewTEEClient(cfg.TEEConfig())
	if !tee.Configured() {
		log.Warn("TEE_API_KEY is not set, /tee-demo will answer with a configuration error", nil)
	}

	opts := []gateway.Option{
		gateway.WithLogger(log),
		gateway.WithMetrics(rec),
		gateway.WithMetricsHandler(rec.Handler()),
		gateway.WithErrorLog(log.StdLogger()),
	}
	if s := payments.Settler(); s != nil {
		opts = append(opts, gateway.WithPaymentSettler(s))
	}

	gw := gateway.New(cfg.GatewayConfig(), payments.Verifier(), opts...)
	gw.MountWeather(cfg.WeatherPath, cfg.WeatherPrice, weatherReq)
	gw.MountTEEDemo(cfg.TEEDemoPath, cfg.TEEDemoPrice, teeReq, tee)

	network := types.Network(cfg.Network)
	fields := map[string]any{
		"addr":        cfg.Addr(),
		"network":     cfg.Network,
		"chain":       string(network.Family()),
		"testnet":     network.IsTestnet(),
		"pay_to":      weatherReq.PayTo,
		"facilitator": cfg.FacilitatorURL,
		"settle":      cfg.Settle,
	}
	for k, v := range x402.GetVersion() {
		fields[k] = v
	}
	log.Info("starting gateway", fields)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return gw.Run(ctx)
}
