package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tournevent/freight/internal/server"
	"github.com/tournevent/freight/internal/telemetry"
	"github.com/tournevent/freight/pkg/freight"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "freight",
	Short:   "Freight cost calculator for Brazilian shipments",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a shipment from a distance or a pair of CEPs",
	Example: `  freight quote --weight 2 --distance 500 --option sedex
  freight quote --weight 2 --origin-cep 01310-100 --destination-cep 80010-000 --all`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runQuote,
}

type quoteOptions struct {
	weight         float64
	distance       float64
	originCEP      string
	destinationCEP string
	option         string
	all            bool
}

var quoteOpts = quoteOptions{option: "normal"}

func init() {
	f := quoteCmd.Flags()
	f.Float64Var(&quoteOpts.weight, "weight", 0, "package weight")
	f.Float64Var(&quoteOpts.distance, "distance", 0, "distance in kilometres; skips the CEP lookup")
	f.StringVar(&quoteOpts.originCEP, "origin-cep", "", "origin CEP")
	f.StringVar(&quoteOpts.destinationCEP, "destination-cep", "", "destination CEP")
	f.StringVar(&quoteOpts.option, "option", "normal", "pricing tier: normal, sedex, sedex10 or 1-3")
	f.BoolVar(&quoteOpts.all, "all", false, "price every tier")
	_ = quoteCmd.MarkFlagRequired("weight")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(quoteCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	}
	defer tracerShutdown(context.Background())

	svc := initServices(cfg, logger, tracer)
	defer svc.Close()

	if !svc.cache.IsAvailable(ctx) {
		logger.Warn("Cache unavailable, continuing without it", zap.String("addr", cfg.Cache().Addr()))
	}

	logger.Info("Starting freight service",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
	)

	// Start HTTP server
	srv := server.New(server.Config{Port: cfg.Port}, svc.resolver(logger), svc.registry, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// runQuote prints the price, or the user-facing error message on failure.
func runQuote(cmd *cobra.Command, args []string) error {
	err := quote(cmd)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), freight.UserMessage(err))
	}
	return err
}

func quote(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return freight.InvalidInput("%s", err.Error())
	}

	logger, err := telemetry.NewCLILogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	}
	defer tracerShutdown(context.Background())

	svc := initServices(cfg, logger, tracer)
	defer svc.Close()

	req := freight.QuoteRequest{
		Weight:         quoteOpts.weight,
		Distance:       quoteOpts.distance,
		OriginCEP:      quoteOpts.originCEP,
		DestinationCEP: quoteOpts.destinationCEP,
	}
	out := cmd.OutOrStdout()

	if quoteOpts.all {
		all, err := svc.quoter.QuoteAll(ctx, req)
		if err != nil {
			return err
		}
		for _, f := range all {
			fmt.Fprintf(out, "%-8s %s\n", f.Option(), f.Price())
		}
		return nil
	}

	req.Option, err = freight.ParseOption(quoteOpts.option)
	if err != nil {
		return err
	}
	q, err := svc.quoter.Quote(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, q.Message())
	return nil
}
