package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openprocurement/auction-worker/internal/app"
	"github.com/openprocurement/auction-worker/internal/config"
	"github.com/openprocurement/auction-worker/internal/domain"
	"github.com/openprocurement/auction-worker/internal/eligibility"
	"github.com/openprocurement/auction-worker/internal/infrastructure/delivery"
	publisher "github.com/openprocurement/auction-worker/internal/infrastructure/kafka"
	"github.com/openprocurement/auction-worker/internal/infrastructure/metrics"
	"github.com/openprocurement/auction-worker/internal/infrastructure/postgres"
	"github.com/openprocurement/auction-worker/internal/infrastructure/redis"
	"github.com/openprocurement/auction-worker/internal/infrastructure/tender"
	"github.com/openprocurement/auction-worker/internal/scheduler"
	"github.com/openprocurement/auction-worker/internal/usecase"
)

const usageText = `Usage: auction-worker [flags] <command> <tender_id>

Commands:
  run         run one auction to completion
  planning    build and persist the initial auction document
  announce    reveal bidder names after qualification
  cancel      mark the auction cancelled
  reschedule  mark the auction rescheduled
  post_audit  assemble and upload the audit artifact
  check       probe the worker's external dependencies
`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}

	var (
		configPath  = flag.String("config", "", "path to the worker config (or AUCTION_WORKER_CONFIG)")
		lotID       = flag.String("lot", "", "lot id for multilot tenders")
		auctionInfo = flag.String("auction-info", "", "path to a tender data json file; enables debug mode")
		apiVersion  = flag.String("with-api-version", "", "override the tender API version")
		filterPath  = flag.String("filter-config", "", "path to the auction eligibility filter config")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	command, tenderID := flag.Arg(0), flag.Arg(1)

	cfg := config.MustLoad(*configPath)
	logger := setupLogger(cfg)

	debug := *auctionInfo != ""

	db := postgres.MustInitDB(cfg)
	store := postgres.NewDefaultAuctionStore(db)
	tenderClient := tender.NewAPIClient(cfg, tenderID, *lotID, tender.WithAPIVersion(*apiVersion))
	mapping := redis.NewMappingStore(cfg)
	defer mapping.Close()

	deps := usecase.Deps{
		Store:   store,
		Tender:  tenderClient,
		Mapping: mapping,
		Metrics: metrics.NewAuctionMetrics(),
		Logger:  logger,
	}

	if cfg.KafkaService.Host != "" {
		jrnl, err := publisher.NewKafkaJournalPublisher(cfg)
		if err != nil {
			log.Fatalf("failed to init journal publisher: %v\n", err)
		}
		defer jrnl.Close()
		deps.Journal = jrnl
	}

	// Only commands that upload or probe the audit artifact pay for the
	// sink's connection setup; cancel and reschedule must keep working
	// while object storage is down.
	if needsAuditSink(command) {
		if cfg.DocumentService.WithDocumentService {
			deps.AuditSink = delivery.NewDocServiceAuditSink(cfg)
		} else {
			sink, err := delivery.NewMinioAuditSink(cfg)
			if err != nil {
				log.Fatalf("failed to init audit sink: %v\n", err)
			}
			deps.AuditSink = sink
		}
	}

	auction := usecase.NewAuction(tenderID, *lotID, cfg, debug, deps)

	if debug {
		data, err := loadTestAuctionData(*auctionInfo)
		if err != nil {
			log.Fatalf("failed to load auction info: %v\n", err)
		}
		auction.UseTestAuctionData(data)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, command, cfg, logger, auction, store, mapping, deps, *filterPath, debug); err != nil {
		logger.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

// needsAuditSink reports whether the command touches the audit artifact
// store at all.
func needsAuditSink(command string) bool {
	switch command {
	case "run", "post_audit", "check":
		return true
	}
	return false
}

func dispatch(
	ctx context.Context,
	command string,
	cfg *config.WorkerConfig,
	logger *slog.Logger,
	auction *usecase.Auction,
	store domain.Store,
	mapping *redis.MappingStore,
	deps usecase.Deps,
	filterPath string,
	debug bool,
) error {
	switch command {
	case "run":
		return runAuction(ctx, cfg, logger, auction, store, mapping, deps, debug)

	case "planning":
		return planAuction(ctx, logger, auction, filterPath)

	case "announce":
		return auction.PostAnnounce(ctx)

	case "cancel":
		return auction.CancelAuction(ctx)

	case "reschedule":
		return auction.RescheduleAuction(ctx)

	case "post_audit":
		return auction.PostAudit(ctx)

	case "check":
		return app.CheckServices(ctx, logger, probes(store, auction, mapping, deps, debug))

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runAuction(
	ctx context.Context,
	cfg *config.WorkerConfig,
	logger *slog.Logger,
	auction *usecase.Auction,
	store domain.Store,
	mapping *redis.MappingStore,
	deps usecase.Deps,
	debug bool,
) error {
	if err := app.CheckServices(ctx, logger, probes(store, auction, mapping, deps, debug)); err != nil {
		return err
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
			logger.Error("metrics endpoint stopped", "error", err)
		}
	}()

	sched := scheduler.New(cfg.Timing.MisfireGrace, logger)
	defer sched.Shutdown()

	sched.OnMissed(func(id string) {
		deps.Metrics.RecordMissedJob()
		if id == "Start of Auction" {
			if err := auction.RescheduleAuction(context.Background()); err != nil {
				logger.Error("failed to reschedule after missed start", "error", err)
			}
		}
	})

	if err := auction.ScheduleAuction(ctx, sched); err != nil {
		return err
	}
	sched.Start()

	auction.WaitToEnd(ctx)
	return nil
}

func planAuction(ctx context.Context, logger *slog.Logger, auction *usecase.Auction, filterPath string) error {
	var filter eligibility.FilterConfig
	if filterPath != "" || os.Getenv("DEPRECATED_AUCTION_CONFIG_PATH") != "" {
		loaded, err := eligibility.LoadFilterConfig(filterPath)
		if err != nil {
			return err
		}
		filter = loaded
	}

	if filter != nil {
		if err := auction.GetAuctionInfo(ctx); err != nil {
			return err
		}
		eligible, err := auction.TenderEligible(filter, eligibility.AuctionTypeNew)
		if err != nil {
			return err
		}
		if !eligible {
			logger.Info("tender is processed by another worker generation, skipping",
				"auction_id", auction.AuctionDocID())
			return nil
		}
	}
	return auction.PrepareAuctionDocument(ctx)
}

func probes(store domain.Store, auction *usecase.Auction, mapping *redis.MappingStore, deps usecase.Deps, debug bool) []app.Probe {
	checks := []app.Probe{
		{Name: "auction store", Check: store.Ping},
		{Name: "bidder mapping", Check: mapping.Ping},
		{Name: "audit sink", Check: deps.AuditSink.Ping},
	}
	if !debug {
		checks = append(checks, app.Probe{Name: "tender api", Check: deps.Tender.Health})
	}
	return checks
}

func loadTestAuctionData(path string) (*domain.TenderData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read auction info file: %w", err)
	}
	// Planning files may wrap the payload in {"data": {...}}.
	var envelope struct {
		Data *domain.TenderData `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}
	var data domain.TenderData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse auction info file: %w", err)
	}
	return &data, nil
}

func setupLogger(cfg *config.WorkerConfig) *slog.Logger {
	var level slog.Level
	switch cfg.LogConfig.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogConfig.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
