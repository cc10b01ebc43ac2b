package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"percolator/api/rpc"
	"percolator/internal/common"
	"percolator/internal/config"
	"percolator/internal/logging"
	"percolator/internal/router"
	"percolator/internal/slab"
)

func main() {
	root := &cobra.Command{
		Use:          "percolator-server",
		Short:        "Percolator Router + Slab matching server",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Router and its registered Slabs",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen-addr", ":50051", "gRPC listen address")
	serveCmd.Flags().String("wal-dir", "./data/wal", "Slab WAL directory")
	serveCmd.Flags().Int64("wal-max-segment-bytes", 64<<20, "WAL segment rotation size")
	serveCmd.Flags().Duration("wal-max-segment-age", 5*time.Minute, "WAL segment rotation age")
	serveCmd.Flags().String("snapshot-dir", "./data/snapshot", "Slab snapshot directory")
	serveCmd.Flags().Duration("snapshot-interval", time.Minute, "snapshot cadence")
	serveCmd.Flags().String("router-store-dir", "./data/router-store", "Router outbox Pebble directory")
	serveCmd.Flags().StringSlice("kafka-brokers", []string{"localhost:9092"}, "Kafka broker addresses")
	serveCmd.Flags().String("kafka-topic", "percolator.events", "Kafka topic for Router events")
	serveCmd.Flags().Int64("taker-fee-bps", 10, "default taker fee, in bps")
	serveCmd.Flags().Int64("maker-fee-bps", -5, "default maker fee (negative is a rebate), in bps")
	serveCmd.Flags().Uint64("imr-bps", 1000, "initial margin ratio, in bps")
	serveCmd.Flags().Uint64("mmr-bps", 500, "maintenance margin ratio, in bps")
	serveCmd.Flags().Uint64("kill-band-bps", 50, "commit-time kill band, in bps")
	serveCmd.Flags().Uint64("batch-open-ms", 250, "batch-open tick interval, in ms")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus /metrics listen address")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := router.New()

	store, err := router.OpenStore(cfg.RouterStoreDir)
	if err != nil {
		return fmt.Errorf("open router store: %w", err)
	}
	defer store.Close()

	eventLog, err := router.NewEventLog(store, cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		logger.Warn("kafka unreachable, Router events will not be published", zap.Error(err))
	} else {
		r.EventLog = eventLog
		eventLog.Start(ctx, 2*time.Second)
		defer eventLog.Close()
	}

	// A freshly provisioned server starts with one bootstrapped BTC-PERP
	// Slab; onboarding additional Slabs is a Registry.Register call away,
	// left to an administrative tool rather than this entry point.
	engine, instrumentIdx, err := bootstrapSlab(cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap slab: %w", err)
	}
	defer engine.Close()

	r.Wire(engine)
	if cErr := r.Registry.Register(router.SlabEntry{
		SlabID:       engine.SlabID,
		OracleID:     "BTC-USD",
		IMRBps:       cfg.IMRBps,
		MMRBps:       cfg.MMRBps,
		RegisteredTs: uint64(time.Now().Unix()),
		Active:       true,
	}); cErr != nil {
		return fmt.Errorf("register slab: %s", cErr.Message)
	}

	slabs := map[common.SlabID]*slab.Engine{engine.SlabID: engine}
	rpcSrv := rpc.NewServer(r, slabs)

	go runBatchOpenTicker(ctx, logger, engine, instrumentIdx, cfg.BatchOpenMs)
	go runSnapshotTicker(ctx, logger, engine, cfg.SnapshotDir, cfg.SnapshotInterval)
	go runMetricsServer(logger, cfg.MetricsAddr)

	grpcSrv := grpc.NewServer(grpc.ForceServerCodec(rpc.Codec{}))
	grpcSrv.RegisterService(&rpc.ServiceDesc, rpcSrv)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	logger.Info("percolator server starting",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("slab_id", engine.SlabID.String()),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		grpcSrv.GracefulStop()
	}()

	if err := grpcSrv.Serve(lis); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func bootstrapSlab(cfg config.Config, logger *zap.Logger) (*slab.Engine, uint16, error) {
	id := uuid.New()
	engine := slab.NewEngine(id)
	engine.TakerFeeBps = cfg.TakerFeeBps
	engine.MakerFeeBps = cfg.MakerFeeBps
	engine.IMRBps = cfg.IMRBps
	engine.MMRBps = cfg.MMRBps
	engine.KillBandBps = cfg.KillBandBps

	walDir := filepath.Join(cfg.WALDir, id.String())
	if err := slab.ReplayWAL(engine, walDir); err != nil {
		return nil, 0, fmt.Errorf("replay wal: %w", err)
	}
	wal, err := slab.OpenWAL(walDir, cfg.WALMaxSegmentBytes, cfg.WALMaxSegmentAge)
	if err != nil {
		return nil, 0, fmt.Errorf("open wal: %w", err)
	}
	engine.WAL = wal

	instrumentIdx := engine.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	logger.Info("slab bootstrapped", zap.String("slab_id", id.String()), zap.String("wal_dir", walDir))
	return engine, instrumentIdx, nil
}

func runBatchOpenTicker(ctx context.Context, logger *zap.Logger, engine *slab.Engine, instrumentIdx uint16, intervalMs uint64) {
	interval := time.Duration(intervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, cErr := engine.BatchOpen(instrumentIdx, uint64(now.UnixMilli())); cErr != nil {
				logger.Warn("batch_open failed", zap.Error(cErr))
			}
		}
	}
}

func runSnapshotTicker(ctx context.Context, logger *zap.Logger, engine *slab.Engine, dir string, interval time.Duration) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("snapshot dir create failed", zap.Error(err))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			path := filepath.Join(dir, engine.SlabID.String()+".snapshot")
			if err := engine.WriteSnapshot(path); err != nil {
				logger.Warn("snapshot write failed", zap.Error(err))
			}
		}
	}
}

func runMetricsServer(logger *zap.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server exited", zap.Error(err))
	}
}
