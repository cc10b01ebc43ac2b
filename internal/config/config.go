// Package config loads Percolator's server configuration from flags,
// environment variables, and an optional config file, grounded on
// liquidityScope's internal/config.Load (pflag-bound viper, INDEXER_*
// env prefix, SetDefault per field).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every value cmd/server needs to stand up the gRPC server,
// the Slab engines' WAL/snapshot directories, the Router's Pebble store,
// and the Kafka event log, per SPEC_FULL.md §6.4/§6.6.
type Config struct {
	ListenAddr string

	WALDir             string
	WALMaxSegmentBytes int64
	WALMaxSegmentAge   time.Duration
	SnapshotDir        string
	SnapshotInterval   time.Duration

	RouterStoreDir string

	KafkaBrokers []string
	KafkaTopic   string

	TakerFeeBps  int64
	MakerFeeBps  int64
	IMRBps       uint64
	MMRBps       uint64
	KillBandBps  uint64
	BatchOpenMs  uint64

	MetricsAddr string
	LogLevel    string
}

// Load merges an optional config file, environment variables (prefixed
// PERCOLATOR_), and bound flags into a Config, the same three-source
// precedence liquidityScope's Load uses.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PERCOLATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen-addr", ":50051")
	v.SetDefault("wal-dir", "./data/wal")
	v.SetDefault("wal-max-segment-bytes", int64(64<<20))
	v.SetDefault("wal-max-segment-age", 5*time.Minute)
	v.SetDefault("snapshot-dir", "./data/snapshot")
	v.SetDefault("snapshot-interval", time.Minute)
	v.SetDefault("router-store-dir", "./data/router-store")
	v.SetDefault("kafka-brokers", []string{"localhost:9092"})
	v.SetDefault("kafka-topic", "percolator.events")
	v.SetDefault("taker-fee-bps", int64(10))
	v.SetDefault("maker-fee-bps", int64(-5))
	v.SetDefault("imr-bps", uint64(1000))
	v.SetDefault("mmr-bps", uint64(500))
	v.SetDefault("kill-band-bps", uint64(50))
	v.SetDefault("batch-open-ms", uint64(250))
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("percolator")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return Config{
		ListenAddr:         v.GetString("listen-addr"),
		WALDir:             v.GetString("wal-dir"),
		WALMaxSegmentBytes: v.GetInt64("wal-max-segment-bytes"),
		WALMaxSegmentAge:   v.GetDuration("wal-max-segment-age"),
		SnapshotDir:        v.GetString("snapshot-dir"),
		SnapshotInterval:   v.GetDuration("snapshot-interval"),
		RouterStoreDir:     v.GetString("router-store-dir"),
		KafkaBrokers:       v.GetStringSlice("kafka-brokers"),
		KafkaTopic:         v.GetString("kafka-topic"),
		TakerFeeBps:        v.GetInt64("taker-fee-bps"),
		MakerFeeBps:        v.GetInt64("maker-fee-bps"),
		IMRBps:             v.GetUint64("imr-bps"),
		MMRBps:             v.GetUint64("mmr-bps"),
		KillBandBps:        v.GetUint64("kill-band-bps"),
		BatchOpenMs:        v.GetUint64("batch-open-ms"),
		MetricsAddr:        v.GetString("metrics-addr"),
		LogLevel:           v.GetString("log-level"),
	}, nil
}
