// DoseBox telemetryd - Telemetry Ingestion Daemon
//
// telemetryd subscribes to device status topics and appends every received
// message to the telemetry log. It runs separately from the main API
// service so ingestion survives API restarts and can be scaled or pinned
// independently.
//
// Usage:
//
//	telemetryd [topic-filter]
//
// The optional argument is an MQTT topic filter (wildcards allowed); the
// default is "status/#". The process exits non-zero when the broker has
// been unreachable longer than mqtt.reconnect.max_outage, leaving restart
// policy to the supervisor (systemd, container runtime).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/dosebox/dosebox-core/migrations"

	"github.com/dosebox/dosebox-core/internal/infrastructure/config"
	"github.com/dosebox/dosebox-core/internal/infrastructure/database"
	"github.com/dosebox/dosebox-core/internal/infrastructure/influxdb"
	"github.com/dosebox/dosebox-core/internal/infrastructure/logging"
	"github.com/dosebox/dosebox-core/internal/infrastructure/mqtt"
	"github.com/dosebox/dosebox-core/internal/telemetry"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// defaultTopicFilter matches every organizer status topic.
const defaultTopicFilter = "status/#"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual daemon logic, separated from main for testability.
func run(ctx context.Context, args []string) error {
	topicFilter := defaultTopicFilter
	if len(args) > 0 {
		topicFilter = args[0]
	}

	log := logging.Default()
	log.Info("starting DoseBox telemetryd",
		"version", version,
		"commit", commit,
		"topic_filter", topicFilter,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}

	telemetryRepo := telemetry.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker. The ingestor needs its own client identity so
	// the broker does not kick the API service's session.
	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = cfg.MQTT.Broker.ClientID + "-telemetryd"
	mqttClient, err := mqtt.Connect(mqttCfg)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", mqttCfg.Broker.Host, mqttCfg.Broker.Port),
		"client_id", mqttCfg.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var metrics telemetry.MetricsRecorder
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
	}

	// Run the ingestor until shutdown or outage bound. On a clean shutdown
	// it unsubscribes first; the deferred Close then disconnects.
	ingestor := telemetry.NewIngestor(mqttClient, telemetryRepo, metrics, cfg.MQTT, topicFilter, log)
	if err := ingestor.Run(ctx); err != nil {
		return fmt.Errorf("telemetry ingestion: %w", err)
	}

	log.Info("DoseBox telemetryd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DOSEBOX_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOSEBOX_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
