// sicpd - SICP display panel control service
//
// sicpd keeps a fleet of Philips SICP display panels under management:
// it polls each panel for LED and power state, accepts commands over
// MQTT, and records state history locally and to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/panelworks/sicp-core/internal/history"
	"github.com/panelworks/sicp-core/internal/infrastructure/config"
	"github.com/panelworks/sicp-core/internal/infrastructure/database"
	"github.com/panelworks/sicp-core/internal/infrastructure/influxdb"
	"github.com/panelworks/sicp-core/internal/infrastructure/logging"
	"github.com/panelworks/sicp-core/internal/infrastructure/mqtt"
	"github.com/panelworks/sicp-core/internal/sicp"
	"github.com/panelworks/sicp-core/internal/statepub"
	"github.com/panelworks/sicp-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting sicpd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "panels", len(cfg.Panels))

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Build the panel roster; nothing is sent until Start
	manager, err := sicp.NewManager(cfg.DeviceManagerConfig())
	if err != nil {
		return fmt.Errorf("building device manager: %w", err)
	}
	manager.SetLogger(log.With("component", "manager"))

	// Local state history (optional)
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Open(database.Config{
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
		log.Info("database connected", "path", cfg.Database.Path)

		store := history.New(db, cfg.Database.HistoryLimit)
		store.SetLogger(log.With("component", "history"))
		if initErr := store.Init(ctx); initErr != nil {
			return fmt.Errorf("initialising history store: %w", initErr)
		}
		manager.AddListener(store.Listener())
		log.Info("state history enabled", "limit", cfg.Database.HistoryLimit)
	} else {
		log.Info("state history disabled")
	}

	// MQTT state publishing and command intake (optional)
	var mqttClient *mqtt.Client
	var publisher *statepub.Publisher
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		publisher = statepub.New(mqttClient, mqttClient.Topics(), manager, byte(cfg.MQTT.QoS))
		publisher.SetLogger(log.With("component", "statepub"))
		manager.AddListener(publisher.Listener())
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		manager.AddListener(telemetry.New(influxClient).Listener())
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start polling; with poll_on_startup this blocks until the first
	// refresh round has populated every panel's state
	manager.Start(ctx)
	defer func() {
		log.Info("stopping device manager")
		manager.Stop()
	}()
	log.Info("device manager started", "panels", len(manager.DeviceIDs()))

	if publisher != nil {
		// Seed retained topics with current state, then accept commands
		publisher.PublishAll()
		if subErr := publisher.SubscribeCommands(); subErr != nil {
			return fmt.Errorf("subscribing to commands: %w", subErr)
		}
		log.Info("command subscription active")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: manager stops first so no
	// listener fires into a closed MQTT or database connection.

	log.Info("sicpd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SICP_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SICP_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the enabled infrastructure connections are healthy.
// Disabled integrations pass nil and are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
