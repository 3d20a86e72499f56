// Device Health Core - IoT device health ingestion and alerting.
//
// This is the main entry point for the device health service. It ingests
// health reports over HTTP and MQTT, keeps the latest record per device,
// raises alerts for failing devices and serves the query API and dashboard.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/devicehealth/migrations"

	"github.com/nerrad567/devicehealth/internal/alert"
	"github.com/nerrad567/devicehealth/internal/api"
	"github.com/nerrad567/devicehealth/internal/device"
	"github.com/nerrad567/devicehealth/internal/infrastructure/config"
	"github.com/nerrad567/devicehealth/internal/infrastructure/database"
	"github.com/nerrad567/devicehealth/internal/infrastructure/logging"
	"github.com/nerrad567/devicehealth/internal/infrastructure/mqtt"
	"github.com/nerrad567/devicehealth/internal/ingest"
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

// configEnvVar overrides the configuration file path.
const configEnvVar = "DEVICEHEALTH_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Components are closed in reverse start order by the defer chain: the API
// stops taking reports, the dispatcher drains queued alerts while MQTT is
// still connected, then MQTT and the database close.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting device health core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Driver:      cfg.Database.Driver,
		Path:        cfg.Database.Path,
		DSN:         cfg.Database.DSN,
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
	log.Info("database connected", "driver", db.Driver(), "path", db.Path())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, err := db.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("database migrations complete", "schema_version", schema.Version(), "applied", len(schema.Applied))

	store := device.NewSQLStore(db.DB, cfg.GetQueryTimeout())
	store.SetLogger(log.Component("store"))

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	notifiers, err := buildNotifiers(cfg, mqttClient, log)
	if err != nil {
		return err
	}

	dispatcher := alert.NewDispatcher(alert.Options{
		Workers:     cfg.Alerts.Workers,
		QueueSize:   cfg.Alerts.QueueSize,
		SendTimeout: cfg.GetSendTimeout(),
	}, notifiers...)
	dispatcher.SetLogger(log.Component("alerts"))
	// Workers outlive the signal context so Close can drain the queue.
	dispatcher.Start(context.WithoutCancel(ctx))
	defer func() {
		log.Info("draining alert queue")
		dispatcher.Close()
	}()

	handler := ingest.NewHandler(store, dispatcher)
	handler.SetLogger(log.Component("ingest"))

	if mqttClient != nil {
		sub := ingest.NewSubscriber(mqttClient, handler)
		sub.SetLogger(log.Component("mqtt-ingest"))
		if subErr := sub.Start(); subErr != nil {
			return fmt.Errorf("starting MQTT ingestion: %w", subErr)
		}
		// Runs before the MQTT client closes so queued states still go out.
		defer sub.Close()
	}

	query := device.NewQueryService(store)
	query.SetLogger(log.Component("query"))

	apiServer, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.Component("api"),
		Ingest:     handler,
		Query:      query,
		DB:         db,
		MQTT:       mqttClient,
		Dispatcher: dispatcher,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path from the environment
// or the default.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectMQTT connects to the broker and wires connection logging.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"topic_prefix", client.Topics().Prefix,
	)
	return client, nil
}

// buildNotifiers creates the enabled alert channels. With none enabled,
// alerts are still classified, logged and broadcast to WebSocket clients.
func buildNotifiers(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) ([]alert.Notifier, error) {
	var notifiers []alert.Notifier

	if cfg.Alerts.Email.Enabled {
		email, err := alert.NewEmailNotifier(cfg.Alerts.Email, cfg.GetSendTimeout())
		if err != nil {
			return nil, fmt.Errorf("creating email notifier: %w", err)
		}
		notifiers = append(notifiers, email)
		log.Info("email alerts enabled",
			"relay", fmt.Sprintf("%s:%d", cfg.Alerts.Email.Host, cfg.Alerts.Email.Port),
			"recipients", len(cfg.Alerts.Email.To),
		)
	}

	if cfg.Alerts.MQTT.Enabled && mqttClient != nil {
		notifiers = append(notifiers, alert.NewMQTTNotifier(mqttClient, mqttClient.Topics()))
		log.Info("MQTT alerts enabled", "topic", mqttClient.Topics().AllAlerts())
	}

	if len(notifiers) == 0 {
		log.Warn("no alert notifiers enabled")
	}
	return notifiers, nil
}

// healthCheck verifies the required components respond.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	return nil
}
