// flipdotd - flip-dot display server
//
// flipdotd drives one or more flip-dot panels on a shared serial bus and
// exposes them over a small TCP/JSON protocol. Clients queue content and
// config changes; a scheduler loop renders frames and pushes them to the
// hardware. Optional sidecars publish display state over MQTT, record
// commits in SQLite and ship timings to InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mezgrman/flipdot/internal/dispatch"
	"github.com/Mezgrman/flipdot/internal/display"
	"github.com/Mezgrman/flipdot/internal/hardware"
	"github.com/Mezgrman/flipdot/internal/history"
	"github.com/Mezgrman/flipdot/internal/infrastructure/config"
	"github.com/Mezgrman/flipdot/internal/infrastructure/database"
	"github.com/Mezgrman/flipdot/internal/infrastructure/logging"
	"github.com/Mezgrman/flipdot/internal/infrastructure/metrics"
	"github.com/Mezgrman/flipdot/internal/infrastructure/mqtt"
	"github.com/Mezgrman/flipdot/internal/persistence"
	"github.com/Mezgrman/flipdot/internal/render"
	"github.com/Mezgrman/flipdot/internal/scheduler"
	"github.com/Mezgrman/flipdot/internal/server"
	"github.com/Mezgrman/flipdot/internal/status"
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

// pruneInterval is how often the history retention sweep runs.
const pruneInterval = 6 * time.Hour

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting flipdotd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Build the display registry, attached to real hardware or to no-op
	// controllers depending on whether a serial port is configured.
	registry, bus, err := buildDisplays(cfg, log)
	if err != nil {
		return fmt.Errorf("building displays: %w", err)
	}
	if bus != nil {
		defer func() {
			log.Info("closing serial bus")
			if closeErr := bus.Close(); closeErr != nil {
				log.Error("error closing serial bus", "error", closeErr)
			}
		}()
	}

	// State persistence and request dispatch
	store := persistence.NewStore(cfg.State.Path, registry)
	dispatcher := dispatch.New(registry, store, log)

	// Replay persisted state through a saverless dispatcher so boot does
	// not rewrite the state file with its own contents.
	replayState(dispatch.New(registry, nil, log), store, log)

	// Connect to MQTT and wire the status publisher (optional)
	var statusPub *status.Publisher
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("closing MQTT connection")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"host", cfg.MQTT.Broker.Host,
			"port", cfg.MQTT.Broker.Port,
		)

		statusPub = status.New(mqttClient, registry, log)
		// Re-publish retained state after every (re)connect so a broker
		// restart does not leave stale topics.
		mqttClient.SetOnConnect(statusPub.PublishAll)
		statusPub.PublishAll()
	} else {
		log.Info("MQTT disabled")
	}

	// Open the commit history store (optional)
	var histStore *history.Store
	if cfg.History.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.History.Path,
			WALMode:     true,
			BusyTimeout: 5,
		})
		if dbErr != nil {
			return fmt.Errorf("opening history database: %w", dbErr)
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing history database", "error", closeErr)
			}
		}()

		histStore, err = history.New(db)
		if err != nil {
			return fmt.Errorf("initialising history store: %w", err)
		}
		log.Info("history store ready",
			"path", cfg.History.Path,
			"retention_days", cfg.History.Retention,
		)
	} else {
		log.Info("history disabled")
	}

	// Connect to InfluxDB (optional)
	var metricsClient *metrics.Client
	if cfg.Metrics.Enabled {
		metricsClient, err = metrics.Connect(cfg.Metrics)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := metricsClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		metricsClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.Metrics.URL,
			"org", cfg.Metrics.Org,
			"bucket", cfg.Metrics.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Scheduler drives the panels; hooks fan hardware events out to the
	// status publisher, history store and metrics client.
	sched := scheduler.New(registry, cfg.GetTickInterval(), log)
	sched.SetHooks(buildHooks(statusPub, histStore, metricsClient, log))

	srv := server.New(server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		AllowedPeerPrefix: cfg.Server.AllowedPeerPrefix,
		ReadTimeout:       cfg.GetReadTimeout(),
		WriteTimeout:      cfg.GetWriteTimeout(),
	}, dispatcher, log)

	log.Info("initialisation complete",
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"displays", len(registry.IDs()),
		"tick_interval", cfg.GetTickInterval(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	if histStore != nil {
		g.Go(func() error {
			runPruneLoop(ctx, histStore, cfg.History.Retention, log)
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		// Normal shutdown path: both loops return ctx.Err() when cancelled.
		err = nil
	}

	log.Info("shutdown signal received, cleaning up")

	// Save the final state so config and content survive the restart.
	if saveErr := store.Save(); saveErr != nil {
		log.Error("error saving state on shutdown", "error", saveErr)
	}

	log.Info("flipdotd stopped")
	return err
}

// getConfigPath returns the configuration file path.
// Uses FLIPDOT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLIPDOT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildDisplays creates one display per configured panel. When a serial
// port is configured it opens the shared bus and hands each display a panel
// controller; otherwise every display gets a no-op controller so the server
// is fully usable without hardware.
//
// Returns the registry and the opened bus (nil when running without
// hardware) so the caller owns the bus lifetime.
func buildDisplays(cfg *config.Config, log *logging.Logger) (*display.Registry, *hardware.Bus, error) {
	var bus *hardware.Bus
	if cfg.Serial.Port != "" {
		var err error
		bus, err = hardware.Open(cfg.Serial.Port, cfg.Serial.Baud, log)
		if err != nil {
			return nil, nil, fmt.Errorf("opening serial port %s: %w", cfg.Serial.Port, err)
		}
		log.Info("serial bus open", "port", cfg.Serial.Port, "baud", cfg.Serial.Baud)
	} else {
		log.Info("no serial port configured, using no-op controllers")
	}

	registry := display.NewRegistry()
	for id, dc := range cfg.Displays {
		var controller display.Controller
		if bus != nil {
			controller = bus.Panel(dc.Width, dc.Height, dc.Address)
		} else {
			controller = hardware.NewNoop(id, log)
		}

		d := display.New(id, display.HardwareConfig{
			Width:   dc.Width,
			Height:  dc.Height,
			Address: dc.Address,
		}, controller, render.New(dc.Width, dc.Height))

		if err := registry.Add(d); err != nil {
			if bus != nil {
				_ = bus.Close()
			}
			return nil, nil, fmt.Errorf("registering display %s: %w", id, err)
		}
		log.Info("display registered",
			"id", id,
			"width", dc.Width,
			"height", dc.Height,
			"address", dc.Address,
		)
	}
	return registry, bus, nil
}

// replayState restores persisted display config and content by running the
// saved envelopes back through the dispatcher. A missing state file is
// normal on first boot; a corrupt one is logged and skipped so the server
// still starts with defaults.
func replayState(d *dispatch.Dispatcher, store *persistence.Store, log *logging.Logger) {
	entries, err := store.Load()
	if err != nil {
		if errors.Is(err, persistence.ErrNoState) {
			log.Info("no saved state, starting with defaults", "path", store.Path())
		} else {
			log.Warn("could not load saved state, starting with defaults",
				"path", store.Path(),
				"error", err,
			)
		}
		return
	}

	replayed := 0
	for _, env := range entries {
		if reply := d.Process(env); reply.Failed() {
			log.Warn("skipping saved state entry",
				"type", env.Type,
				"error", reply.Err(),
			)
			continue
		}
		replayed++
	}
	log.Info("saved state restored", "entries", replayed, "path", store.Path())
}

// buildHooks fans scheduler events out to whichever sidecars are enabled.
// Any of the three collaborators may be nil.
func buildHooks(statusPub *status.Publisher, histStore *history.Store, metricsClient *metrics.Client, log *logging.Logger) scheduler.Hooks {
	return scheduler.Hooks{
		ConfigApplied: func(displayID, key string, value bool, err error) {
			if err != nil {
				log.Error("config apply failed",
					"display", displayID,
					"key", key,
					"value", value,
					"error", err,
				)
			}
			if statusPub != nil {
				statusPub.HandleConfigApplied(displayID, key, value, err)
			}
			if metricsClient != nil {
				metricsClient.WriteConfigApplied(displayID, key, err)
			}
		},
		FrameCommitted: func(displayID string, renderTime time.Duration, err error) {
			if err != nil {
				log.Error("frame commit failed", "display", displayID, "error", err)
			}
			if statusPub != nil {
				statusPub.HandleFrameCommitted(displayID, renderTime, err)
			}
			if metricsClient != nil {
				metricsClient.WriteCommit(displayID, renderTime, err)
			}
			if histStore != nil {
				recordCommit(histStore, displayID, renderTime, err, log)
			}
		},
		TickCompleted: func(took time.Duration) {
			if metricsClient != nil {
				metricsClient.WriteTick(took)
			}
		},
	}
}

// recordCommit writes one commit to the history store. The write gets a
// short deadline of its own because hooks run on the scheduler goroutine.
func recordCommit(histStore *history.Store, displayID string, renderTime time.Duration, commitErr error, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	entry := history.Entry{
		Display: displayID,
		Render:  renderTime,
		Success: commitErr == nil,
	}
	if commitErr != nil {
		entry.Error = commitErr.Error()
	}
	if err := histStore.Record(ctx, &entry); err != nil {
		log.Error("recording commit history", "display", displayID, "error", err)
	}
}

// runPruneLoop deletes history rows older than the retention window, once
// at startup and then periodically until the context is cancelled.
func runPruneLoop(ctx context.Context, histStore *history.Store, retentionDays int, log *logging.Logger) {
	retention := time.Duration(retentionDays) * 24 * time.Hour

	prune := func() {
		pruneCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		removed, err := histStore.Prune(pruneCtx, retention)
		if err != nil {
			log.Error("pruning commit history", "error", err)
			return
		}
		if removed > 0 {
			log.Info("pruned commit history", "removed", removed)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
