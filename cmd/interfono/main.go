// Interfono bridges an apartment intercom to Home Assistant over MQTT.
//
// It exposes the intercom's buttons, presence lines, pickup switch and
// camera as one discoverable MQTT device, journals every event to SQLite
// and supervises the go2rtc video relay during calls.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/casalprim/interfono/migrations"

	"github.com/casalprim/interfono/internal/camera"
	"github.com/casalprim/interfono/internal/component"
	"github.com/casalprim/interfono/internal/discovery"
	"github.com/casalprim/interfono/internal/doorbell"
	"github.com/casalprim/interfono/internal/gpio"
	"github.com/casalprim/interfono/internal/infrastructure/config"
	"github.com/casalprim/interfono/internal/infrastructure/database"
	"github.com/casalprim/interfono/internal/infrastructure/influxdb"
	"github.com/casalprim/interfono/internal/infrastructure/logging"
	"github.com/casalprim/interfono/internal/infrastructure/mqtt"
	"github.com/casalprim/interfono/internal/journal"
	"github.com/casalprim/interfono/internal/stream"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/interfono.yaml"

// healthCheckInterval is how often the backing services are probed while
// the bridge is running.
const healthCheckInterval = 60 * time.Second

func main() {
	removeDiscovery := flag.Bool("remove-discovery", false,
		"clear the retained discovery document so Home Assistant forgets the device, then exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if *removeDiscovery {
		err = runRemoveDiscovery()
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runRemoveDiscovery decommissions the device: it publishes an empty
// retained payload to the discovery topic and exits. Used when a unit is
// taken out of service for good, not for restarts.
func runRemoveDiscovery() error {
	log := logging.Default()

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.Will{})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	dev := doorbell.NewDevice(deviceIdentity(cfg), mqttClient, nil, log)
	if err := dev.RemoveDiscovery(); err != nil {
		return err
	}
	log.Info("retained discovery document cleared", "device", cfg.Device.UniqueID)
	return nil
}

// run holds the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting interfono",
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

	// Event journal storage.
	db, err := database.Open(database.Config{
		Path:        cfg.Journal.Path,
		WALMode:     cfg.Journal.WALMode,
		BusyTimeout: cfg.Journal.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("journal database ready", "path", cfg.Journal.Path)

	// Optional InfluxDB event mirror.
	var influxClient *influxdb.Client
	var mirror journal.Mirror
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		mirror = influxClient
		log.Info("InfluxDB mirror connected", "url", cfg.InfluxDB.URL)
	} else {
		log.Info("InfluxDB mirror disabled")
	}

	jrnl := journal.New(db, mirror, log)
	logJournalSummary(ctx, jrnl, log)

	// MQTT transport. The LWT marks the device unavailable if this
	// process dies without a clean shutdown.
	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.Will{
		Topic:   component.DeviceAvailabilityTopic(cfg.Device.RootTopic),
		Payload: component.PayloadOffline,
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// GPIO chip.
	chip, err := gpio.OpenCdev(cfg.GPIO.Chip)
	if err != nil {
		return fmt.Errorf("opening gpio chip: %w", err)
	}
	defer func() {
		if closeErr := chip.Close(); closeErr != nil {
			log.Error("error closing gpio chip", "error", closeErr)
		}
	}()

	// Video stream relay, driven by the video presence sensor.
	streamMgr := stream.New(cfg.Video, log)
	defer func() {
		if closeErr := streamMgr.Close(); closeErr != nil {
			log.Error("error stopping video stream", "error", closeErr)
		}
	}()

	dev := doorbell.NewDevice(deviceIdentity(cfg), mqttClient, jrnl, log)

	if err := buildComponents(ctx, cfg, chip, dev, streamMgr, log); err != nil {
		return err
	}

	// Shutdown must publish offline before any deferred Close above
	// releases transport or pins, so this defer is registered last.
	defer func() {
		if shutdownErr := dev.Shutdown(); shutdownErr != nil {
			log.Error("error during shutdown", "error", shutdownErr)
		}
	}()

	// Reassert broker-held state after every reconnect: retained
	// discovery, availability and command subscriptions.
	mqttClient.SetOnConnect(func() {
		if connectErr := dev.HandleConnect(); connectErr != nil {
			log.Error("reconnect transition failed", "error", connectErr)
		}
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	if err := dev.HandleConnect(); err != nil {
		return fmt.Errorf("bringing device online: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			return nil
		case <-ticker.C:
			checkHealth(ctx, log, mqttClient, db, influxClient)
		}
	}
}

// logJournalSummary reports what the journal already holds, so a restart
// is distinguishable from a first boot in the logs.
func logJournalSummary(ctx context.Context, jrnl *journal.Journal, log *logging.Logger) {
	counts, err := jrnl.CountByComponent(ctx)
	if err != nil {
		log.Warn("journal count query failed", "error", err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		log.Info("journal empty, first start")
		return
	}

	last, err := jrnl.Recent(ctx, 1)
	if err != nil || len(last) == 0 {
		log.Warn("journal recent query failed", "error", err)
		return
	}
	log.Info("journal resumed",
		"events", total,
		"components", len(counts),
		"last_component", last[0].ObjectID,
		"last_event", last[0].CreatedAt,
	)
}

// checkHealth probes each backing service and logs failures. The MQTT
// client reconnects on its own and the journal degrades to warnings, so
// this exists for operator visibility, not recovery.
func checkHealth(ctx context.Context, log *logging.Logger, mqttClient *mqtt.Client, db *database.DB, influxClient *influxdb.Client) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := mqttClient.HealthCheck(checkCtx); err != nil {
		log.Warn("MQTT health check failed", "error", err)
	}
	if err := db.HealthCheck(checkCtx); err != nil {
		log.Warn("database health check failed", "error", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(checkCtx); err != nil {
			log.Warn("InfluxDB health check failed", "error", err)
		}
	}
}

// buildComponents wires every configured component into the device.
func buildComponents(ctx context.Context, cfg *config.Config, chip gpio.Chip, dev *doorbell.Device, streamMgr *stream.Manager, log *logging.Logger) error {
	qos := byte(cfg.MQTT.QoS) // #nosec G115 -- validated to 0..2

	// The camera component is built first so button presses can trigger
	// snapshots.
	var cam *component.Camera
	if cfg.Camera.Enabled {
		capturer := camera.New(cfg.Camera, log)
		var err error
		cam, err = component.NewCamera(cfg.Camera.Name, cfg.Device.RootTopic, capturer, cfg.Camera.Timeout, dev, log, qos)
		if err != nil {
			return fmt.Errorf("building camera: %w", err)
		}
		if err := dev.Register(cam); err != nil {
			return fmt.Errorf("registering camera: %w", err)
		}
	}

	for _, bc := range cfg.GPIO.Buttons {
		var opts []component.ButtonOption
		if cam != nil {
			snapshotCam := cam
			opts = append(opts, component.WithOnPress(func() {
				go snapshotCam.Trigger(ctx)
			}))
		}
		btn, err := component.NewButton(chip, bc.Pin, bc.ActiveLow, bc.Name, cfg.Device.RootTopic, bc.ActiveTime, dev, log, qos, opts...)
		if err != nil {
			return fmt.Errorf("building button %q: %w", bc.Name, err)
		}
		if err := dev.Register(btn); err != nil {
			return fmt.Errorf("registering button %q: %w", bc.Name, err)
		}
	}

	for _, sc := range cfg.GPIO.Sensors {
		var opts []component.SensorOption
		if sc.Kind == "video" {
			opts = append(opts, component.WithOnChange(func(active bool) {
				if active {
					if err := streamMgr.StartStream(ctx); err != nil {
						log.Error("starting video stream", "error", err)
					}
					return
				}
				if err := streamMgr.StopStream(); err != nil {
					log.Error("stopping video stream", "error", err)
				}
			}))
		}
		sensor, err := component.NewBinarySensor(chip, sc.Pin, sc.ActiveLow, sc.Name, cfg.Device.RootTopic, dev, log, qos, opts...)
		if err != nil {
			return fmt.Errorf("building sensor %q: %w", sc.Name, err)
		}
		if err := dev.Register(sensor); err != nil {
			return fmt.Errorf("registering sensor %q: %w", sc.Name, err)
		}
	}

	if sw := cfg.GPIO.PickupSwitch; sw != nil {
		pickup, err := component.NewPickupSwitch(chip, sw.Pin, sw.ActiveLow, sw.Name, cfg.Device.RootTopic,
			component.DrivePolicy(sw.DrivePolicy), sw.ActiveTime, dev, log, qos)
		if err != nil {
			return fmt.Errorf("building pickup switch: %w", err)
		}
		if err := dev.Register(pickup); err != nil {
			return fmt.Errorf("registering pickup switch: %w", err)
		}
	}

	return nil
}

// deviceIdentity maps configuration to the device's MQTT identity.
func deviceIdentity(cfg *config.Config) doorbell.Identity {
	return doorbell.Identity{
		UniqueID:        cfg.Device.UniqueID,
		RootTopic:       cfg.Device.RootTopic,
		DiscoveryPrefix: cfg.Device.DiscoveryPrefix,
		QoS:             byte(cfg.MQTT.QoS), // #nosec G115 -- validated to 0..2
		Info: discovery.DeviceInfo{
			Identifiers:  []string{cfg.Device.UniqueID},
			Name:         cfg.Device.Name,
			Manufacturer: cfg.Device.Manufacturer,
			Model:        cfg.Device.Model,
			SWVersion:    cfg.Device.SWVersion,
			SerialNumber: cfg.Device.SerialNumber,
			HWVersion:    cfg.Device.HWVersion,
		},
		Origin: discovery.Origin{
			Name:      "interfono",
			SWVersion: version,
			URL:       "https://github.com/casalprim/interfono",
		},
	}
}

// getConfigPath returns the configuration file path, honouring the
// INTERFONO_CONFIG environment variable.
func getConfigPath() string {
	if path := os.Getenv("INTERFONO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
