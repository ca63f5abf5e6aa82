package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Interfono bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Camera   CameraConfig   `yaml:"camera"`
	Video    VideoConfig    `yaml:"video"`
	Journal  JournalConfig  `yaml:"journal"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies the doorbell device in the MQTT namespace and in the
// Home Assistant discovery document.
type DeviceConfig struct {
	// UniqueID is the stable device identifier. It keys the discovery topic
	// and prefixes every component unique_id.
	UniqueID string `yaml:"unique_id"`

	// RootTopic is the base of the component topic namespace.
	RootTopic string `yaml:"root_topic"`

	// DiscoveryPrefix is the Home Assistant discovery prefix.
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	Name         string `yaml:"name"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	SWVersion    string `yaml:"sw_version"`
	SerialNumber string `yaml:"serial_number"`
	HWVersion    string `yaml:"hw_version"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// GPIOConfig describes the GPIO chip and the physical wiring of every component.
type GPIOConfig struct {
	// Chip is the GPIO character device name (e.g. "gpiochip0").
	Chip string `yaml:"chip"`

	Buttons      []ButtonConfig `yaml:"buttons"`
	Sensors      []SensorConfig `yaml:"sensors"`
	PickupSwitch *SwitchConfig  `yaml:"pickup_switch,omitempty"`
}

// ButtonConfig wires one momentary doorbell button.
type ButtonConfig struct {
	Name      string `yaml:"name"`
	Pin       int    `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`

	// ActiveTime is the drive pulse duration for a simulated press.
	ActiveTime time.Duration `yaml:"active_time"`
}

// SensorConfig wires one binary presence sensor.
type SensorConfig struct {
	Name      string `yaml:"name"`
	Pin       int    `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`

	// Kind selects the sensor behaviour: "door" publishes state only,
	// "video" additionally starts/stops the video stream process.
	Kind string `yaml:"kind"`
}

// SwitchConfig wires the pickup switch, which can both sense and drive its pin.
type SwitchConfig struct {
	Name      string `yaml:"name"`
	Pin       int    `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`

	// DrivePolicy selects the command drive behaviour: "hold" asserts the
	// active level until an OFF command, "pulse" drives for ActiveTime.
	// Deployments differ in how the pickup line is wired, so this is
	// configuration rather than a code constant.
	DrivePolicy string `yaml:"drive_policy"`

	// ActiveTime is the pulse duration when DrivePolicy is "pulse".
	ActiveTime time.Duration `yaml:"active_time"`
}

// CameraConfig contains still-frame capture settings.
type CameraConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`

	// InputFormat is the ffmpeg input format (e.g. "v4l2").
	InputFormat string `yaml:"input_format"`

	// InputDevice is the capture device (e.g. "/dev/video0").
	InputDevice string `yaml:"input_device"`

	// Width is the output frame width in pixels; height keeps aspect ratio.
	Width int `yaml:"width"`

	// Timeout bounds a single capture attempt.
	Timeout time.Duration `yaml:"timeout"`
}

// VideoConfig contains settings for the managed video stream process.
type VideoConfig struct {
	Enabled bool `yaml:"enabled"`

	// Binary is the path to the stream server executable (e.g. go2rtc).
	Binary string `yaml:"binary"`

	// Args are command-line arguments for the stream server.
	Args []string `yaml:"args"`

	RestartOnFailure   bool          `yaml:"restart_on_failure"`
	RestartDelay       time.Duration `yaml:"restart_delay"`
	MaxRestartAttempts int           `yaml:"max_restart_attempts"`
	GracefulTimeout    time.Duration `yaml:"graceful_timeout"`
}

// JournalConfig contains SQLite event journal settings.
type JournalConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains settings for the optional event mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: INTERFONO_SECTION_KEY
// For example: INTERFONO_MQTT_HOST, INTERFONO_JOURNAL_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config matching the reference installation:
// two buttons, a door sensor and a video sensor on a Raspberry Pi.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			UniqueID:        "doorbell1234",
			RootTopic:       "home/doorbell",
			DiscoveryPrefix: "homeassistant",
			Name:            "Interfono",
			Manufacturer:    "PRIM, S.A.",
			Model:           "UltraGuard",
			SWVersion:       "1.0",
			SerialNumber:    "1234567890",
			HWVersion:       "v1",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "interfono",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		GPIO: GPIOConfig{
			Chip: "gpiochip0",
			Buttons: []ButtonConfig{
				{Name: "Door Button", Pin: 14, ActiveTime: 200 * time.Millisecond},
				{Name: "Video Button", Pin: 15, ActiveTime: 200 * time.Millisecond},
			},
			Sensors: []SensorConfig{
				{Name: "Door Sensor", Pin: 2, Kind: "door"},
				{Name: "Video Sensor", Pin: 4, Kind: "video"},
			},
		},
		Camera: CameraConfig{
			Name:        "Door Camera",
			InputFormat: "v4l2",
			InputDevice: "/dev/video0",
			Width:       1280,
			Timeout:     3 * time.Second,
		},
		Video: VideoConfig{
			Binary:           "go2rtc",
			Args:             []string{"-c", "go2rtc.yaml"},
			RestartOnFailure: true,
			RestartDelay:     5 * time.Second,
			GracefulTimeout:  10 * time.Second,
		},
		Journal: JournalConfig{
			Path:        "./data/interfono.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: INTERFONO_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INTERFONO_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("INTERFONO_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("INTERFONO_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INTERFONO_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("INTERFONO_GPIO_CHIP"); v != "" {
		cfg.GPIO.Chip = v
	}

	if v := os.Getenv("INTERFONO_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	if v := os.Getenv("INTERFONO_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.UniqueID == "" {
		errs = append(errs, "device.unique_id is required")
	}
	if c.Device.RootTopic == "" {
		errs = append(errs, "device.root_topic is required")
	}
	if strings.HasSuffix(c.Device.RootTopic, "/") {
		errs = append(errs, "device.root_topic must not end with '/'")
	}
	if c.Device.DiscoveryPrefix == "" {
		errs = append(errs, "device.discovery_prefix is required")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port <= 0 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1 or 2")
	}

	if c.GPIO.Chip == "" {
		errs = append(errs, "gpio.chip is required")
	}
	errs = append(errs, c.validatePins()...)

	if c.Camera.Enabled {
		if c.Camera.Name == "" {
			errs = append(errs, "camera.name is required when camera is enabled")
		}
		if c.Camera.InputDevice == "" {
			errs = append(errs, "camera.input_device is required when camera is enabled")
		}
		if c.Camera.Width <= 0 {
			errs = append(errs, "camera.width must be positive")
		}
		if c.Camera.Timeout <= 0 {
			errs = append(errs, "camera.timeout must be positive")
		}
	}

	if c.Video.Enabled && c.Video.Binary == "" {
		errs = append(errs, "video.binary is required when video is enabled")
	}

	if c.Journal.Path == "" {
		errs = append(errs, "journal.path is required")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validatePins checks component wiring for missing names, bad durations and
// pin collisions. Two components must never share a physical pin: the pin
// role controller assumes exclusive ownership.
func (c *Config) validatePins() []string {
	var errs []string
	pins := make(map[int]string)

	claim := func(pin int, name string) {
		if owner, taken := pins[pin]; taken {
			errs = append(errs, fmt.Sprintf("gpio pin %d claimed by both %q and %q", pin, owner, name))
			return
		}
		pins[pin] = name
	}

	for _, b := range c.GPIO.Buttons {
		if b.Name == "" {
			errs = append(errs, "gpio.buttons[].name is required")
			continue
		}
		if b.ActiveTime <= 0 {
			errs = append(errs, fmt.Sprintf("button %q active_time must be positive", b.Name))
		}
		claim(b.Pin, b.Name)
	}

	for _, s := range c.GPIO.Sensors {
		if s.Name == "" {
			errs = append(errs, "gpio.sensors[].name is required")
			continue
		}
		if s.Kind != "door" && s.Kind != "video" {
			errs = append(errs, fmt.Sprintf("sensor %q kind must be \"door\" or \"video\"", s.Name))
		}
		claim(s.Pin, s.Name)
	}

	if sw := c.GPIO.PickupSwitch; sw != nil {
		if sw.Name == "" {
			errs = append(errs, "gpio.pickup_switch.name is required")
		}
		switch sw.DrivePolicy {
		case "hold":
		case "pulse":
			if sw.ActiveTime <= 0 {
				errs = append(errs, fmt.Sprintf("switch %q active_time must be positive for pulse policy", sw.Name))
			}
		default:
			errs = append(errs, fmt.Sprintf("switch %q drive_policy must be \"hold\" or \"pulse\"", sw.Name))
		}
		if sw.Name != "" {
			claim(sw.Pin, sw.Name)
		}
	}

	return errs
}
