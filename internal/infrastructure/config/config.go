package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Bridge modes accepted by bridge.mode.
const (
	BridgeModeAuto    = "auto"
	BridgeModeDirect  = "direct"
	BridgeModeBridged = "bridged"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "DCCUTILS_CONFIG"

// Config is the root configuration structure for the dccutils server.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	DCC       DCCConfig       `yaml:"dcc"`
	Host      HostConfig      `yaml:"host"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DCCConfig selects and seeds the automation context.
type DCCConfig struct {
	// Context names the automation context implementation. Only "headless"
	// is built in.
	Context string `yaml:"context"`

	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	ProjectPath string   `yaml:"project_path"`
	Cameras     []string `yaml:"cameras"`
	Renderers   []string `yaml:"renderers"`
	ColorSpaces []string `yaml:"color_spaces"`
	Sequences   []string `yaml:"sequences"`

	// Width and Height size captured images in pixels.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// FramesPerCapture is the number of host ticks an asynchronous capture
	// takes to finish.
	FramesPerCapture int `yaml:"frames_per_capture"`

	// AnimationFrames is the number of frames in a captured animation.
	AnimationFrames int `yaml:"animation_frames"`
}

// HostConfig contains host main loop settings.
type HostConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// BridgeConfig contains command bridge settings.
type BridgeConfig struct {
	// Mode is "auto", "direct" or "bridged". Auto asks the automation
	// context whether it must be driven from the main loop.
	Mode          string `yaml:"mode"`
	QueueCapacity int    `yaml:"queue_capacity"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host string `yaml:"host"`

	// Port is the fixed listen port. Zero scans PortRange.
	Port      int              `yaml:"port"`
	PortRange PortRangeConfig  `yaml:"port_range"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
}

// PortRangeConfig is the half-open range [Start, End) scanned for a free
// port.
type PortRangeConfig struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite settings for the capture history.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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
}

// InfluxDBConfig contains InfluxDB connection settings.
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

	// HostConsole routes log lines to the automation context's print
	// surface instead of Output.
	HostConsole bool `yaml:"host_console"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DCCUTILS_SECTION_KEY
// For example: DCCUTILS_DATABASE_PATH, DCCUTILS_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading a file or
// the environment.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		DCC: DCCConfig{
			Context:          "headless",
			Name:             "Headless",
			Version:          "1.0",
			Cameras:          []string{"persp", "front", "side", "top"},
			Renderers:        []string{"viewport", "raytrace"},
			ColorSpaces:      []string{"sRGB", "Linear", "ACEScg"},
			Width:            320,
			Height:           180,
			FramesPerCapture: 3,
			AnimationFrames:  8,
		},
		Host: HostConfig{
			TickInterval: 16 * time.Millisecond,
		},
		Bridge: BridgeConfig{
			Mode:          BridgeModeAuto,
			QueueCapacity: 256,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			PortRange: PortRangeConfig{
				Start: 10000,
				End:   10100,
			},
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 300,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Database: DatabaseConfig{
			Path:        "./data/dccutils.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dccutils",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DCCUTILS_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// DCC
	if v := os.Getenv("DCCUTILS_DCC_CONTEXT"); v != "" {
		cfg.DCC.Context = v
	}
	if v := os.Getenv("DCCUTILS_DCC_PROJECT_PATH"); v != "" {
		cfg.DCC.ProjectPath = v
	}

	// Bridge
	if v := os.Getenv("DCCUTILS_BRIDGE_MODE"); v != "" {
		cfg.Bridge.Mode = v
	}

	// API
	if v := os.Getenv("DCCUTILS_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DCCUTILS_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DCCUTILS_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	// Database
	if v := os.Getenv("DCCUTILS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DCCUTILS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DCCUTILS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DCCUTILS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("DCCUTILS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("DCCUTILS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// DCC validation
	if c.DCC.Context == "" {
		errs = append(errs, "dcc.context is required")
	}
	if c.DCC.FramesPerCapture < 1 {
		errs = append(errs, "dcc.frames_per_capture must be at least 1")
	}

	// Host validation
	if c.Host.TickInterval <= 0 {
		errs = append(errs, "host.tick_interval must be positive")
	}

	// Bridge validation
	switch c.Bridge.Mode {
	case BridgeModeAuto, BridgeModeDirect, BridgeModeBridged:
	default:
		errs = append(errs, "bridge.mode must be auto, direct, or bridged")
	}
	if c.Bridge.QueueCapacity < 0 {
		errs = append(errs, "bridge.queue_capacity must not be negative")
	}

	// API validation
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 0 and 65535")
	}
	if c.API.Port == 0 {
		r := c.API.PortRange
		if r.Start < 1 || r.End > 65536 || r.End <= r.Start {
			errs = append(errs, "api.port_range must satisfy 1 <= start < end <= 65536")
		}
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Ports returns the candidate listen ports in the order they are tried.
func (c *Config) Ports() []int {
	return c.API.Ports()
}

// Ports returns Port alone when it is fixed, otherwise every port of
// PortRange in ascending order.
func (c APIConfig) Ports() []int {
	if c.Port != 0 {
		return []int{c.Port}
	}
	ports := make([]int, 0, max(c.PortRange.End-c.PortRange.Start, 0))
	for p := c.PortRange.Start; p < c.PortRange.End; p++ {
		ports = append(ports, p)
	}
	return ports
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
