// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	App      AppConfig      `mapstructure:"app"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Security SecurityConfig `mapstructure:"security"`
	Printer  PrinterConfig  `mapstructure:"printer"`
	Relay    RelayConfig    `mapstructure:"relay"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TLS             TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig represents HTTP access configuration
type SecurityConfig struct {
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
	RateLimitEnabled  bool     `mapstructure:"rate_limit_enabled"`
	RateLimitRequests float64  `mapstructure:"rate_limit_requests"`
	RateLimitBurst    int      `mapstructure:"rate_limit_burst"`
}

// PrinterConfig holds transport and session settings
type PrinterConfig struct {
	DefaultPaperWidth  int           `mapstructure:"default_paper_width"`
	CharacterSet       string        `mapstructure:"character_set"`
	OperationTimeout   time.Duration `mapstructure:"operation_timeout"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	ReapInterval       time.Duration `mapstructure:"reap_interval"`
	MaxSessions        int           `mapstructure:"max_sessions"`

	OperationLogSize      int           `mapstructure:"operation_log_size"`
	OperationLogRetention time.Duration `mapstructure:"operation_log_retention"`

	USB       USBConfig       `mapstructure:"usb"`
	Bluetooth BluetoothConfig `mapstructure:"bluetooth"`
	Network   NetworkConfig   `mapstructure:"network"`
}

// USBConfig represents USB transport configuration
type USBConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Vendors    []string      `mapstructure:"vendors"`
	Timeout    time.Duration `mapstructure:"timeout"`
	AutoDetach bool          `mapstructure:"auto_detach"`
}

// BLEProfile is a GATT service and its write characteristic
type BLEProfile struct {
	Service        string `mapstructure:"service"`
	Characteristic string `mapstructure:"characteristic"`
}

// BluetoothConfig represents BLE transport configuration
type BluetoothConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Profiles     []BLEProfile  `mapstructure:"profiles"`
	NamePrefixes []string      `mapstructure:"name_prefixes"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	ChunkDelay   time.Duration `mapstructure:"chunk_delay"`
	ScanTimeout  time.Duration `mapstructure:"scan_timeout"`
}

// NetworkConfig represents network transport configuration. Mode "relay"
// posts payloads to the relay; "direct" dials the printer itself.
type NetworkConfig struct {
	Mode           string        `mapstructure:"mode"`
	DefaultPort    int           `mapstructure:"default_port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	KeepAlive      bool          `mapstructure:"keep_alive"`
}

// RelayConfig covers both ends of the relay: the URL the server calls and
// the listener and scanner of the relay binary
type RelayConfig struct {
	URL             string        `mapstructure:"url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	AllowedNetworks []string      `mapstructure:"allowed_networks"`
	MaxPayloadBytes int           `mapstructure:"max_payload_bytes"`
	ScanSubnets     []string      `mapstructure:"scan_subnets"`
	ScanPorts       []int         `mapstructure:"scan_ports"`
	ScanConcurrency int           `mapstructure:"scan_concurrency"`
	ScanMaxHosts    int           `mapstructure:"scan_max_hosts"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	MaxProbeTimeout time.Duration `mapstructure:"max_probe_timeout"`
	Identify        bool          `mapstructure:"identify"`
}

// Network modes
const (
	NetworkModeRelay  = "relay"
	NetworkModeDirect = "direct"
)

// Load reads config.yaml from the given directories (or the default
// search path) and applies POS_PRINTER_* environment overrides. A missing
// file leaves the defaults in place.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "./internal/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("POS_PRINTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.tls.enabled", false)

	// App defaults
	v.SetDefault("app.name", "pos-printer")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_requests", 10)
	v.SetDefault("security.rate_limit_burst", 20)

	// Printer defaults
	v.SetDefault("printer.default_paper_width", 80)
	v.SetDefault("printer.character_set", "PC858")
	v.SetDefault("printer.operation_timeout", "60s")
	v.SetDefault("printer.session_idle_timeout", "30m")
	v.SetDefault("printer.reap_interval", "1m")
	v.SetDefault("printer.max_sessions", 32)
	v.SetDefault("printer.operation_log_size", 1000)
	v.SetDefault("printer.operation_log_retention", "24h")

	v.SetDefault("printer.usb.enabled", true)
	v.SetDefault("printer.usb.vendors", []string{
		"04b8", "0519", "1cbe", "1504", "154f", "0fe6", "0416", "0dd4", "20d1",
	})
	v.SetDefault("printer.usb.timeout", "10s")
	v.SetDefault("printer.usb.auto_detach", true)

	v.SetDefault("printer.bluetooth.enabled", true)
	v.SetDefault("printer.bluetooth.profiles", []map[string]string{
		{"service": "000018f0-0000-1000-8000-00805f9b34fb", "characteristic": "00002af1-0000-1000-8000-00805f9b34fb"},
		{"service": "e7810a71-73ae-499d-8c15-faa9aef0c3f2", "characteristic": "bef8d6c9-9c21-4c9e-b632-bd58c1009f9f"},
	})
	v.SetDefault("printer.bluetooth.name_prefixes", []string{"TM-", "EPSON", "Star", "TSP", "Printer", "POS"})
	v.SetDefault("printer.bluetooth.chunk_size", 512)
	v.SetDefault("printer.bluetooth.chunk_delay", "50ms")
	v.SetDefault("printer.bluetooth.scan_timeout", "15s")

	v.SetDefault("printer.network.mode", NetworkModeRelay)
	v.SetDefault("printer.network.default_port", 9100)
	v.SetDefault("printer.network.connect_timeout", "5s")
	v.SetDefault("printer.network.write_timeout", "30s")
	v.SetDefault("printer.network.keep_alive", false)

	// Relay defaults
	v.SetDefault("relay.url", "http://127.0.0.1:8085")
	v.SetDefault("relay.request_timeout", "45s")
	v.SetDefault("relay.host", "127.0.0.1")
	v.SetDefault("relay.port", "8085")
	v.SetDefault("relay.allowed_networks", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8"})
	v.SetDefault("relay.max_payload_bytes", 4<<20)
	v.SetDefault("relay.scan_subnets", []string{"192.168.1.0/24"})
	v.SetDefault("relay.scan_ports", []int{9100})
	v.SetDefault("relay.scan_concurrency", 64)
	v.SetDefault("relay.scan_max_hosts", 1024)
	v.SetDefault("relay.probe_timeout", "500ms")
	v.SetDefault("relay.max_probe_timeout", "5s")
	v.SetDefault("relay.identify", true)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if !oneOf(config.App.Environment, "development", "staging", "production", "test") {
		return fmt.Errorf("app.environment must be one of: [development staging production test]")
	}
	if !oneOf(config.Logging.Level, "debug", "info", "warn", "error", "fatal") {
		return fmt.Errorf("logging.level must be one of: [debug info warn error fatal]")
	}

	if w := config.Printer.DefaultPaperWidth; w != 58 && w != 80 {
		return fmt.Errorf("printer.default_paper_width must be 58 or 80, got %d", w)
	}
	if !oneOf(config.Printer.CharacterSet, "PC858", "PC437") {
		return fmt.Errorf("printer.character_set must be PC858 or PC437")
	}
	if !oneOf(config.Printer.Network.Mode, NetworkModeRelay, NetworkModeDirect) {
		return fmt.Errorf("printer.network.mode must be %q or %q", NetworkModeRelay, NetworkModeDirect)
	}
	if n := config.Printer.Bluetooth.ChunkSize; n < 1 || n > 512 {
		return fmt.Errorf("printer.bluetooth.chunk_size must be between 1 and 512, got %d", n)
	}
	if _, err := config.Printer.USB.VendorIDs(); err != nil {
		return err
	}
	if config.Printer.Network.Mode == NetworkModeRelay && config.Relay.URL == "" {
		return fmt.Errorf("relay.url is required in relay network mode")
	}

	return nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// VendorIDs parses the hex vendor allow-list
func (c USBConfig) VendorIDs() ([]uint16, error) {
	ids := make([]uint16, 0, len(c.Vendors))
	for _, s := range c.Vendors {
		trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
		id, err := strconv.ParseUint(trimmed, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("printer.usb.vendors: invalid vendor ID %q", s)
		}
		ids = append(ids, uint16(id))
	}
	return ids, nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetRelayAddr returns the relay listen address
func (c *Config) GetRelayAddr() string {
	return fmt.Sprintf("%s:%s", c.Relay.Host, c.Relay.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
