package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Transport kinds accepted in SyncConfig.Transport.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "ws"
)

// DefaultBaseURL is the sync server used when none is configured.
const DefaultBaseURL = "http://localhost:8080"

// StorageConfig locates the local database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DeviceConfig describes this device to its peers.
type DeviceConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Type string `mapstructure:"type" yaml:"type"`
}

// SyncConfig holds settings for synchronization rounds.
type SyncConfig struct {
	// BaseURL is the root URL of the sync server. The /sync path is appended.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Transport selects "http" or "ws".
	Transport string `mapstructure:"transport" yaml:"transport"`

	// IntervalSec is how often the scheduler runs a round.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// TimeoutSec bounds a single round started by the scheduler or CLI.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// Tombstones enables deletion propagation.
	Tombstones bool `mapstructure:"tombstones" yaml:"tombstones"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// ServerConfig holds settings for the sync server.
type ServerConfig struct {
	Addr   string `mapstructure:"addr" yaml:"addr"`
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
	Token  string `mapstructure:"token" yaml:"token"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Days    []string      `mapstructure:"days" yaml:"days"`
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// Interval returns the scheduler interval.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// Timeout returns the per-round timeout.
func (c SyncConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/todosync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "todosync", "config.yaml")
}

// DefaultDataDir returns the directory holding the local databases.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "todosync")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dataDir := DefaultDataDir()
	host, _ := os.Hostname()
	return &AppConfig{
		Storage: StorageConfig{Path: filepath.Join(dataDir, "todos.db")},
		Days:    append([]string(nil), DefaultDays...),
		Device:  DeviceConfig{Name: host, Type: "desktop"},
		Sync: SyncConfig{
			BaseURL:     DefaultBaseURL,
			Transport:   TransportHTTP,
			IntervalSec: 300,
			TimeoutSec:  30,
		},
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Addr:   ":8080",
			DBPath: filepath.Join(dataDir, "server.db"),
		},
	}
}

// newViper returns a Viper instance with defaults and environment bindings.
func newViper(path string) *viper.Viper {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("storage.path", def.Storage.Path)
	v.SetDefault("days", def.Days)
	v.SetDefault("device.name", def.Device.Name)
	v.SetDefault("device.type", def.Device.Type)
	v.SetDefault("sync.base_url", def.Sync.BaseURL)
	v.SetDefault("sync.transport", def.Sync.Transport)
	v.SetDefault("sync.interval_sec", def.Sync.IntervalSec)
	v.SetDefault("sync.timeout_sec", def.Sync.TimeoutSec)
	v.SetDefault("sync.tombstones", false)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.db_path", def.Server.DBPath)
	v.SetDefault("server.token", "")

	// The desktop prototype read its server from VITE_API_URL; keep honoring it.
	_ = v.BindEnv("sync.base_url", "TODOSYNC_API_URL", "VITE_API_URL")
	_ = v.BindEnv("storage.path", "TODOSYNC_DB")
	_ = v.BindEnv("log.level", "TODOSYNC_LOG_LEVEL")
	_ = v.BindEnv("server.addr", "TODOSYNC_SERVER_ADDR")
	_ = v.BindEnv("server.token", "TODOSYNC_SERVER_TOKEN")

	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus environment overrides) are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	return decodeConfig(v, path)
}

func decodeConfig(v *viper.Viper, path string) (*AppConfig, error) {
	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Sync.BaseURL == "" {
		cfg.Sync.BaseURL = DefaultBaseURL
	}
	switch cfg.Sync.Transport {
	case TransportHTTP, TransportWebSocket:
	case "":
		cfg.Sync.Transport = TransportHTTP
	default:
		return nil, fmt.Errorf("parsing config %s: unknown sync transport %q", path, cfg.Sync.Transport)
	}
	if cfg.Sync.IntervalSec <= 0 {
		cfg.Sync.IntervalSec = 300
	}
	if len(cfg.Days) == 0 {
		cfg.Days = append([]string(nil), DefaultDays...)
	}

	return cfg, nil
}

// WatchConfig re-reads the file at path whenever it changes and passes the
// new configuration to onChange. Invalid edits are reported through onError
// and otherwise ignored.
func WatchConfig(path string, onChange func(*AppConfig), onError func(error)) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decodeConfig(v, e.Name)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("storage", cfg.Storage)
	v.Set("days", cfg.Days)
	v.Set("device", cfg.Device)
	v.Set("sync", cfg.Sync)
	v.Set("log", cfg.Log)
	v.Set("server", cfg.Server)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
