// Package config provides Viper-based configuration loading for the breakshot
// session server and table client.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds session server settings.
type ServerConfig struct {
	// Host is the bind address for the TCP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the listener.
	Port int `mapstructure:"port"`
	// MaxRooms caps the number of concurrently open rooms.
	MaxRooms int `mapstructure:"max_rooms"`
	// MaxPlayers is the capacity given to newly created rooms.
	MaxPlayers int `mapstructure:"max_players"`
	// ReadTimeout evicts a connection that sends nothing for this long. Zero disables eviction.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds a single frame write to a client.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// OutboxSize is the number of frames buffered per client before it is dropped as too slow.
	OutboxSize int `mapstructure:"outbox_size"`
	// MaxFrameBytes bounds a single inbound frame.
	MaxFrameBytes int `mapstructure:"max_frame_bytes"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WebSocketConfig holds the optional WebSocket gateway settings.
type WebSocketConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	// Path is the HTTP path upgraded to WebSocket.
	Path string `mapstructure:"path"`
}

// Addr returns the "host:port" listen address.
func (w WebSocketConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// AdminConfig holds the gRPC health endpoint settings.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// ClientConfig holds client network bridge settings.
type ClientConfig struct {
	// DialTimeout bounds the TCP connect.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// ReadInterval is the per-read wait after which the worker re-checks its stop flag.
	ReadInterval time.Duration `mapstructure:"read_interval"`
	// WriteTimeout bounds a single frame write to the server.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// JoinTimeout bounds how long Disconnect waits for the worker to exit.
	JoinTimeout time.Duration `mapstructure:"join_timeout"`
	// OutboundSize is the number of frames that may be queued for sending.
	OutboundSize int `mapstructure:"outbound_size"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Client    ClientConfig    `mapstructure:"client"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWebSocket(c.WebSocket); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAdmin(c.Admin); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateClient(c.Client); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePort(field string, port int) string {
	if port < 0 || port > 65535 {
		return fmt.Sprintf("%s must be 0-65535, got %d", field, port)
	}
	return ""
}

func validateServer(s ServerConfig) error {
	var errs []string
	if msg := validatePort("server.port", s.Port); msg != "" {
		errs = append(errs, msg)
	}
	if s.MaxRooms < 1 {
		errs = append(errs, fmt.Sprintf("server.max_rooms must be >= 1, got %d", s.MaxRooms))
	}
	if s.MaxPlayers < 2 {
		errs = append(errs, fmt.Sprintf("server.max_players must be >= 2, got %d", s.MaxPlayers))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("server.outbox_size must be >= 1, got %d", s.OutboxSize))
	}
	if s.MaxFrameBytes < 0 {
		errs = append(errs, "server.max_frame_bytes must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWebSocket(w WebSocketConfig) error {
	if !w.Enabled {
		return nil
	}
	var errs []string
	if msg := validatePort("websocket.port", w.Port); msg != "" {
		errs = append(errs, msg)
	}
	if !strings.HasPrefix(w.Path, "/") {
		errs = append(errs, fmt.Sprintf("websocket.path must start with '/', got %q", w.Path))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAdmin(a AdminConfig) error {
	if !a.Enabled {
		return nil
	}
	if a.Host == "" {
		return errors.New("admin.host must not be empty")
	}
	if msg := validatePort("admin.port", a.Port); msg != "" {
		return errors.New(msg)
	}
	return nil
}

func validateClient(c ClientConfig) error {
	var errs []string
	if c.DialTimeout <= 0 {
		errs = append(errs, "client.dial_timeout must be positive")
	}
	if c.ReadInterval <= 0 {
		errs = append(errs, "client.read_interval must be positive")
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, "client.write_timeout must not be negative")
	}
	if c.JoinTimeout <= 0 {
		errs = append(errs, "client.join_timeout must be positive")
	}
	if c.OutboundSize < 1 {
		errs = append(errs, fmt.Sprintf("client.outbound_size must be >= 1, got %d", c.OutboundSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path loads defaults and environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with BREAKSHOT_ prefix
	v.SetEnvPrefix("BREAKSHOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration produced by defaults alone.
//
// Postcondition: Returns a Config that passes Validate.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := LoadFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7777)
	v.SetDefault("server.max_rooms", 100)
	v.SetDefault("server.max_players", 2)
	v.SetDefault("server.read_timeout", "0s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.outbox_size", 256)
	v.SetDefault("server.max_frame_bytes", 1<<20)

	v.SetDefault("websocket.enabled", false)
	v.SetDefault("websocket.host", "0.0.0.0")
	v.SetDefault("websocket.port", 7778)
	v.SetDefault("websocket.path", "/ws")

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 7780)

	v.SetDefault("client.dial_timeout", "5s")
	v.SetDefault("client.read_interval", "500ms")
	v.SetDefault("client.write_timeout", "10s")
	v.SetDefault("client.join_timeout", "2s")
	v.SetDefault("client.outbound_size", 256)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
