// Package config loads client settings from a YAML file, an optional .env file and
// the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"game-rpc/logger"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full client configuration.
type Config struct {
	// Identity is the opaque token sent in the Login reply. Usually supplied on the
	// command line or through GAME_TOKEN rather than written to a file.
	Identity string `yaml:"identity"`

	// Game selects the move policy, e.g. "tictactoe".
	Game string `yaml:"game"`

	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   logger.Config   `yaml:"logging"`
}

// ServerConfig is the fixed game server address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TransportConfig mirrors transport.Options.
type TransportConfig struct {
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	ConnectRetries int           `yaml:"connect_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	ReadBufferSize int           `yaml:"read_buffer_size"`
	MaxFrameSize   int           `yaml:"max_frame_size"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`

	// OmitDelimiter sends calls without a trailing newline, like the reference client.
	OmitDelimiter bool `yaml:"omit_delimiter"`

	SendRate  float64 `yaml:"send_rate"`
	SendBurst int     `yaml:"send_burst"`
}

// DiscoveryConfig enables looking the server up in etcd instead of using Server.
type DiscoveryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// Strategy is one of round_robin, weighted_random, consistent_hash.
	Strategy string `yaml:"strategy"`
}

// DefaultConfig returns the baseline: the public tic-tac-toe server, no retries,
// no read timeout.
func DefaultConfig() *Config {
	return &Config{
		Game: "tictactoe",
		Server: ServerConfig{
			Host: "socket.tictactoe.tailed.ca",
			Port: 25001,
		},
		Transport: TransportConfig{
			DialTimeout:    10 * time.Second,
			RetryBaseDelay: 500 * time.Millisecond,
			ReadBufferSize: 4096,
			MaxFrameSize:   1 << 20,
		},
		Discovery: DiscoveryConfig{
			Endpoints:   []string{"127.0.0.1:2379"},
			DialTimeout: 5 * time.Second,
			Strategy:    "consistent_hash",
		},
		Logging: logger.DefaultConfig(),
	}
}

// Load reads path (a missing file means defaults), then the given .env files
// (".env" when none are named; missing files are skipped), then the environment.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set in the process
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("GAME_TOKEN"); v != "" {
		c.Identity = v
	}
	if v := os.Getenv("GAME_NAME"); v != "" {
		c.Game = v
	}
	if v := os.Getenv("GAME_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("GAME_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: GAME_SERVER_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("GAME_READ_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: GAME_READ_TIMEOUT: %w", err)
		}
		c.Transport.ReadTimeout = d
	}
	if v := os.Getenv("GAME_CONNECT_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: GAME_CONNECT_RETRIES: %w", err)
		}
		c.Transport.ConnectRetries = n
	}
	if v := os.Getenv("ETCD_ENDPOINTS"); v != "" {
		c.Discovery.Enabled = true
		c.Discovery.Endpoints = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks the settings that would otherwise fail late, after connecting.
// The identity token is checked by the session, since it may still come from argv.
func (c *Config) Validate() error {
	var errs []error
	if c.Game == "" {
		errs = append(errs, errors.New("game must be set"))
	}
	if c.Discovery.Enabled {
		if len(c.Discovery.Endpoints) == 0 {
			errs = append(errs, errors.New("discovery.endpoints must not be empty"))
		}
		switch c.Discovery.Strategy {
		case "", "round_robin", "weighted_random", "consistent_hash":
		default:
			errs = append(errs, fmt.Errorf("discovery.strategy %q is not supported", c.Discovery.Strategy))
		}
	} else {
		if c.Server.Host == "" {
			errs = append(errs, errors.New("server.host must be set"))
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
		}
	}
	if c.Transport.ConnectRetries < 0 {
		errs = append(errs, errors.New("transport.connect_retries must not be negative"))
	}
	if c.Transport.ReadTimeout < 0 || c.Transport.WriteTimeout < 0 {
		errs = append(errs, errors.New("transport timeouts must not be negative"))
	}
	if c.Transport.SendRate < 0 {
		errs = append(errs, errors.New("transport.send_rate must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
