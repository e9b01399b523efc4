package server

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/nmeatap/internal/gps"
)

// Config holds all nmeatap configuration.
type Config struct {
	mu sync.RWMutex

	// Serial port
	GPS gps.Config `yaml:"gps" json:"gps"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	path string // file path the config was loaded from
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"` // empty disables HTTP
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GPS: gps.Config{
			Type:          "nmea",
			PortPath:      "/dev/ttyGPS",
			BaudRate:      9600,
			MaxReadErrors: 10,
		},
		Server: ServerConfig{
			ListenAddr: "",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// envKeys are the variables applyEnvOverrides understands. A .env file may
// only set these.
var envKeys = map[string]bool{
	"GPS_TYPE":            true,
	"GPS_PORT":            true,
	"GPS_SERIAL_PORT":     true,
	"GPS_BAUD":            true,
	"GPS_MAX_READ_ERRORS": true,
	"LISTEN_ADDR":         true,
}

// loadEnvFile applies the receiver settings found in a KEY=VALUE .env file.
// Variables already set in the environment win.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if !envKeys[key] {
			log.Printf("[config] %s: ignoring unknown key %s", path, key)
			continue
		}
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: GPS_SERIAL_PORT (alias GPS_PORT), GPS_BAUD, GPS_TYPE,
// GPS_MAX_READ_ERRORS, LISTEN_ADDR
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GPS_TYPE"); v != "" {
		c.GPS.Type = v
	}
	if v := os.Getenv("GPS_PORT"); v != "" {
		c.GPS.PortPath = v
	}
	if v := os.Getenv("GPS_SERIAL_PORT"); v != "" {
		c.GPS.PortPath = v
	}
	if v := os.Getenv("GPS_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GPS.BaudRate = n
		}
	}
	if v := os.Getenv("GPS_MAX_READ_ERRORS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GPS.MaxReadErrors = n
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}
