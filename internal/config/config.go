package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds the bootstrap configuration: everything else the agent needs
// is pushed by the server on each heartbeat.
type Config struct {
	ServerURL  string `json:"server_url"`
	StatusAddr string `json:"status_addr"`
	Debug      bool   `json:"debug"`
}

// Environment overrides, also honored from a .env file in the working
// directory.
const (
	envServerURL  = "MENAGENT_SERVER_URL"
	envStatusAddr = "MENAGENT_STATUS_ADDR"
	envDebug      = "MENAGENT_DEBUG"
)

const defaultStatusAddr = "localhost:9533"

// Load reads config.json from the executable's directory, then from the
// data directory, applying environment overrides last. A missing server URL
// is an error: the agent cannot do anything without its control server.
func Load(dataDir string) (*Config, error) {
	// Best effort; absence of a .env file is the normal case.
	_ = godotenv.Load()

	cfg := &Config{StatusAddr: defaultStatusAddr}

	for _, loc := range candidatePaths(dataDir) {
		data, err := os.ReadFile(loc)
		if err != nil {
			continue
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", loc, err)
		}
		break
	}

	if v := os.Getenv(envServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(envStatusAddr); v != "" {
		cfg.StatusAddr = v
	}
	if v := os.Getenv(envDebug); v == "1" || v == "true" {
		cfg.Debug = true
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url not configured: create config.json or set %s", envServerURL)
	}
	if cfg.StatusAddr == "" {
		cfg.StatusAddr = defaultStatusAddr
	}
	return cfg, nil
}

func candidatePaths(dataDir string) []string {
	var paths []string
	if exePath, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exePath), "config.json"))
	}
	paths = append(paths, filepath.Join(dataDir, "config.json"))
	return paths
}
