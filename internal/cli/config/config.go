// Package config persists the CLI's server URL and session between runs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultURL = "http://localhost:8080"

	// PathEnv moves the config file, ServerEnv and TokenEnv override the
	// stored values for a single run.
	PathEnv   = "GROUPCAL_CONFIG"
	ServerEnv = "GROUPCAL_SERVER"
	TokenEnv  = "GROUPCAL_TOKEN"
)

type Config struct {
	ServerURL string    `json:"server_url"`
	Token     string    `json:"token,omitempty"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Path is $GROUPCAL_CONFIG or groupcal/config.json under the user config dir.
func Path() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "groupcal", "config.json"), nil
}

// Load reads the stored config and applies the environment overrides. A
// missing file is not an error.
func Load() (*Config, error) {
	cfg := &Config{}

	if p, err := Path(); err == nil {
		data, err := os.ReadFile(p)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", p, err)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv(ServerEnv)); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(os.Getenv(TokenEnv)); v != "" {
		cfg.Token = v
		cfg.ExpiresAt = time.Time{}
	}

	server, err := NormalizeServerURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	cfg.ServerURL = server
	return cfg, nil
}

// Save writes through a temp file so a crash never leaves half a token on disk.
func Save(cfg *Config) error {
	server, err := NormalizeServerURL(cfg.ServerURL)
	if err != nil {
		return err
	}
	cfg.ServerURL = server

	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".config-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func Clear() error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// NormalizeServerURL defaults an empty value and strips trailing slashes and
// a trailing /api, which the client adds itself.
func NormalizeServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultURL, nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid server url %q: expected http(s)://host[:port]", raw)
	}
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/api")
	u.RawQuery, u.Fragment = "", ""
	return u.String(), nil
}

// HasToken reports a token that has not passed its recorded expiry.
func (c *Config) HasToken() bool {
	return c.Token != "" && !c.Expired()
}

func (c *Config) Expired() bool {
	return !c.ExpiresAt.IsZero() && !time.Now().Before(c.ExpiresAt)
}
