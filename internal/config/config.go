package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultAPIURL is the backend used when nothing else is configured.
// Override at build time with
// -ldflags "-X github.com/mgomes/resumefind/internal/config.DefaultAPIURL=https://..."
var DefaultAPIURL = "http://localhost:8000"

const envPrefix = "RFIND"

type Config struct {
	APIURL   string `json:"api_url" mapstructure:"api_url"`
	WatchDir string `json:"watch_dir,omitempty" mapstructure:"watch_dir"`
	LogFile  string `json:"log_file,omitempty" mapstructure:"log_file"`
	Debug    bool   `json:"debug,omitempty" mapstructure:"debug"`
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rfind"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func DefaultLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "rfind.log"), nil
}

// Load resolves the config from v. Values bound to flags or RFIND_* variables
// win over the file at path. An empty path means the default location; a
// missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault("api_url", DefaultAPIURL)
	for _, key := range []string{"watch_dir", "log_file", "debug"} {
		// Unmarshal only sees env values for keys viper knows about.
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.LogFile == "" {
		if p, err := DefaultLogPath(); err == nil {
			c.LogFile = p
		}
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api_url %q: %w", c.APIURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api_url %q: want http(s)://host[:port]", c.APIURL)
	}

	if c.WatchDir != "" {
		info, err := os.Stat(c.WatchDir)
		if err != nil {
			return fmt.Errorf("invalid watch_dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("invalid watch_dir: %s is not a directory", c.WatchDir)
		}
	}

	return nil
}

func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	data = append(data, '\n')
	return os.WriteFile(path, data, 0600)
}
