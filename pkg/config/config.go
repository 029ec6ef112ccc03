package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/edgeplane/pkg/ingest"
	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/render"
	"github.com/cuemby/edgeplane/pkg/storage"
)

// Config is the control plane configuration
type Config struct {
	// ManifestDir holds the resource manifests
	ManifestDir string `yaml:"manifest_dir"`
	// DataDir holds the build history database
	DataDir      string        `yaml:"data_dir"`
	CacheEnabled bool          `yaml:"cache_enabled"`
	Debounce     time.Duration `yaml:"debounce"`
	History      int           `yaml:"history"`

	Log  LogConfig  `yaml:"log"`
	XDS  XDSConfig  `yaml:"xds"`
	HTTP HTTPConfig `yaml:"http"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// XDSConfig locates the ADS server. AdvertiseHost and AdvertisePort are
// written into the bootstrap so the proxy can dial back.
type XDSConfig struct {
	Listen        string `yaml:"listen"`
	NodeID        string `yaml:"node_id"`
	NodeCluster   string `yaml:"node_cluster"`
	AdvertiseHost string `yaml:"advertise_host"`
	AdvertisePort int    `yaml:"advertise_port"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	opts := render.DefaultOptions()
	return &Config{
		ManifestDir:  "./manifests",
		DataDir:      "./edgeplane-data",
		CacheEnabled: true,
		Debounce:     ingest.DefaultDebounce,
		History:      storage.DefaultHistory,
		Log:          LogConfig{Level: string(log.InfoLevel)},
		XDS: XDSConfig{
			Listen:        fmt.Sprintf(":%d", opts.XDSPort),
			NodeID:        opts.NodeID,
			NodeCluster:   opts.NodeCluster,
			AdvertiseHost: opts.XDSHost,
			AdvertisePort: opts.XDSPort,
		},
		HTTP: HTTPConfig{Listen: ":9090"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var errs []error
	if c.ManifestDir == "" {
		errs = append(errs, errors.New("manifest_dir is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Debounce < 0 {
		errs = append(errs, errors.New("debounce must not be negative"))
	}
	if c.History < 1 {
		errs = append(errs, errors.New("history must be at least 1"))
	}
	if !log.Level(c.Log.Level).Valid() {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	if c.XDS.NodeID == "" {
		errs = append(errs, errors.New("xds.node_id is required"))
	}
	if c.XDS.AdvertisePort < 1 || c.XDS.AdvertisePort > 65535 {
		errs = append(errs, fmt.Errorf("xds.advertise_port %d out of range", c.XDS.AdvertisePort))
	}
	for name, addr := range map[string]string{"xds.listen": c.XDS.Listen, "http.listen": c.HTTP.Listen} {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// RenderOptions returns the renderer options derived from the config
func (c *Config) RenderOptions() render.Options {
	return render.Options{
		NodeID:      c.XDS.NodeID,
		NodeCluster: c.XDS.NodeCluster,
		XDSHost:     c.XDS.AdvertiseHost,
		XDSPort:     c.XDS.AdvertisePort,
	}
}

// LogOptions returns the logger configuration
func (c *Config) LogOptions() log.Config {
	return log.Config{Level: log.ParseLevel(c.Log.Level), JSONOutput: c.Log.JSON}
}
