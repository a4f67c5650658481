package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the structure of the configuration file
type FileConfig struct {
	Server struct {
		Port            int    `yaml:"port"`
		BasePath        string `yaml:"base_path"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Store struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		Dir    string `yaml:"dir"`
		Watch  *bool  `yaml:"watch,omitempty"`
	} `yaml:"store"`

	Proxy struct {
		URL            string `yaml:"url"`
		InsecureVerify bool   `yaml:"insecure_verify"`
	} `yaml:"proxy"`

	TLS struct {
		Enabled      bool     `yaml:"enabled"`
		CertFile     string   `yaml:"cert_file"`
		KeyFile      string   `yaml:"key_file"`
		GenerateCert bool     `yaml:"generate_cert"`
		Hosts        []string `yaml:"hosts,omitempty"`
	} `yaml:"tls"`

	CORS struct {
		Enabled          bool     `yaml:"enabled"`
		AllowOrigins     []string `yaml:"allow_origins"`
		AllowMethods     []string `yaml:"allow_methods"`
		AllowHeaders     []string `yaml:"allow_headers"`
		AllowCredentials bool     `yaml:"allow_credentials"`
		MaxAge           int      `yaml:"max_age"`
	} `yaml:"cors"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Port:            3000,
		BasePath:        "/api/trading/modeler",
		ShutdownTimeout: 10 * time.Second,
		InsecureProxy:   false,
		Store: StoreConfig{
			Driver: "memory",
			DSN:    "modeler.db",
			Dir:    "data",
			Watch:  true,
		},
		TLS: TLSConfig{
			Enabled:      false,
			CertFile:     "cert/cert.pem",
			KeyFile:      "cert/key.pem",
			GenerateCert: false,
			Hosts:        []string{"localhost", "127.0.0.1"},
		},
		CORS: CORSConfig{
			Enabled:          false,
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowHeaders:     []string{"Content-Type", "Authorization", "Subscribe", "Version", "Parents"},
			AllowCredentials: false,
			MaxAge:           86400,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()

	// If no config file specified, return default config
	if filePath == "" {
		return config, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Server settings
	if fileConfig.Server.Port != 0 {
		config.Port = fileConfig.Server.Port
	}
	if fileConfig.Server.BasePath != "" {
		config.BasePath = "/" + strings.Trim(fileConfig.Server.BasePath, "/")
	}
	if fileConfig.Server.ShutdownTimeout != "" {
		timeout, err := time.ParseDuration(fileConfig.Server.ShutdownTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
		}
		config.ShutdownTimeout = timeout
	}

	// Store settings
	if fileConfig.Store.Driver != "" {
		config.Store.Driver = fileConfig.Store.Driver
	}
	if fileConfig.Store.DSN != "" {
		config.Store.DSN = fileConfig.Store.DSN
	}
	if fileConfig.Store.Dir != "" {
		config.Store.Dir = fileConfig.Store.Dir
	}
	if fileConfig.Store.Watch != nil {
		config.Store.Watch = *fileConfig.Store.Watch
	}

	// Proxy settings
	if fileConfig.Proxy.URL != "" {
		proxyURL, err := url.Parse(fileConfig.Proxy.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		config.ProxyURL = proxyURL
		config.InsecureProxy = fileConfig.Proxy.InsecureVerify
	}

	// TLS settings
	config.TLS.Enabled = fileConfig.TLS.Enabled
	if fileConfig.TLS.CertFile != "" {
		config.TLS.CertFile = fileConfig.TLS.CertFile
	}
	if fileConfig.TLS.KeyFile != "" {
		config.TLS.KeyFile = fileConfig.TLS.KeyFile
	}
	config.TLS.GenerateCert = fileConfig.TLS.GenerateCert
	if len(fileConfig.TLS.Hosts) > 0 {
		config.TLS.Hosts = fileConfig.TLS.Hosts
	}

	// CORS settings
	config.CORS.Enabled = fileConfig.CORS.Enabled
	if len(fileConfig.CORS.AllowOrigins) > 0 {
		config.CORS.AllowOrigins = fileConfig.CORS.AllowOrigins
	}
	if len(fileConfig.CORS.AllowMethods) > 0 {
		config.CORS.AllowMethods = fileConfig.CORS.AllowMethods
	}
	if len(fileConfig.CORS.AllowHeaders) > 0 {
		config.CORS.AllowHeaders = fileConfig.CORS.AllowHeaders
	}
	config.CORS.AllowCredentials = fileConfig.CORS.AllowCredentials
	if fileConfig.CORS.MaxAge != 0 {
		config.CORS.MaxAge = fileConfig.CORS.MaxAge
	}

	return config, nil
}

// SaveDefaultConfig saves a default configuration file
func SaveDefaultConfig(filePath string) error {
	defaults := DefaultConfig()
	var fileConfig FileConfig

	fileConfig.Server.Port = defaults.Port
	fileConfig.Server.BasePath = defaults.BasePath
	fileConfig.Server.ShutdownTimeout = defaults.ShutdownTimeout.String()

	fileConfig.Store.Driver = defaults.Store.Driver
	fileConfig.Store.DSN = defaults.Store.DSN
	fileConfig.Store.Dir = defaults.Store.Dir
	fileConfig.Store.Watch = &defaults.Store.Watch

	fileConfig.Proxy.URL = ""
	fileConfig.Proxy.InsecureVerify = false

	fileConfig.TLS.Enabled = defaults.TLS.Enabled
	fileConfig.TLS.CertFile = defaults.TLS.CertFile
	fileConfig.TLS.KeyFile = defaults.TLS.KeyFile
	fileConfig.TLS.GenerateCert = defaults.TLS.GenerateCert
	fileConfig.TLS.Hosts = defaults.TLS.Hosts

	fileConfig.CORS.Enabled = defaults.CORS.Enabled
	fileConfig.CORS.AllowOrigins = defaults.CORS.AllowOrigins
	fileConfig.CORS.AllowMethods = defaults.CORS.AllowMethods
	fileConfig.CORS.AllowHeaders = defaults.CORS.AllowHeaders
	fileConfig.CORS.AllowCredentials = defaults.CORS.AllowCredentials
	fileConfig.CORS.MaxAge = defaults.CORS.MaxAge

	data, err := yaml.Marshal(fileConfig)
	if err != nil {
		return fmt.Errorf("error creating default config: %w", err)
	}

	yamlWithComments := "# Position Modeler Service Configuration\n" +
		"# store.driver is one of memory, sqlite or file\n\n" +
		string(data)

	if err := os.WriteFile(filePath, []byte(yamlWithComments), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
