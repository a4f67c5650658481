package config

import (
	"flag"
	"net/url"
	"os"
	"time"

	"github.com/golang/glog"
)

// TLSConfig holds TLS configuration options
type TLSConfig struct {
	Enabled      bool
	CertFile     string
	KeyFile      string
	GenerateCert bool
	Hosts        []string
}

// CORSConfig holds CORS configuration options
type CORSConfig struct {
	Enabled          bool
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           int
}

// StoreConfig selects and locates the document store
type StoreConfig struct {
	Driver string
	DSN    string
	Dir    string
	Watch  bool
}

// Config holds the application configuration
type Config struct {
	Port            int
	BasePath        string
	ShutdownTimeout time.Duration
	ProxyURL        *url.URL
	InsecureProxy   bool
	Store           StoreConfig
	TLS             TLSConfig
	CORS            CORSConfig
}

// ParseFlags parses command line flags and merges with config file
func ParseFlags() (*Config, error) {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	configFlag := fs.String("config", "config.yml", "Path to configuration file")
	generateConfigFlag := fs.Bool("generate-config", false, "Generate a default configuration file")
	configFilePathFlag := fs.String("config-path", "config.yml", "Path where config file should be generated")

	// Simple flags for overriding config file
	portFlag := fs.Int("p", 0, "Port to listen on (overrides config)")
	storeFlag := fs.String("store", "", "Document store driver: memory, sqlite or file (overrides config)")
	dsnFlag := fs.String("dsn", "", "SQLite data source name (overrides config)")
	dirFlag := fs.String("d", "", "Directory for the file document store (overrides config)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *generateConfigFlag {
		glog.Infof("Generating default configuration file at %s", *configFilePathFlag)
		if err := SaveDefaultConfig(*configFilePathFlag); err != nil {
			return nil, err
		}
		glog.Infof("Configuration file generated successfully")
	}

	config, err := LoadConfig(*configFlag)
	if err != nil {
		glog.Warningf("Could not load config file: %v", err)
		glog.Warningf("Using default configuration")

		config, _ = LoadConfig("")
	}

	if *portFlag != 0 {
		config.Port = *portFlag
	}
	if *storeFlag != "" {
		config.Store.Driver = *storeFlag
	}
	if *dsnFlag != "" {
		config.Store.DSN = *dsnFlag
	}
	if *dirFlag != "" {
		config.Store.Dir = *dirFlag
	}

	return config, nil
}
