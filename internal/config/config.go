package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// this is a pointer so that if someone attempts to use it before loading it will
// panic and force them to load it first.
// it is also private so that it cannot be modified after loading.
var _loaded *Config

// Config is the main configuration structure
type Config struct {
	Common Common `yaml:"common"`
}

// Load loads the configuration following proper precedence: defaults → config file → environment variables
func Load() {
	_loaded = &defaultConfig

	configFile := os.Getenv("SENTINEL_CONFIG_FILE")
	if configFile == "" {
		configFile = "sentinel.yaml"
	}

	log.Printf("Attempting to load config file: %s", configFile)

	if err := LoadFromFile(configFile); err != nil {
		log.Printf("Failed to load config file: %v, using defaults", err)
	} else {
		log.Printf("Successfully loaded config from file: %s", configFile)
	}

	ApplyEnvOverrides()

	if _loaded != nil {
		log.Printf("Final config - Graph URI: %s, Model: %s, Heal interval: %dh",
			_loaded.Common.Graph.URI,
			_loaded.Common.Model.Name,
			_loaded.Common.Heal.IntervalHours)
	}
}

// LoadDefault loads only the built-in defaults, skipping file and env discovery.
func LoadDefault() {
	config := defaultConfig
	_loaded = &config
}

// LoadFromFile loads configuration from a YAML file, merged over defaults.
func LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	_loaded = &cfg
	return nil
}

// ApplyEnvOverrides applies environment variable overrides, highest priority.
func ApplyEnvOverrides() {
	if _loaded == nil {
		return
	}

	if v := os.Getenv("GRAPH_URI"); v != "" {
		_loaded.Common.Graph.URI = v
	}
	if v := os.Getenv("GRAPH_USER"); v != "" {
		_loaded.Common.Graph.User = v
	}
	if v := os.Getenv("GRAPH_PASSWORD"); v != "" {
		_loaded.Common.Graph.Password = v
	}
	if v := os.Getenv("GRAPH_DATABASE"); v != "" {
		_loaded.Common.Graph.Database = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		_loaded.Common.Model.Name = v
	}
	if v := os.Getenv("MODEL_BASE_URL"); v != "" {
		_loaded.Common.Model.BaseURL = v
	}
	if v := os.Getenv("SCRAPER_API_KEY"); v != "" {
		_loaded.Common.Scraper.APIKey = v
	}
	if v := os.Getenv("JOB_BROKER_URL"); v != "" {
		_loaded.Common.Jobs.BrokerURL = v
	}
	if v := os.Getenv("HEAL_DAYS_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			_loaded.Common.Heal.DaysThreshold = n
		}
	}
	if v := os.Getenv("HEAL_INTERVAL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			_loaded.Common.Heal.IntervalHours = n
		}
	}
	if v := os.Getenv("HEAL_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			_loaded.Common.Heal.Parallelism = n
		}
	}
	if v := os.Getenv("HTTP_HOST"); v != "" {
		_loaded.Common.Http.Host = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			_loaded.Common.Http.Port = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		_loaded.Common.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		_loaded.Common.Log.Format = v
	}
}

// set sane defaults for all of the config options. when loading the config from
// the file, any options that are not set will be set to these defaults.
var defaultConfig = Config{
	Common: Common{
		Log: logConfig{
			Level:  "info",
			Format: "json",
		},
		Http: httpConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Graph: graphConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
		Model: modelConfig{
			Name: "gpt-4o-mini",
		},
		Scraper: scraperConfig{
			AttemptBudget: 3,
			BaseDelay:     1,
			BackoffFactor: 2,
			MaxDelay:      30,
			MinVendorGap:  1,
		},
		Heal: healConfig{
			DaysThreshold: 7,
			IntervalHours: 6,
			Parallelism:   1,
		},
		Jobs: jobsConfig{},
	},
}

type Common struct {
	Log     logConfig     `yaml:"log"`
	Http    httpConfig    `yaml:"http"`
	Graph   graphConfig   `yaml:"graph"`
	Model   modelConfig   `yaml:"model"`
	Scraper scraperConfig `yaml:"scraper"`
	Heal    healConfig    `yaml:"heal"`
	Jobs    jobsConfig    `yaml:"jobs"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type httpConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// graphConfig holds the bolt-style property-graph connection.
type graphConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// modelConfig configures the fact extractor's LLM endpoint.
type modelConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

// scraperConfig configures provider selection and retry policy.
type scraperConfig struct {
	APIKey        string `yaml:"api_key"`
	AttemptBudget int    `yaml:"attempt_budget"`
	BaseDelay     int    `yaml:"base_delay_seconds"`
	BackoffFactor int    `yaml:"backoff_factor"`
	MaxDelay      int    `yaml:"max_delay_seconds"`
	MinVendorGap  int    `yaml:"min_vendor_gap_seconds"`
}

// healConfig configures the healing loop.
type healConfig struct {
	DaysThreshold int `yaml:"days_threshold"`
	IntervalHours int `yaml:"interval_hours"`
	Parallelism   int `yaml:"parallelism"`
}

// jobsConfig configures the optional durable job queue.
type jobsConfig struct {
	BrokerURL string `yaml:"broker_url"`
}

// there should be a getter for each top level field in the config struct.
// these getters will panic if the config has not been loaded.

func Logger() logConfig {
	mustBeLoaded()
	return _loaded.Common.Log
}

func Http() httpConfig {
	mustBeLoaded()
	return _loaded.Common.Http
}

func Graph() graphConfig {
	mustBeLoaded()
	return _loaded.Common.Graph
}

func Model() modelConfig {
	mustBeLoaded()
	return _loaded.Common.Model
}

func Scraper() scraperConfig {
	mustBeLoaded()
	return _loaded.Common.Scraper
}

func Heal() healConfig {
	mustBeLoaded()
	return _loaded.Common.Heal
}

func Jobs() jobsConfig {
	mustBeLoaded()
	return _loaded.Common.Jobs
}

// Get returns the full configuration.
func Get() *Config {
	mustBeLoaded()
	return _loaded
}

func mustBeLoaded() {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
}
