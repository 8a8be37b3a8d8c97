// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CrawlConfig is the top-level configuration for a crawl session.
type CrawlConfig struct {
	// Origin is the site root every relative link is resolved against.
	Origin string `yaml:"origin"`

	// StartURLs seed the frontier. Book crawls list /book/show URLs,
	// network crawls list /user/show URLs, sitemap crawls list the user
	// sitemap index.
	StartURLs []string `yaml:"start_urls"`

	// PopularityThreshold gates social-graph expansion: a connection is
	// followed only when its shelf size strictly exceeds this.
	PopularityThreshold int `yaml:"popularity_threshold"`

	// ProfileBatchSize groups discovered profiles for downstream queueing.
	ProfileBatchSize int `yaml:"profile_batch_size"`

	// MaxProfiles stops a session once this many profile records have
	// been emitted; 0 = no cap.
	MaxProfiles int `yaml:"max_profiles"`

	// CollectReviews makes profile pages also queue the user's read-shelf
	// listing so their reviews are extracted.
	CollectReviews bool `yaml:"collect_reviews"`

	// Concurrency is the number of parallel page workers.
	Concurrency int `yaml:"concurrency"`

	Fetch  FetchConfig  `yaml:"fetch"`
	Output OutputConfig `yaml:"output"`
	API    APIConfig    `yaml:"api"`
}

// FetchConfig tunes the HTTP fetcher and the rendered-page fallback.
type FetchConfig struct {
	Timeout        time.Duration     `yaml:"timeout"`
	RetryAttempts  int               `yaml:"retry_attempts"`
	RetryDelay     time.Duration     `yaml:"retry_delay"`
	RateLimit      float64           `yaml:"rate_limit"`
	RateBurst      int               `yaml:"rate_burst"`
	UserAgents     []string          `yaml:"user_agents"`
	Headers        map[string]string `yaml:"headers"`
	BrowserEnabled bool              `yaml:"browser_enabled"`
	BrowserTimeout time.Duration     `yaml:"browser_timeout"`
}

// OutputConfig selects and parameterizes the record sinks.
type OutputConfig struct {
	// Formats lists the enabled sinks: jsonlines, sqlite, postgres,
	// mysql, mongodb, excel.
	Formats []string `yaml:"formats"`

	Directory  string `yaml:"directory"`
	FileSuffix string `yaml:"file_suffix"`

	SQLitePath    string `yaml:"sqlite_path"`
	PostgresURL   string `yaml:"postgres_url"`
	MySQLDSN      string `yaml:"mysql_dsn"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	ExcelFile     string `yaml:"excel_file"`
}

// APIConfig tunes the HTTP control surface.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(filename string) (*CrawlConfig, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes, expanding ${VAR}
// references from the environment.
func LoadFromBytes(data []byte) (*CrawlConfig, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	expanded := expandEnvironmentVariables(string(data))

	var cfg CrawlConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *CrawlConfig {
	cfg := &CrawlConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *CrawlConfig) {
	if cfg.Origin == "" {
		cfg.Origin = "https://www.goodreads.com"
	}
	if cfg.PopularityThreshold == 0 {
		cfg.PopularityThreshold = 50
	}
	if cfg.ProfileBatchSize == 0 {
		cfg.ProfileBatchSize = 5
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 30 * time.Second
	}
	if cfg.Fetch.RetryAttempts == 0 {
		cfg.Fetch.RetryAttempts = 3
	}
	if cfg.Fetch.RetryDelay == 0 {
		cfg.Fetch.RetryDelay = time.Second
	}
	if cfg.Fetch.RateLimit == 0 {
		cfg.Fetch.RateLimit = 1.0
	}
	if cfg.Fetch.RateBurst == 0 {
		cfg.Fetch.RateBurst = 5
	}
	if cfg.Fetch.BrowserTimeout == 0 {
		cfg.Fetch.BrowserTimeout = 60 * time.Second
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []string{"jsonlines"}
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "."
	}
	if cfg.API.ListenAddr == "" {
		cfg.API.ListenAddr = ":8080"
	}
}

// Validate checks the configuration for inconsistencies.
func (cfg *CrawlConfig) Validate() error {
	if !strings.HasPrefix(cfg.Origin, "http://") && !strings.HasPrefix(cfg.Origin, "https://") {
		return fmt.Errorf("origin must be an absolute URL, got %q", cfg.Origin)
	}
	if strings.HasSuffix(cfg.Origin, "/") {
		return fmt.Errorf("origin must not end with a slash, got %q", cfg.Origin)
	}
	if cfg.PopularityThreshold < 0 {
		return fmt.Errorf("popularity_threshold cannot be negative")
	}
	if cfg.ProfileBatchSize <= 0 {
		return fmt.Errorf("profile_batch_size must be positive")
	}
	if cfg.MaxProfiles < 0 {
		return fmt.Errorf("max_profiles cannot be negative")
	}
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if cfg.Fetch.RateLimit <= 0 {
		return fmt.Errorf("fetch.rate_limit must be positive")
	}

	for _, format := range cfg.Output.Formats {
		switch format {
		case "jsonlines", "excel":
		case "sqlite":
			if cfg.Output.SQLitePath == "" {
				return fmt.Errorf("sqlite output requires sqlite_path")
			}
		case "postgres":
			if cfg.Output.PostgresURL == "" {
				return fmt.Errorf("postgres output requires postgres_url")
			}
		case "mysql":
			if cfg.Output.MySQLDSN == "" {
				return fmt.Errorf("mysql output requires mysql_dsn")
			}
		case "mongodb":
			if cfg.Output.MongoURI == "" || cfg.Output.MongoDatabase == "" {
				return fmt.Errorf("mongodb output requires mongo_uri and mongo_database")
			}
		default:
			return fmt.Errorf("unsupported output format: %s", format)
		}
	}
	return nil
}

var envVarRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvironmentVariables substitutes ${VAR} with the environment value,
// leaving unset variables as empty strings.
func expandEnvironmentVariables(data string) string {
	return envVarRegex.ReplaceAllStringFunc(data, func(match string) string {
		name := envVarRegex.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
