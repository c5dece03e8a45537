package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rentwatch/models"
)

type Config struct {
	Crawl     CrawlConfig
	Filter    FilterConfig
	Notify    NotifyConfig
	Scheduler SchedulerConfig
	Snapshot  SnapshotConfig

	DBPath      string
	PostgresURL string
	ProxyURL    string
	LogLevel    string

	Stations []models.Station
}

type CrawlConfig struct {
	MaxRetries           int
	RetryDelay           time.Duration
	FetchTimeout         time.Duration
	MaxConcurrent        int
	DelayBetweenRequests time.Duration
	EnableMerging        bool
	ShowStationInfo      bool
}

type FilterConfig struct {
	MRTDistanceThreshold int     // meters
	WalkingSpeedMPerMin  float64 // meters per minute
}

type NotifyConfig struct {
	WebhookURL     string
	NotifyMode     string // "all" or "filtered"
	FilteredMode   string // "notify" or "silent"
	NotifyOnChange bool   // send Changed listings too, not just New
}

type SchedulerConfig struct {
	Cron     string
	Interval time.Duration
}

type SnapshotConfig struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Crawl: CrawlConfig{
			MaxRetries:           getEnvInt("MAX_RETRIES", 3),
			RetryDelay:           getEnvDuration("RETRY_DELAY", time.Second),
			FetchTimeout:         getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
			MaxConcurrent:        getEnvInt("MAX_CONCURRENT", 2),
			DelayBetweenRequests: getEnvDuration("DELAY_BETWEEN_REQUESTS", 500*time.Millisecond),
			EnableMerging:        getEnvBool("ENABLE_MERGING", true),
			ShowStationInfo:      getEnvBool("SHOW_STATION_INFO", true),
		},
		Filter: FilterConfig{
			MRTDistanceThreshold: getEnvInt("MRT_DISTANCE_THRESHOLD", 800),
			WalkingSpeedMPerMin:  getEnvFloat("WALKING_SPEED_M_PER_MIN", 80),
		},
		Notify: NotifyConfig{
			WebhookURL:     os.Getenv("NOTIFY_WEBHOOK_URL"),
			NotifyMode:     getEnv("NOTIFY_MODE", "filtered"),
			FilteredMode:   getEnv("FILTERED_MODE", "notify"),
			NotifyOnChange: getEnvBool("NOTIFY_ON_CHANGE", true),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("CRAWL_CRON"),
		},
		Snapshot: SnapshotConfig{
			Enabled:         getEnvBool("SNAPSHOT_ENABLED", false),
			Bucket:          os.Getenv("SNAPSHOT_S3_BUCKET"),
			Region:          getEnv("SNAPSHOT_S3_REGION", "ap-northeast-1"),
			Endpoint:        os.Getenv("SNAPSHOT_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("SNAPSHOT_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("SNAPSHOT_S3_SECRET_ACCESS_KEY"),
		},
		DBPath:      getEnv("DB_PATH", "rentwatch.db"),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		ProxyURL:    os.Getenv("PROXY_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	if interval := os.Getenv("CRAWL_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadStations(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Notify.NotifyMode {
	case "all", "filtered":
	default:
		return fmt.Errorf("invalid NOTIFY_MODE %q", c.Notify.NotifyMode)
	}
	switch c.Notify.FilteredMode {
	case "notify", "silent":
	default:
		return fmt.Errorf("invalid FILTERED_MODE %q", c.Notify.FilteredMode)
	}
	if c.Crawl.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be >= 1")
	}
	if c.Filter.MRTDistanceThreshold <= 0 {
		return fmt.Errorf("MRT_DISTANCE_THRESHOLD must be positive")
	}
	return nil
}

// stationFile is one YAML file under config/stations, typically one per line.
type stationFile struct {
	Line     string           `yaml:"line"`
	Stations []models.Station `yaml:"stations"`
}

func (c *Config) loadStations() error {
	configDir := getEnv("STATIONS_DIR", "config/stations")
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var file stationFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, s := range file.Stations {
			if s.Line == "" {
				s.Line = file.Line
			}
			c.Stations = append(c.Stations, s)
		}
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
