package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit    string        `yaml:"git_commit" envconfig:"BKM_GIT_COMMIT"`
	GitTag       string        `yaml:"git_tag" envconfig:"BKM_GIT_TAG"`
	BuildTime    string        `yaml:"build_time" envconfig:"BKM_BUILD_TIME"`
	IsProduction bool          `yaml:"is_production" envconfig:"BKM_IS_PRODUCTION"`
	LogLevel     zapcore.Level `yaml:"log_level" envconfig:"BKM_LOG_LEVEL"`
	LogFile      string        `yaml:"log_file" envconfig:"BKM_LOG_FILE"`
	API          APIConfig     `yaml:"api"`
	Server       ServerConfig  `yaml:"server"`
	Storage      StorageConfig `yaml:"storage"`
	Redis        RedisConfig   `yaml:"redis"`
	BoltDB       BoltDBConfig  `yaml:"boltdb"`
}

// APIConfig targets a deployment of the remote library service.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BKM_API_BASE_URL"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"BKM_API_REQUEST_TIMEOUT"`
	PageLimit      int           `yaml:"page_limit" envconfig:"BKM_API_PAGE_LIMIT"`
}

// ServerConfig drives the bundled dev service (`bookmate serve`).
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"BKM_SERVER_HOST"`
	Port            string        `yaml:"port" envconfig:"BKM_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"BKM_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"BKM_SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"BKM_SERVER_SHUTDOWN_TIMEOUT"`
	ProfilerEnable  bool          `yaml:"profiler_enable" envconfig:"BKM_SERVER_PROFILER_ENABLE"`
}

// StorageConfig selects the dev service storage backend.
type StorageConfig struct {
	// Backend is either "bolt" or "redis".
	Backend string `yaml:"backend" envconfig:"BKM_STORAGE_BACKEND"`
	// MirrorToBolt enables the write-behind mutation mirror when
	// the backend is redis.
	MirrorToBolt bool `yaml:"mirror_to_bolt" envconfig:"BKM_STORAGE_MIRROR_TO_BOLT"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"BKM_REDIS_HOST"`
	Port          string        `yaml:"port" envconfig:"BKM_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"BKM_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"BKM_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"BKM_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" envconfig:"BKM_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"BKM_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" envconfig:"BKM_REDIS_USERNAME"`
	Password      string        `yaml:"password" envconfig:"BKM_REDIS_PASSWORD"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"BKM_REDIS_DATABASE_INDEX"`
}

type BoltDBConfig struct {
	FilePath      string        `yaml:"filepath" envconfig:"BKM_BOLTDB_FILE_PATH"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"BKM_BOLTDB_TIMEOUT"`
	BooksBucket   string        `yaml:"books_bucket" envconfig:"BKM_BOLTDB_BOOKS_BUCKET"`
	BorrowsBucket string        `yaml:"borrows_bucket" envconfig:"BKM_BOLTDB_BORROWS_BUCKET"`
	TotalsBucket  string        `yaml:"totals_bucket" envconfig:"BKM_BOLTDB_TOTALS_BUCKET"`
}

// DefaultConfig provides the settings used when no config file is
// present, so the client side runs without any setup.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: zapcore.InfoLevel,
		LogFile:  "logs/bookmate.log",
		API: APIConfig{
			BaseURL:        "http://localhost:8080",
			RequestTimeout: 15 * time.Second,
			PageLimit:      20,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{Backend: "bolt"},
		BoltDB: BoltDBConfig{
			FilePath:      "bookmate.db",
			Timeout:       5 * time.Second,
			BooksBucket:   "books",
			BorrowsBucket: "borrows",
			TotalsBucket:  "borrow.totals",
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        "6379",
			DialTimeout: 5 * time.Second,
		},
	}
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := DefaultConfig()
	yd := yaml.NewDecoder(file)
	if err = yd.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and overlays them
// on the given config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig fills build tags values and rejects unusable settings.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.API.BaseURL) == 0 {
		return errors.New("make sure to set the library service base url in configuration")
	}

	switch config.Storage.Backend {
	case "bolt", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q: must be bolt or redis", config.Storage.Backend)
	}

	if config.API.PageLimit <= 0 {
		config.API.PageLimit = 20
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined
// sources then builds the app configuration data. A missing config.yml
// or config.env is not fatal: defaults then environment apply.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	config, err := LoadConfigFile("./config.yml")
	if os.IsNotExist(err) {
		config = DefaultConfig()
	} else if err != nil {
		return nil, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	if err = godotenv.Load("./config.env"); err != nil && !os.IsNotExist(err) {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `BKM`.
	if err = LoadConfigEnvs("BKM", config); err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	if err = InitConfig(config, gitCommit, gitTag, buildTime); err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
