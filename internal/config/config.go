package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scoring modes
const (
	ScoringHeuristic = "heuristic"
	ScoringModel     = "model"
	ScoringOpenAI    = "openai"
)

type Config struct {
	Server struct {
		Host      string   `yaml:"host"`
		Port      int      `yaml:"port"`
		APIKeys   []string `yaml:"api_keys"`
		RateLimit struct {
			Capacity     int     `yaml:"capacity"`
			RefillPerSec float64 `yaml:"refill_per_sec"`
		} `yaml:"rate_limit"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Processing struct {
		ResultsDir       string        `yaml:"results_dir"`
		BlockDelay       time.Duration `yaml:"block_delay"`
		MaxDelayedBlocks int           `yaml:"max_delayed_blocks"`
		WriteCSV         bool          `yaml:"write_csv"`
		Seed             int64         `yaml:"seed"`
	} `yaml:"processing"`

	Callback struct {
		DefaultURL string        `yaml:"default_url"`
		PerBlock   bool          `yaml:"per_block"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"callback"`

	Scoring struct {
		Mode      string `yaml:"mode"`
		ModelPath string `yaml:"model_path"`
	} `yaml:"scoring"`

	OpenAI struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"openai"`

	Database struct {
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	PubSub struct {
		Channel string `yaml:"channel"`
	} `yaml:"pubsub"`

	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
}

// Default returns the built-in settings used when no file or env says otherwise.
func Default() *Config {
	var c Config
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 5000
	c.Server.CORSOrigins = []string{"*"}
	c.Processing.ResultsDir = "analysis_results"
	c.Processing.BlockDelay = 2 * time.Second
	c.Processing.MaxDelayedBlocks = 10
	c.Processing.WriteCSV = true
	c.Callback.DefaultURL = "http://localhost:3000/api/analysis-callback"
	c.Callback.Timeout = 10 * time.Second
	c.Scoring.Mode = ScoringHeuristic
	c.OpenAI.Model = "gpt-4o-mini"
	c.Minio.Region = "us-east-1"
	c.Minio.BucketName = "analysis-results"
	c.PubSub.Channel = "analysis_complete"
	c.Log.Level = "info"
	return &c
}

// Load baca file config.yaml, apply env overrides, then validate.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("HOST", &c.Server.Host)
	integer("PORT", &c.Server.Port)
	str("ANALYSIS_RESULTS_DIR", &c.Processing.ResultsDir)
	if v, ok := lookup("CALLBACK_DELAY_SECONDS"); ok {
		secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CALLBACK_DELAY_SECONDS: %w", err))
		} else {
			c.Processing.BlockDelay = time.Duration(secs * float64(time.Second))
		}
	}
	integer("MAX_DELAYED_BLOCKS", &c.Processing.MaxDelayedBlocks)
	boolean("WRITE_CSV", &c.Processing.WriteCSV)
	str("CALLBACK_URL", &c.Callback.DefaultURL)
	boolean("PER_BLOCK_CALLBACKS", &c.Callback.PerBlock)
	str("SCORING_MODE", &c.Scoring.Mode)
	str("MODEL_PATH", &c.Scoring.ModelPath)
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_MODEL", &c.OpenAI.Model)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)
	str("MINIO_ENDPOINT", &c.Minio.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	str("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	str("MINIO_BUCKET", &c.Minio.BucketName)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Processing.ResultsDir == "" {
		errs = append(errs, errors.New("processing.results_dir is required"))
	}
	if c.Processing.BlockDelay < 0 {
		errs = append(errs, errors.New("processing.block_delay must not be negative"))
	}
	if c.Processing.MaxDelayedBlocks < 0 {
		errs = append(errs, errors.New("processing.max_delayed_blocks must not be negative"))
	}
	if c.Callback.Timeout <= 0 {
		errs = append(errs, errors.New("callback.timeout must be positive"))
	}
	if c.Callback.DefaultURL != "" {
		if u, err := url.Parse(c.Callback.DefaultURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("callback.default_url %q is not an http(s) url", c.Callback.DefaultURL))
		}
	}
	switch c.Scoring.Mode {
	case ScoringHeuristic:
	case ScoringModel:
		if c.Scoring.ModelPath == "" {
			errs = append(errs, errors.New("scoring.model_path is required in model mode"))
		}
	case ScoringOpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required in openai mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("scoring.mode %q is not one of heuristic, model, openai", c.Scoring.Mode))
	}
	switch c.Database.Driver {
	case "":
	case "mysql", "postgres":
		if c.DSN() == "" {
			errs = append(errs, errors.New("database.dsn or database.host is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not mysql or postgres", c.Database.Driver))
	}
	if c.Server.RateLimit.Capacity < 0 || c.Server.RateLimit.RefillPerSec < 0 {
		errs = append(errs, errors.New("server.rate_limit values must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DSN returns database.dsn, or builds one from the host fields.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	if c.Database.Host == "" {
		return ""
	}
	switch c.Database.Driver {
	case "postgres":
		return c.PostgresDSN()
	default:
		return c.MySQLDSN()
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) MinioEnabled() bool { return c.Minio.Endpoint != "" }

func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }
