package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/feichai0017/textract-csv/pkg/logger"
)

var (
	once      sync.Once
	appConfig *Config
	loadErr   error
)

// Config is the full process configuration shared by the server and the worker.
type Config struct {
	Pipeline Pipeline      `yaml:"pipeline"`
	Storage  string        `yaml:"storage"`
	AWS      AWS           `yaml:"aws"`
	Minio    Minio         `yaml:"minio"`
	Redis    Redis         `yaml:"redis"`
	Server   Server        `yaml:"server"`
	Worker   Worker        `yaml:"worker"`
	Log      logger.Config `yaml:"log"`
}

// Pipeline carries everything the four handlers need. It is passed to the
// service at construction instead of being read from globals.
type Pipeline struct {
	ServiceRoleARN       string   `yaml:"serviceRoleArn"`
	NotificationTopicARN string   `yaml:"notificationTopicArn"`
	UploadTopicARN       string   `yaml:"uploadTopicArn"`
	Bucket               string   `yaml:"bucket"`
	UploadPrefix         string   `yaml:"uploadPrefix"`
	ProcessedPrefix      string   `yaml:"processedPrefix"`
	APIKey               string   `yaml:"apiKey"`
	UploadURLExpiry      Duration `yaml:"uploadUrlExpiry"`
	DownloadURLExpiry    Duration `yaml:"downloadUrlExpiry"`
	Preflight            bool     `yaml:"preflight"`
	MaxResults           int32    `yaml:"maxResults"`
}

type AWS struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

type Minio struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	Region    string `yaml:"region"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

type Server struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metricsAddr"`
}

type Worker struct {
	Concurrency int      `yaml:"concurrency"`
	MaxRetry    int      `yaml:"maxRetry"`
	Timeout     Duration `yaml:"timeout"`
}

// Duration accepts Go duration strings ("1h", "300s") in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// parseDuration also accepts a bare integer as seconds.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	return d, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Pipeline: Pipeline{
			UploadPrefix:      "uploads",
			ProcessedPrefix:   "processed",
			UploadURLExpiry:   Duration{time.Hour},
			DownloadURLExpiry: Duration{5 * time.Minute},
			MaxResults:        1000,
		},
		Storage: "s3",
		Redis: Redis{
			Addr: "localhost:6379",
		},
		Server: Server{
			Addr:        ":8080",
			MetricsAddr: ":9090",
		},
		Worker: Worker{
			Concurrency: 10,
			MaxRetry:    5,
			Timeout:     Duration{15 * time.Minute},
		},
		Log: logger.Config{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout"},
			ErrorPaths:  []string{"stderr"},
			MaxSize:     100,
			MaxBackups:  3,
			MaxAge:      7,
			Compress:    true,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, an optional
// .env file and finally the process environment, in that order.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("Warning: .env file not found at %s, falling back to environment variables", envFile)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get loads the process configuration once. CONFIG_FILE names an optional
// YAML file; a .env next to the module root is read if present.
func Get() (*Config, error) {
	once.Do(func() {
		_, filename, _, _ := runtime.Caller(0)
		rootDir := filepath.Dir(filepath.Dir(filename))
		envPath := filepath.Join(rootDir, ".env")

		appConfig, loadErr = Load(os.Getenv("CONFIG_FILE"), envPath)
		if loadErr == nil {
			loadErr = appConfig.Validate()
		}
	})
	return appConfig, loadErr
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	p := c.Pipeline
	if p.Bucket == "" {
		errs = append(errs, errors.New("pipeline.bucket is required"))
	}
	if p.APIKey == "" {
		errs = append(errs, errors.New("pipeline.apiKey is required"))
	}
	if p.NotificationTopicARN == "" {
		errs = append(errs, errors.New("pipeline.notificationTopicArn is required"))
	}
	if p.ServiceRoleARN == "" {
		errs = append(errs, errors.New("pipeline.serviceRoleArn is required"))
	}
	if p.UploadURLExpiry.Duration <= 0 || p.DownloadURLExpiry.Duration <= 0 {
		errs = append(errs, errors.New("pipeline url expiries must be positive"))
	}
	switch c.Storage {
	case "s3", "minio":
	default:
		errs = append(errs, fmt.Errorf("unsupported storage type: %s", c.Storage))
	}
	return errors.Join(errs...)
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("BUCKET_NAME", &cfg.Pipeline.Bucket)
	str("UPLOAD_PREFIX", &cfg.Pipeline.UploadPrefix)
	str("PROCESSED_PREFIX", &cfg.Pipeline.ProcessedPrefix)
	str("VALID_API_KEY", &cfg.Pipeline.APIKey)
	str("TEXTRACT_ROLE_ARN", &cfg.Pipeline.ServiceRoleARN)
	str("TEXTRACT_SNS_TOPIC_ARN", &cfg.Pipeline.NotificationTopicARN)
	str("UPLOAD_SNS_TOPIC_ARN", &cfg.Pipeline.UploadTopicARN)
	str("STORAGE_TYPE", &cfg.Storage)

	str("AWS_REGION", &cfg.AWS.Region)
	str("AWS_ENDPOINT", &cfg.AWS.Endpoint)
	str("AWS_ACCESS_KEY", &cfg.AWS.AccessKey)
	str("AWS_SECRET_KEY", &cfg.AWS.SecretKey)

	str("MINIO_ENDPOINT", &cfg.Minio.Endpoint)
	str("MINIO_ACCESS_KEY", &cfg.Minio.AccessKey)
	str("MINIO_SECRET_KEY", &cfg.Minio.SecretKey)
	str("MINIO_REGION", &cfg.Minio.Region)

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("HTTP_ADDR", &cfg.Server.Addr)
	str("METRICS_ADDR", &cfg.Server.MetricsAddr)
	str("LOG_LEVEL", &cfg.Log.Level)

	durations := map[string]*Duration{
		"UPLOAD_URL_EXPIRY":   &cfg.Pipeline.UploadURLExpiry,
		"DOWNLOAD_URL_EXPIRY": &cfg.Pipeline.DownloadURLExpiry,
		"WORKER_TIMEOUT":      &cfg.Worker.Timeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			dst.Duration = d
		}
	}

	ints := map[string]*int{
		"REDIS_DB":           &cfg.Redis.DB,
		"WORKER_CONCURRENCY": &cfg.Worker.Concurrency,
		"WORKER_MAX_RETRY":   &cfg.Worker.MaxRetry,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: invalid integer %q", key, v)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"PREFLIGHT_PDF": &cfg.Pipeline.Preflight,
		"MINIO_USE_SSL": &cfg.Minio.UseSSL,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: invalid boolean %q", key, v)
			}
			*dst = b
		}
	}
	return nil
}
