package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Taifexflow TaifexflowConfig `yaml:"taifexflow"`
	HTTP       HTTPConfig       `yaml:"http"`
	Sources    SourcesConfig    `yaml:"sources"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type TaifexflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

type SourcesConfig struct {
	Institutional InstitutionalSourceConfig `yaml:"institutional"`
	PCRatio       PCRatioSourceConfig       `yaml:"pc_ratio"`
}

type InstitutionalSourceConfig struct {
	TableURL       string `yaml:"table_url"`
	CSVURL         string `yaml:"csv_url"`
	CommodityID    string `yaml:"commodity_id"`
	TargetContract string `yaml:"target_contract"`
}

type PCRatioSourceConfig struct {
	TableURL string `yaml:"table_url"`
}

type StorageConfig struct {
	DataDir string   `yaml:"data_dir"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

// Default TAIFEX endpoints. The Excel endpoints render an HTML table, the
// Down endpoint returns a Big5 delimited payload.
const (
	DefaultInstitutionalTableURL = "https://www.taifex.com.tw/cht/3/futContractsDateExcel"
	DefaultInstitutionalCSVURL   = "https://www.taifex.com.tw/cht/3/futContractsDateDown"
	DefaultPCRatioTableURL       = "https://www.taifex.com.tw/cht/3/pcRatioExcel"
)

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			UserAgent:         "TaifexFlow/1.0",
			RequestsPerSecond: 1,
			Burst:             1,
		},
		Sources: SourcesConfig{
			Institutional: InstitutionalSourceConfig{
				TableURL:       DefaultInstitutionalTableURL,
				CSVURL:         DefaultInstitutionalCSVURL,
				CommodityID:    "TXF",
				TargetContract: "臺股期貨",
			},
			PCRatio: PCRatioSourceConfig{
				TableURL: DefaultPCRatioTableURL,
			},
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Taifexflow.Name == "" {
		return fmt.Errorf("taifexflow.name is required")
	}

	if cfg.Taifexflow.Version == "" {
		return fmt.Errorf("taifexflow.version is required")
	}

	if cfg.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be greater than 0")
	}
	if cfg.HTTP.RequestsPerSecond <= 0 {
		return fmt.Errorf("http.requests_per_second must be greater than 0")
	}
	if cfg.HTTP.Burst <= 0 {
		return fmt.Errorf("http.burst must be greater than 0")
	}

	if cfg.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}

	if cfg.Sources.Institutional.TableURL == "" {
		return fmt.Errorf("sources.institutional.table_url is required")
	}
	if cfg.Sources.Institutional.CSVURL == "" {
		return fmt.Errorf("sources.institutional.csv_url is required")
	}
	if cfg.Sources.Institutional.CommodityID == "" {
		return fmt.Errorf("sources.institutional.commodity_id is required")
	}
	if cfg.Sources.Institutional.TargetContract == "" {
		return fmt.Errorf("sources.institutional.target_contract is required")
	}
	if cfg.Sources.PCRatio.TableURL == "" {
		return fmt.Errorf("sources.pc_ratio.table_url is required")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
