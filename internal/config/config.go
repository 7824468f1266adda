package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/haliard/binsight/internal/domain/scans"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
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

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Analyzer struct {
		StaticImage  string `yaml:"staticImage"`
		DynamicImage string `yaml:"dynamicImage"`
		PhaseTimeout string `yaml:"phaseTimeout"` // e.g. "90s"
	} `yaml:"analyzer"`

	// ThreatBands overrides the default confidence band edges when set.
	ThreatBands domain.BandPolicy `yaml:"threatBands"`

	// APIKeys maps owner id -> API key.
	APIKeys map[string]string `yaml:"apiKeys"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
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

// PostgresDSN builds the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}

// PhaseTimeout parses the configured analyzer deadline; 90s when unset.
func (c *Config) PhaseTimeout() time.Duration {
	if c.Analyzer.PhaseTimeout == "" {
		return 90 * time.Second
	}
	d, err := time.ParseDuration(c.Analyzer.PhaseTimeout)
	if err != nil || d <= 0 {
		return 90 * time.Second
	}
	return d
}
