package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		Provider string `yaml:"provider"` // openai | gemini
		Model    string `yaml:"model"`
		APIKey   string `yaml:"apiKey"`
		BaseURL  string `yaml:"baseURL"`
	} `yaml:"ai"`

	Reports struct {
		Dir string `yaml:"dir"`
	} `yaml:"reports"`

	Scan struct {
		Image       string `yaml:"image"`
		MinSeverity string `yaml:"minSeverity"`
		Code        struct {
			Folder string `yaml:"folder"`
		} `yaml:"code"`
		Container struct {
			ImagePath string `yaml:"imagePath"`
		} `yaml:"container"`
		Kubernetes struct {
			ConfigPath string `yaml:"configPath"`
		} `yaml:"kubernetes"`
		AWS struct {
			Region string `yaml:"region"`
		} `yaml:"aws"`
	} `yaml:"scan"`

	Conversation struct {
		IntentThreshold    *float64 `yaml:"intentThreshold"` // unset means 30
		DetailRowCap       int      `yaml:"detailRowCap"`
		ResourceNameBudget int      `yaml:"resourceNameBudget"`
		MaxPromptChars     int      `yaml:"maxPromptChars"`
		InsightRows        int      `yaml:"insightRows"`
		MaxHistory         int      `yaml:"maxHistory"`
	} `yaml:"conversation"`

	Auth struct {
		APIKeys map[string]string `yaml:"apiKeys"` // name -> key
	} `yaml:"auth"`

	RateLimit struct {
		Capacity        int `yaml:"capacity"`
		RefillPerSecond int `yaml:"refillPerSecond"`
	} `yaml:"rateLimit"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load baca file config.yaml, lalu isi default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Path returns CONFIG_PATH or config.yaml.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

// secrets can stay out of the file
func (c *Config) applyEnv() {
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Port == 0 {
		if c.Database.Driver == "postgres" {
			c.Database.Port = 5432
		} else {
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "scan-insight"
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
	}
	if c.Reports.Dir == "" {
		c.Reports.Dir = "/tmp/scan-insight/results"
	}
	if c.Scan.MinSeverity == "" {
		c.Scan.MinSeverity = "HIGH"
	}
	if c.Scan.AWS.Region == "" {
		c.Scan.AWS.Region = "us-east-1"
	}
	cv := &c.Conversation
	if cv.IntentThreshold == nil {
		def := 30.0
		cv.IntentThreshold = &def
	}
	if cv.DetailRowCap == 0 {
		cv.DetailRowCap = 30
	}
	if cv.ResourceNameBudget == 0 {
		cv.ResourceNameBudget = 200
	}
	if cv.MaxPromptChars == 0 {
		cv.MaxPromptChars = 80000
	}
	if cv.InsightRows == 0 {
		cv.InsightRows = 5
	}
	if cv.MaxHistory == 0 {
		cv.MaxHistory = 20
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 60
	}
	if c.RateLimit.RefillPerSecond == 0 {
		c.RateLimit.RefillPerSecond = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
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

// PostgresDSN builds a lib/pq URL DSN.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

// DSN for the configured driver.
func (c *Config) DSN() string {
	if c.Database.Driver == "postgres" {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}
