package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr  string `yaml:"server_addr"`
	DatabaseURL string `yaml:"database_url"`

	KafkaBroker  string `yaml:"kafka_broker"`
	KafkaTopic   string `yaml:"kafka_topic"`
	KafkaGroupID string `yaml:"kafka_group_id"`

	StoragePath      string `yaml:"storage_path"`
	PublicBaseURL    string `yaml:"public_base_url"`
	SignedURLSecret  string `yaml:"signed_url_secret"`
	MaxSignedTTLSecs int    `yaml:"max_signed_ttl_seconds"`

	WatermarkLogoPath string `yaml:"watermark_logo_path"`
	WatermarkFontPath string `yaml:"watermark_font_path"`
	WatermarkText     string `yaml:"watermark_text"`

	TaggingURL       string  `yaml:"tagging_url"`
	TaggingThreshold float64 `yaml:"tagging_threshold"`

	Workers int `yaml:"workers"`
}

func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.TaggingThreshold <= 0 {
		cfg.TaggingThreshold = 0.3
	}
	if cfg.MaxSignedTTLSecs <= 0 {
		cfg.MaxSignedTTLSecs = 3600
	}
	return &cfg, nil
}
