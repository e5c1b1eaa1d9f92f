package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"position-sync-go/logs"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string        `yaml:"env"`
	Sync        SyncConfig    `yaml:"sync"`
	Gateway     GatewayConfig `yaml:"gateway"`
	Logger      logs.Config   `yaml:"logger"`
	MetricsAddr string        `yaml:"metricsAddr"`
}

// SyncConfig smart sync 参数。
type SyncConfig struct {
	ThresholdSeconds int `yaml:"thresholdSeconds"` // 0 关闭 smart sync
	DefaultTimeoutMs int `yaml:"defaultTimeoutMs"` // 权威查询默认超时
	Workers          int `yaml:"workers"`          // 后台对账池协程数
	QueueSize        int `yaml:"queueSize"`        // 对账任务队列容量
}

// Threshold 返回不稳定窗口时长。
func (c SyncConfig) Threshold() time.Duration {
	return time.Duration(c.ThresholdSeconds) * time.Second
}

// DefaultTimeout 返回权威查询默认超时。
func (c SyncConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMs) * time.Millisecond
}

// GatewayConfig 券商侧连接参数。
type GatewayConfig struct {
	BaseURL    string  `yaml:"baseURL"`
	WSEndpoint string  `yaml:"wsEndpoint"`
	APIKey     string  `yaml:"apiKey"`
	SecretKey  string  `yaml:"secretKey"`
	RestRate   float64 `yaml:"restRate"`  // REST 限流：每秒令牌数
	RestBurst  int     `yaml:"restBurst"` // REST 限流：最大突发令牌数
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("PS_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("PS_GATEWAY_SECRET_KEY"); v != "" {
		cfg.Gateway.SecretKey = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.BaseURL == "" {
		return errors.New("gateway.baseURL is required")
	}
	if cfg.Gateway.APIKey == "" || cfg.Gateway.SecretKey == "" {
		return errors.New("gateway.apiKey/secretKey is required (or env overrides)")
	}
	if cfg.Sync.ThresholdSeconds < 0 {
		return errors.New("sync.thresholdSeconds must be >= 0")
	}
	if cfg.Sync.DefaultTimeoutMs < 0 {
		return errors.New("sync.defaultTimeoutMs must be >= 0")
	}
	return nil
}
