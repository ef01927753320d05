// Package config 提供配置加载功能
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig SDK 客户端配置
type ClientConfig struct {
	App     AppConfig     `yaml:"app"`
	Gateway GatewayConfig `yaml:"gateway"`
	IM      IMConfig      `yaml:"im"`
	Login   LoginConfig   `yaml:"login"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AppConfig 小程序应用配置
type AppConfig struct {
	ID      string `yaml:"id"`      // 平台应用 id，随公共参数 app_id 下发
	Version string `yaml:"version"` // 客户端版本号，用于审核态判定
	Env     string `yaml:"env"`     // prod, test
}

// GatewayConfig 业务网关配置
type GatewayConfig struct {
	Host      string        `yaml:"host"`
	AppKey    string        `yaml:"app_key"`
	SecretKey string        `yaml:"secret_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// IMConfig 实时消息配置
type IMConfig struct {
	AppID       string        `yaml:"app_id"`
	Addr        string        `yaml:"addr"` // ws://host/ws
	AccountType int           `yaml:"account_type"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LoginConfig 登录配置
type LoginConfig struct {
	WaitTimeout time.Duration `yaml:"wait_timeout"` // 等待在途登录的上限
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoadClientConfig 加载客户端配置
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults 填充缺省值
func (c *ClientConfig) applyDefaults() {
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 15 * time.Second
	}
	if c.IM.Timeout <= 0 {
		c.IM.Timeout = 10 * time.Second
	}
	if c.IM.AccountType == 0 {
		c.IM.AccountType = 844
	}
	if c.Login.WaitTimeout <= 0 {
		c.Login.WaitTimeout = 10 * time.Second
	}
}
