package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	// 结算消息 topic 前缀，每个策略一个 topic：<prefix><strategy>
	PayoutTopicPrefix string `mapstructure:"payout_topic_prefix"`
}

// GatewayConfig 外部结算服务（区块链 worker）
type GatewayConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIToken       string `mapstructure:"api_token"`       // 出站调用凭证
	CallbackToken  string `mapstructure:"callback_token"`  // worker 回调鉴权凭证
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // 出站调用超时
}

type BusinessConfig struct {
	WalletExpiryHours int `mapstructure:"wallet_expiry_hours"` // 临时钱包充值有效期
	MaxRetryCount     int `mapstructure:"max_retry_count"`     // 发件箱消息最大重试次数
	WorkerID          int `mapstructure:"worker_id"`           // 雪花算法机器ID
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
