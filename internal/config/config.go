package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	AI       AIConfig       `mapstructure:"ai"`
	EmailAI  EmailAIConfig  `mapstructure:"email_ai"`
	Gates    GatesConfig    `mapstructure:"gates"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置（功能开关缓存使用单节点模式）
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"` // 是否启用 Redis 缓存层
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AIConfig AI 模型提供商配置
type AIConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	OrgID      string `mapstructure:"org_id"`
	Model      string `mapstructure:"model"` // 默认模型标识
	MaxRetries int    `mapstructure:"max_retries"`
	Timeout    int    `mapstructure:"timeout"` // 秒
}

// EmailAIConfig 邮件内容生成管线配置
type EmailAIConfig struct {
	// 各能力可单独覆盖模型标识，为空时使用 ai.openai.model
	SubjectModel     string `mapstructure:"subject_model"`
	BodyModel        string `mapstructure:"body_model"`
	TemplateModel    string `mapstructure:"template_model"`
	PersonalizeModel string `mapstructure:"personalize_model"`

	MaxSubjectLength int     `mapstructure:"max_subject_length"` // 主题最大长度（字符）
	MaxBodyLength    int     `mapstructure:"max_body_length"`    // 正文最大长度（字符）
	MaxRetries       int     `mapstructure:"max_retries"`        // 默认重试次数
	BackoffBaseMs    int     `mapstructure:"backoff_base_ms"`    // 退避基础延迟（毫秒）
	SafetyThreshold  float64 `mapstructure:"safety_threshold"`   // 安全评分阈值
}

// GatesConfig 功能开关配置
type GatesConfig struct {
	CacheTTL int `mapstructure:"cache_ttl"` // 开关缓存有效期（秒）
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_EMAIL_AI_MAX_RETRIES

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件缺失时允许仅使用默认值 + 环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// setDefaults 设置默认值，保证无配置文件时所有配置项可用
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 120)

	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.max_retries", 3)
	v.SetDefault("ai.openai.timeout", 60)

	v.SetDefault("email_ai.max_subject_length", 78)
	v.SetDefault("email_ai.max_body_length", 5000)
	v.SetDefault("email_ai.max_retries", 3)
	v.SetDefault("email_ai.backoff_base_ms", 1000)
	v.SetDefault("email_ai.safety_threshold", 0.8)

	v.SetDefault("gates.cache_ttl", 60)
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// ModelFor 返回指定能力的模型标识，未覆盖时回落到默认模型
func (c *Config) ModelFor(capability string) string {
	var override string
	switch capability {
	case "subject":
		override = c.EmailAI.SubjectModel
	case "body":
		override = c.EmailAI.BodyModel
	case "template":
		override = c.EmailAI.TemplateModel
	case "personalize":
		override = c.EmailAI.PersonalizeModel
	}
	if override != "" {
		return override
	}
	return c.AI.OpenAI.Model
}
