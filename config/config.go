package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	LLM      LLMConfig      `mapstructure:"llm"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Render   RenderConfig   `mapstructure:"render"`
	Profile  ProfileConfig  `mapstructure:"profile"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, postgres
	DSN          string `mapstructure:"dsn"`    // 非空时忽略 host/port 等字段
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type StripeConfig struct {
	SecretKey          string       `mapstructure:"secret_key"`
	WebhookSecret      string       `mapstructure:"webhook_secret"`
	FrontendURL        string       `mapstructure:"frontend_url"`
	PaymentMethodTypes []string     `mapstructure:"payment_method_types"`
	Plans              []PlanConfig `mapstructure:"plans"`
}

// PlanConfig 价格 ID 到套餐的映射
type PlanConfig struct {
	PriceID string `mapstructure:"price_id"`
	Plan    string `mapstructure:"plan"` // single, recurring
	Credits int    `mapstructure:"credits"`
}

type LLMConfig struct {
	Provider       string  `mapstructure:"provider"`
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

type OSSConfig struct {
	Endpoint               string `mapstructure:"endpoint"`
	AccessKeyID            string `mapstructure:"access_key_id"`
	AccessKeySecret        string `mapstructure:"access_key_secret"`
	BucketName             string `mapstructure:"bucket_name"`
	CDNDomain              string `mapstructure:"cdn_domain"`
	Visibility             string `mapstructure:"visibility"` // public, private
	SignedURLExpireSeconds int64  `mapstructure:"signed_url_expire_seconds"`
	Prefix                 string `mapstructure:"prefix"`
	LocalDir               string `mapstructure:"local_dir"` // 未配置 OSS 时的本地目录
}

type RenderConfig struct {
	TempDir  string  `mapstructure:"temp_dir"`
	Title    string  `mapstructure:"title"`
	FontSize float64 `mapstructure:"font_size"`
}

type ProfileConfig struct {
	ReadyTimeoutMS int `mapstructure:"ready_timeout_ms"`
	PollIntervalMS int `mapstructure:"poll_interval_ms"`
	DefaultMeals   int `mapstructure:"default_meals"`
	ClaimStaleMins int `mapstructure:"claim_stale_minutes"`
}

type QueueConfig struct {
	DeadLetterQueue string `mapstructure:"dead_letter_queue"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// OSSEnabled 是否配置了对象存储
func (c OSSConfig) OSSEnabled() bool {
	return c.Endpoint != "" && c.AccessKeyID != "" && c.BucketName != ""
}

// Private 私有 bucket 返回签名链接
func (c OSSConfig) Private() bool {
	return !strings.EqualFold(c.Visibility, "public")
}

func (c ProfileConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutMS) * time.Millisecond
}

func (c ProfileConfig) PollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c ProfileConfig) ClaimStaleAfter() time.Duration {
	if c.ClaimStaleMins <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.ClaimStaleMins) * time.Minute
}

func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.expire_hours", 24*30)
	v.SetDefault("stripe.payment_method_types", []string{"card"})
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout_seconds", 90)
	v.SetDefault("oss.visibility", "private")
	v.SetDefault("oss.signed_url_expire_seconds", 24*3600)
	v.SetDefault("oss.prefix", "diet-plans")
	v.SetDefault("oss.local_dir", "data/artifacts")
	v.SetDefault("render.title", "Personalized Nutrition Plan")
	v.SetDefault("render.font_size", 11)
	v.SetDefault("profile.ready_timeout_ms", 3000)
	v.SetDefault("profile.poll_interval_ms", 250)
	v.SetDefault("profile.default_meals", 4)
	v.SetDefault("profile.claim_stale_minutes", 10)
	v.SetDefault("queue.dead_letter_queue", "fulfillment_dead_letter")
}

func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖，例如 STRIPE_WEBHOOK_SECRET
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MinJWTSecretLen 服务令牌密钥的最小长度
const MinJWTSecretLen = 32

// Validate 检查履约流程必需的配置
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWT.Secret) < MinJWTSecretLen {
		errs = append(errs, fmt.Errorf("jwt.secret must be at least %d characters", MinJWTSecretLen))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("stripe.webhook_secret is required"))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required"))
	}
	if len(c.Stripe.Plans) == 0 {
		errs = append(errs, errors.New("stripe.plans must map at least one price id"))
	}
	seen := make(map[string]bool, len(c.Stripe.Plans))
	for _, p := range c.Stripe.Plans {
		if p.PriceID == "" {
			errs = append(errs, errors.New("stripe.plans: empty price_id"))
			continue
		}
		if seen[p.PriceID] {
			errs = append(errs, fmt.Errorf("stripe.plans: duplicate price_id %s", p.PriceID))
		}
		seen[p.PriceID] = true
		if p.Plan != "single" && p.Plan != "recurring" {
			errs = append(errs, fmt.Errorf("stripe.plans: price_id %s has unknown plan %q", p.PriceID, p.Plan))
		}
	}
	return errors.Join(errs...)
}
