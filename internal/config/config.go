package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// InverterConfig 目标逆变器配置。
// source 取值 tcp/json/js/html；tcp 源必须配置 serialNumber，
// html 源必须配置 username/password。
type InverterConfig struct {
	Host         string        `mapstructure:"host"`
	Source       string        `mapstructure:"source"`
	SerialNumber uint32        `mapstructure:"serialNumber"`
	TCPPort      int           `mapstructure:"tcpPort"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	Timeout      time.Duration `mapstructure:"timeout"`
	// 对设备的取数限速：单台逆变器经不起并发轮询
	RateLimit float64 `mapstructure:"rateLimit"`
	RateBurst int     `mapstructure:"rateBurst"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// AuthConfig API 认证配置
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"apiKeys"`
}

// Config 顶层配置结构
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Inverter InverterConfig `mapstructure:"inverter"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空则回退到 configs/example.yaml；环境变量前缀 OMNIK_。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("OMNIK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 启动前的硬性检查，宁可拒绝启动也不带病运行
func (c *Config) Validate() error {
	switch c.Inverter.Source {
	case "tcp", "json", "js", "html":
	default:
		return fmt.Errorf("inverter.source must be one of tcp/json/js/html, got %q", c.Inverter.Source)
	}
	if c.Inverter.Host == "" {
		return errors.New("inverter.host is required")
	}
	if c.Inverter.Source == "tcp" && c.Inverter.SerialNumber == 0 {
		return errors.New("inverter.serialNumber is required for the tcp source")
	}
	if c.Inverter.Source == "html" && (c.Inverter.Username == "" || c.Inverter.Password == "") {
		return errors.New("inverter.username and inverter.password are required for the html source")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "omnik-bridge")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "10s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("inverter.source", "js")
	v.SetDefault("inverter.tcpPort", 8899)
	v.SetDefault("inverter.timeout", "10s")
	v.SetDefault("inverter.rateLimit", 1.0)
	v.SetDefault("inverter.rateBurst", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/omnik-bridge.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("auth.enabled", false)
}
