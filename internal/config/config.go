package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TXS"

// Config holds the configuration of every txservice command
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Ethereum EthereumConfig `mapstructure:"ethereum"`
	Tasks    TasksConfig    `mapstructure:"tasks"`
	Quote    QuoteConfig    `mapstructure:"quote"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig names the service and picks the log encoding
type AppConfig struct {
	Name     string `mapstructure:"name"`
	JSONLogs bool   `mapstructure:"json_logs"`
}

// DatabaseConfig points at the SQLite file holding tasks, runs and contract state
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// NATSConfig configures the connection to the JetStream server carrying task messages
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
}

// EthereumConfig selects the node used by the setup commands
type EthereumConfig struct {
	NodeURL string `mapstructure:"node_url"`
	// L2Network enables the L2 indexing tasks instead of the L1 ones
	L2Network bool `mapstructure:"l2_network"`
}

// TasksConfig holds the prefix shared by every managed task identifier
type TasksConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// QuoteConfig configures the price oracle endpoints
type QuoteConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	EWTURL  string        `mapstructure:"ewt_url"`
	XDCURL  string        `mapstructure:"xdc_url"`
}

// ProxyConfig configures the XDC JSON-RPC proxy
type ProxyConfig struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	TargetURL    string `mapstructure:"target_url"`
	Debug        bool   `mapstructure:"debug"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// MetricsConfig sets where the beat exposes /metrics
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "txservice")
	v.SetDefault("app.json_logs", false)

	v.SetDefault("database.path", "txservice.db")

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.connect_timeout", 10*time.Second)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.max_reconnects", 60)

	v.SetDefault("ethereum.node_url", "http://127.0.0.1:8545")
	v.SetDefault("ethereum.l2_network", false)

	v.SetDefault("tasks.namespace", "safe_transaction_service")

	v.SetDefault("quote.timeout", 10*time.Second)
	v.SetDefault("quote.ewt_url", "https://api.kucoin.com/api/v1/market/orderbook/level1?symbol=EWT-USDT")
	v.SetDefault("quote.xdc_url", "https://api.kucoin.com/api/v1/market/orderbook/level1?symbol=XDC-USDT")

	v.SetDefault("proxy.listen_addr", ":8083")
	v.SetDefault("proxy.target_url", "http://rpc.apothem.network")
	v.SetDefault("proxy.debug", false)
	v.SetDefault("proxy.max_body_bytes", 32<<20)

	v.SetDefault("metrics.listen_addr", ":9090")
}

// Load reads the configuration file at path, or config/config.yaml when path is empty.
// A missing default file is not an error. Environment variables prefixed with TXS_
// override file values, e.g. TXS_DATABASE_PATH; a .env file in the working
// directory is loaded first and never overrides variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values every command depends on
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Tasks.Namespace == "" {
		return errors.New("tasks.namespace is required")
	}
	if c.Quote.Timeout <= 0 {
		return fmt.Errorf("quote.timeout must be positive, got %s", c.Quote.Timeout)
	}
	if c.Proxy.MaxBodyBytes <= 0 {
		return fmt.Errorf("proxy.max_body_bytes must be positive, got %d", c.Proxy.MaxBodyBytes)
	}
	return nil
}
