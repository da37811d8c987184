package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"dev" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		// Aggregated error logs are shipped to this Kafka topic when set.
		CollectTopic string `yaml:"collect_topic"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Providers struct {
		FMP       Provider `yaml:"fmp"`
		CoinGecko Provider `yaml:"coingecko"`
		Moralis   Provider `yaml:"moralis"`
		Finnhub   struct {
			Enabled        bool          `yaml:"enabled"`
			APIKey         string        `yaml:"api_key"`
			WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
			Symbols        []string      `yaml:"symbols"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
		} `yaml:"finnhub"`
	} `yaml:"providers"`

	Search struct {
		QuoteTimeout      time.Duration `yaml:"quote_timeout" default:"1500ms"`
		PairTimeout       time.Duration `yaml:"pair_timeout" default:"1500ms"`
		NameTimeout       time.Duration `yaml:"name_timeout" default:"2s"`
		OnChainTimeout    time.Duration `yaml:"onchain_timeout" default:"2s"`
		ContractTimeout   time.Duration `yaml:"contract_timeout" default:"1s"`
		MaxParallel       int           `yaml:"max_parallel" default:"16" validate:"gte=1"`
		FastPathThreshold float64       `yaml:"fast_path_threshold" default:"0.9" validate:"gte=0,lte=1"`
		FuzzyThreshold    float64       `yaml:"fuzzy_threshold" default:"0.9" validate:"gte=0,lte=1"`
		MaxResults        int           `yaml:"max_results" default:"10" validate:"gte=1"`
		HighConfidence    float64       `yaml:"high_confidence" default:"0.8" validate:"gte=0,lte=1"`
		SourcePriority    []string      `yaml:"source_priority" default:"[\"onchain\",\"token_metadata\",\"contract\",\"quote\",\"token_list\",\"cache\"]"`

		// ChainTimeouts overrides ContractTimeout per chain, e.g. solana: 1500ms.
		ChainTimeouts map[string]time.Duration `yaml:"chain_timeouts"`
	} `yaml:"search"`

	Enrichment struct {
		TopK            int           `yaml:"top_k" default:"5" validate:"gte=0"`
		Concurrency     int           `yaml:"concurrency" default:"3" validate:"gte=1"`
		BatchTimeout    time.Duration `yaml:"batch_timeout" default:"15s"`
		MinConfidence   float64       `yaml:"min_confidence" default:"0.8"`
		ConfidenceBump  float64       `yaml:"confidence_bump" default:"0.2"`
		ConfidenceCap   float64       `yaml:"confidence_cap" default:"0.95"`
		QuoteTimeout    time.Duration `yaml:"quote_timeout" default:"3s"`
		MetadataTimeout time.Duration `yaml:"metadata_timeout" default:"4s"`
		OnChainTimeout  time.Duration `yaml:"onchain_timeout" default:"5s"`
		CacheTimeout    time.Duration `yaml:"cache_timeout" default:"1s"`
	} `yaml:"enrichment"`

	Breaker struct {
		FailureThreshold int           `yaml:"failure_threshold" default:"5" validate:"gte=1"`
		Cooldown         time.Duration `yaml:"cooldown" default:"300s"`
	} `yaml:"breaker"`

	KnownAssets struct {
		Capacity int           `yaml:"capacity" default:"200" validate:"gte=1"`
		TTL      time.Duration `yaml:"ttl" default:"6h"`
	} `yaml:"known_assets"`

	TokenList struct {
		Enabled bool          `yaml:"enabled" default:"true"`
		Size    int           `yaml:"size" default:"250" validate:"gte=1,lte=250"`
		TTL     time.Duration `yaml:"ttl" default:"12h"`
	} `yaml:"token_list"`

	Disambiguation struct {
		Scorer          string        `yaml:"scorer" default:"rule" validate:"oneof=rule llm http"`
		Timeout         time.Duration `yaml:"timeout" default:"5s"`
		AutoSelectScore float64       `yaml:"auto_select_score" default:"0.8"`
		AutoSelectLead  float64       `yaml:"auto_select_lead" default:"0.2"`
		MaxScored       int           `yaml:"max_scored" default:"10" validate:"gte=1"`
		MaxOptions      int           `yaml:"max_options" default:"5" validate:"gte=1"`
		LLM             struct {
			APIKey  string `yaml:"api_key"`
			Model   string `yaml:"model" default:"gpt-4o-mini"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"llm"`
		// ServiceURL is the external relevance service used by the http scorer.
		ServiceURL string `yaml:"service_url"`
	} `yaml:"disambiguation"`

	Cache struct {
		Backend       string `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		MemoryMaxSize int    `yaml:"memory_max_size" default:"5000"`
		Redis         struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"finresolve"`
		} `yaml:"redis"`
		TTL struct {
			Search    time.Duration `yaml:"search" default:"5m"`
			Metadata  time.Duration `yaml:"metadata" default:"5m"`
			Price     time.Duration `yaml:"price" default:"2m"`
			TopTokens time.Duration `yaml:"top_tokens" default:"12h"`
		} `yaml:"ttl"`
	} `yaml:"cache"`

	Events struct {
		Backend    string `yaml:"backend" default:"none" validate:"oneof=none kafka clickhouse"`
		BufferSize int    `yaml:"buffer_size" default:"1000" validate:"gte=1"`
		MaxRPS     int    `yaml:"max_rps" default:"50"`
	} `yaml:"events"`

	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"asset-resolutions"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finresolve"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

// Provider holds connection settings for one REST market-data provider.
type Provider struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout" default:"10s"`
	RatePerSec float64       `yaml:"rate_per_sec" default:"5"`
	Burst      int           `yaml:"burst" default:"5"`
}

// envOverrides lists the variables that win over the YAML file.
type envOverrides struct {
	FMPAPIKey       string   `envconfig:"FMP_API_KEY"`
	CoinGeckoAPIKey string   `envconfig:"COINGECKO_API_KEY"`
	MoralisAPIKey   string   `envconfig:"MORALIS_API_KEY"`
	FinnhubAPIKey   string   `envconfig:"FINNHUB_API_KEY"`
	OpenAIAPIKey    string   `envconfig:"OPENAI_API_KEY"`
	LogLevel        string   `envconfig:"LOG_LEVEL"`
	EventsBackend   string   `envconfig:"EVENTS_BACKEND"`
	CacheBackend    string   `envconfig:"CACHE_BACKEND"`
	KafkaBrokers    []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic      string   `envconfig:"KAFKA_TOPIC"`
	RedisHost       string   `envconfig:"REDIS_HOST"`
	ClickHouseHost  string   `envconfig:"CLICKHOUSE_HOST"`
	Port            int      `envconfig:"PORT"`
}

var validate = validator.New()

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	applyProviderURLs(&c)
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyProviderURLs(c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file is tolerated so the service can run from env alone.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		c = Default()
	} else if err != nil {
		return nil, err
	}

	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overlays environment variables onto c.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}

	setStr(&c.Providers.FMP.APIKey, env.FMPAPIKey)
	setStr(&c.Providers.CoinGecko.APIKey, env.CoinGeckoAPIKey)
	setStr(&c.Providers.Moralis.APIKey, env.MoralisAPIKey)
	setStr(&c.Providers.Finnhub.APIKey, env.FinnhubAPIKey)
	setStr(&c.Disambiguation.LLM.APIKey, env.OpenAIAPIKey)
	setStr(&c.Log.Level, env.LogLevel)
	setStr(&c.Events.Backend, env.EventsBackend)
	setStr(&c.Cache.Backend, env.CacheBackend)
	setStr(&c.Kafka.Topic, env.KafkaTopic)
	setStr(&c.Cache.Redis.Host, env.RedisHost)
	setStr(&c.ClickHouse.Host, env.ClickHouseHost)
	if len(env.KafkaBrokers) > 0 {
		c.Kafka.Brokers = env.KafkaBrokers
	}
	if env.Port > 0 {
		c.Server.Port = env.Port
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Events.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when events.backend is kafka")
	}
	if c.Providers.Finnhub.Enabled && c.Providers.Finnhub.APIKey == "" {
		return fmt.Errorf("providers.finnhub.api_key required when finnhub is enabled")
	}
	if c.Disambiguation.Scorer == "llm" && c.Disambiguation.LLM.APIKey == "" {
		return fmt.Errorf("disambiguation.llm.api_key required for the llm scorer")
	}
	if c.Disambiguation.Scorer == "http" && c.Disambiguation.ServiceURL == "" {
		return fmt.Errorf("disambiguation.service_url required for the http scorer")
	}
	return nil
}

func applyProviderURLs(c *Config) {
	if c.Providers.FMP.BaseURL == "" {
		c.Providers.FMP.BaseURL = "https://financialmodelingprep.com"
	}
	if c.Providers.CoinGecko.BaseURL == "" {
		c.Providers.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.Providers.Moralis.BaseURL == "" {
		c.Providers.Moralis.BaseURL = "https://deep-index.moralis.io/api/v2.2"
	}
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
