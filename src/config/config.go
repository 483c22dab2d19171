package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full gateway configuration, populated from the environment.
type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Feed      FeedConfig      `envPrefix:"FEED_"`
	Pipeline  PipelineConfig  `envPrefix:"PIPELINE_"`
	Execution ExecutionConfig `envPrefix:"EXECUTION_"`
	Kafka     KafkaConfig     `envPrefix:"KAFKA_"`
}

type AppConfig struct {
	Name      string `env:"NAME" envDefault:"market-gateway"`
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile   string `env:"LOG_FILE" envDefault:""`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

type FeedConfig struct {
	Symbol       string        `env:"SYMBOL" envDefault:"BTCUSDT"`
	BasePrice    float64       `env:"BASE_PRICE" envDefault:"67500"`
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"500us"`
}

type PipelineConfig struct {
	TickBuffer         int           `env:"TICK_BUFFER" envDefault:"100000"`
	FillBuffer         int           `env:"FILL_BUFFER" envDefault:"10000"`
	OrderBuffer        int           `env:"ORDER_BUFFER" envDefault:"1024"`
	LatencyBuffer      int           `env:"LATENCY_BUFFER" envDefault:"50000"`
	ReportInterval     time.Duration `env:"REPORT_INTERVAL" envDefault:"5s"`
	HeartbeatInterval  time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"5s"`
	StalenessThreshold time.Duration `env:"STALENESS_THRESHOLD" envDefault:"10s"`
	DrainTimeout       time.Duration `env:"DRAIN_TIMEOUT" envDefault:"5s"`
	BookDepth          int           `env:"BOOK_DEPTH" envDefault:"10"`
}

type ExecutionConfig struct {
	IdempotencyWindow int `env:"IDEMPOTENCY_WINDOW" envDefault:"100000"`
}

type KafkaConfig struct {
	Brokers    []string `env:"BROKERS" envSeparator:","`
	TickTopic  string   `env:"TICK_TOPIC" envDefault:"ticks"`
	FillTopic  string   `env:"FILL_TOPIC" envDefault:"fills"`
	BatchBytes int64    `env:"BATCH_BYTES" envDefault:"1048576"`
}

// Enabled reports whether a Kafka sink should be constructed at all.
// With no brokers configured the gateway falls back to the log sink.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
