package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Feature FeatureConfig `mapstructure:"feature"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type IngestConfig struct {
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type KafkaConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Brokers        []string      `mapstructure:"brokers"`
	Topics         []string      `mapstructure:"topics"`
	GroupID        string        `mapstructure:"group_id"`
	ClientID       string        `mapstructure:"client_id"`
	WorkerCount    int           `mapstructure:"worker_count"`
	MaxPollRecords int           `mapstructure:"max_poll_records"`
	QueueCapacity  int           `mapstructure:"queue_capacity"`
	FetchMaxWait   time.Duration `mapstructure:"fetch_max_wait"`
}

type RabbitMQConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	URL           string   `mapstructure:"url"`
	Exchange      string   `mapstructure:"exchange"`
	Queue         string   `mapstructure:"queue"`
	RoutingKeys   []string `mapstructure:"routing_keys"`
	ConsumerTag   string   `mapstructure:"consumer_tag"`
	PrefetchCount int      `mapstructure:"prefetch_count"`
	Workers       int      `mapstructure:"workers"`
	DeliveryQueue int      `mapstructure:"delivery_queue"`
}

type FeatureConfig struct {
	AllowMultipleAdapters bool `mapstructure:"allow_multiple_adapters"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("logvault")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("storage.path", "data")
	v.SetDefault("feature.allow_multiple_adapters", true)
	v.SetDefault("ingest.rabbitmq.prefetch_count", 64)
	v.SetDefault("ingest.rabbitmq.workers", 4)
	v.SetDefault("ingest.rabbitmq.delivery_queue", 256)
}

func (c Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Ingest.Kafka.Enabled {
		if len(c.Ingest.Kafka.Brokers) == 0 {
			return fmt.Errorf("ingest.kafka.brokers is required")
		}
		if len(c.Ingest.Kafka.Topics) == 0 {
			return fmt.Errorf("ingest.kafka.topics is required")
		}
		if c.Ingest.Kafka.GroupID == "" {
			return fmt.Errorf("ingest.kafka.group_id is required")
		}
	}
	if c.Ingest.RabbitMQ.Enabled {
		if c.Ingest.RabbitMQ.URL == "" {
			return fmt.Errorf("ingest.rabbitmq.url is required")
		}
		if c.Ingest.RabbitMQ.Exchange == "" || c.Ingest.RabbitMQ.Queue == "" {
			return fmt.Errorf("ingest.rabbitmq.exchange and ingest.rabbitmq.queue are required")
		}
	}
	if !c.Feature.AllowMultipleAdapters && c.Ingest.Kafka.Enabled && c.Ingest.RabbitMQ.Enabled {
		return fmt.Errorf("multiple adapters enabled while feature.allow_multiple_adapters=false")
	}
	return nil
}
