package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type WorkerConfig struct {
	Env                string `yaml:"env" env-default:"prod"`
	ResourceAPIServer  string `yaml:"resource_api_server"`
	ResourceAPIVersion string `yaml:"resource_api_version"`
	ResourceAPIToken   string `yaml:"resource_api_token"`
	ResourceName       string `yaml:"resource_name" env-default:"tenders"`
	MetricsAddr        string `yaml:"metrics_addr" env-default:":9102"`

	AuctionDB       `yaml:"auction_db"`
	Redis           `yaml:"redis"`
	KafkaService    `yaml:"kafka-service"`
	DocumentService `yaml:"document_service"`
	LogConfig       `yaml:"log_config"`
	Timing          `yaml:"timing"`
}

type AuctionDB struct {
	Dsn string `yaml:"dsn"`
}

type Redis struct {
	Addr     string `yaml:"addr" env-default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// MappingPrefix namespaces the anonymized bidder mapping keys.
	MappingPrefix string `yaml:"mapping_prefix" env-default:"auction_mapping"`
}

type KafkaService struct {
	Host  string `yaml:"host"`
	Port  string `yaml:"port"`
	Topic string `yaml:"topic" env-default:"auction-journal"`
}

type DocumentService struct {
	WithDocumentService bool   `yaml:"with_document_service"`
	URL                 string `yaml:"url"`
	Endpoint            string `yaml:"endpoint"`
	AccessKey           string `yaml:"access_key"`
	SecretKey           string `yaml:"secret_key"`
	Bucket              string `yaml:"bucket" env-default:"auctions"`
	UseSSL              bool   `yaml:"use_ssl"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env-default:"info"`
	LogFormat string `yaml:"log_format" env-default:"json"`
}

type Timing struct {
	Rounds         int           `yaml:"rounds" env-default:"3"`
	FirstPause     time.Duration `yaml:"first_pause" env-default:"5m"`
	Pause          time.Duration `yaml:"pause" env-default:"2m"`
	BidsWindow     time.Duration `yaml:"bids_window" env-default:"2m"`
	MisfireGrace   time.Duration `yaml:"misfire_grace" env-default:"100s"`
	PublishRetries int           `yaml:"publish_retries" env-default:"10"`
}

// MustLoad reads the worker config from the given path, falling back to the
// AUCTION_WORKER_CONFIG env variable when path is empty.
func MustLoad(path string) *WorkerConfig {
	if path == "" {
		path = os.Getenv("AUCTION_WORKER_CONFIG")
	}
	if path == "" {
		log.Fatalf("auction worker config path was not provided\n")
	}

	if _, err := os.Stat(path); err != nil {
		log.Fatalf("failed to find config file: %v\n", err)
	}

	var cfg WorkerConfig
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	return &cfg
}
