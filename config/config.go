package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Host string
		Port int64
	}

	Redis struct {
		Host     string
		Port     string
		User     string
		Password string
		DB       int
	}

	Database struct {
		DSN string
	}

	BlockStorage struct {
		Host      string
		Region    string
		AccessKey string
		SecretKey string
		Bucket    string
	}

	Solana struct {
		Endpoint string
		Cluster  string
	}

	Payment struct {
		// fixed amount (SOL) and recipient for this deployment
		Amount              float64
		Recipient           string
		TTLMinutes          int
		PollIntervalSeconds int
		PollMaxAttempts     int
		SimilarityThreshold float64
	}

	Phantom struct {
		BaseURL      string
		AppURL       string
		RedirectBase string
	}

	Datadog struct {
		Host string
		Port string
	}
}

func ReadConfig(configName string) (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("solana.endpoint", "https://api.devnet.solana.com")
	viper.SetDefault("solana.cluster", "devnet")
	viper.SetDefault("payment.ttlminutes", 10)
	viper.SetDefault("payment.pollintervalseconds", 2)
	viper.SetDefault("payment.pollmaxattempts", 30)
	viper.SetDefault("payment.similaritythreshold", 0.6)
	viper.SetDefault("phantom.baseurl", "https://phantom.app/ul/v1")
	viper.SetDefault("phantom.redirectbase", "facepay://")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to read config file, err: %w", err)
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("fail to unmarshal config, err: %w", err)
	}
	return &cfg, nil
}

func (c *Config) PaymentTTL() time.Duration {
	return time.Duration(c.Payment.TTLMinutes) * time.Minute
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Payment.PollIntervalSeconds) * time.Second
}
