package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load builds the effective configuration: environment-driven defaults,
// optionally overridden by a YAML config file and LOGSIEVE_* variables.
func Load(file string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LOGSIEVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("nats.url", cfg.NATS.URL)
	v.SetDefault("nats.name", cfg.NATS.Name)
	v.SetDefault("nats.maxreconnects", cfg.NATS.MaxReconnects)
	v.SetDefault("nats.reconnectwait", cfg.NATS.ReconnectWait)
	v.SetDefault("nats.connectiontimeout", cfg.NATS.ConnectionTimeout)
	v.SetDefault("nats.logssubject", cfg.NATS.LogsSubject)
	v.SetDefault("nats.anomaliessubject", cfg.NATS.AnomaliesSubject)
	v.SetDefault("nats.trainsubject", cfg.NATS.TrainSubject)

	v.SetDefault("elastic.endpoint", cfg.Elastic.Endpoint)
	v.SetDefault("elastic.username", cfg.Elastic.Username)
	v.SetDefault("elastic.password", cfg.Elastic.Password)
	v.SetDefault("elastic.index", cfg.Elastic.Index)
	v.SetDefault("elastic.maxretries", cfg.Elastic.MaxRetries)
	v.SetDefault("elastic.requesttimeout", cfg.Elastic.RequestTimeout)
	v.SetDefault("elastic.skiptlsverify", cfg.Elastic.SkipTLSVerify)

	v.SetDefault("scoring.failkeywords", cfg.Scoring.FailKeywords)

	v.SetDefault("controller.sampleperiod", cfg.Controller.SamplePeriod)
	v.SetDefault("controller.windowsize", cfg.Controller.WindowSize)
	v.SetDefault("controller.model", cfg.Controller.Model)

	v.SetDefault("queues.logqueuesize", cfg.Queues.LogQueueSize)
	v.SetDefault("queues.updatequeuesize", cfg.Queues.UpdateQueueSize)

	v.SetDefault("metricsaddr", cfg.MetricsAddr)
	v.SetDefault("loglevel", cfg.LogLevel)
}
