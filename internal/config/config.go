package config

import (
	"errors"
	"log"
	"strings"

	"github.com/spf13/viper"
)

var CFG *Config

func New() *Config {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType(DefaultConfigType)
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	v.SetEnvPrefix("OTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatalf("Failed to read config file, %v", err)
		}
	}

	var c = new(Config)
	if err := v.Unmarshal(c); err != nil {
		log.Fatalf("Failed to unmarshal config file, %v", err)
	}
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(ServerPortKey, DefaultPort)
	v.SetDefault("server.body_limit", DefaultBodyLimit)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("update.maximum_delta_distance", DefaultMaxDeltaDistance)
	v.SetDefault("reports.default_days", DefaultReportDays)
	v.SetDefault("reports.max_days", DefaultReportMaxDays)
	v.SetDefault("paths.data", DefaultDataDir)
	v.SetDefault("paths.logs", DefaultLogDir)
	v.SetDefault("paths.uploads", DefaultUploadDir)
	v.SetDefault("tasks.analytics_prewarm_cron", DefaultAnalyticsPrewarm)
}
