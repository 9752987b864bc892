package config

type (
	Config struct {
		Server  ServerConfig  `mapstructure:"server"`
		Log     LogConfig     `mapstructure:"log"`
		Update  UpdateConfig  `mapstructure:"update"`
		Reports ReportsConfig `mapstructure:"reports"`
		Paths   PathsConfig   `mapstructure:"paths"`
		Extra   ExtraConfig   `mapstructure:"extra"`
		Tasks   TasksConfig   `mapstructure:"tasks"`
	}

	ServerConfig struct {
		Port      int `mapstructure:"port"`
		BodyLimit int `mapstructure:"body_limit"`
	}

	LogConfig struct {
		Level      string `mapstructure:"level"`
		MaxSize    int    `mapstructure:"max_size"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAge     int    `mapstructure:"max_age"`
		Compress   bool   `mapstructure:"compress"`
	}

	UpdateConfig struct {
		MaximumDeltaDistance int `mapstructure:"maximum_delta_distance"`
	}

	ReportsConfig struct {
		DefaultDays int `mapstructure:"default_days"`
		MaxDays     int `mapstructure:"max_days"`
	}

	PathsConfig struct {
		Data    string `mapstructure:"data"`
		Logs    string `mapstructure:"logs"`
		Uploads string `mapstructure:"uploads"`
	}

	ExtraConfig struct {
		BaseURL string `mapstructure:"base_url"`
	}

	TasksConfig struct {
		AnalyticsPrewarmCron string `mapstructure:"analytics_prewarm_cron"`
	}
)
