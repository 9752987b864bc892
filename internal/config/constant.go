package config

const (
	DefaultConfigName = "config"
	DefaultConfigType = "yaml"

	DefaultPort             = 8080
	DefaultBodyLimit        = 1000 * 1024 * 1024
	DefaultMaxDeltaDistance = 4
	DefaultReportDays       = 7
	DefaultReportMaxDays    = 30
	DefaultDataDir          = "data"
	DefaultLogDir           = "logs"
	DefaultUploadDir        = "uploads"
	DefaultAnalyticsPrewarm = "0 * * * *"

	ServerPortKey = "server.port"
)
