package provider

import (
	"github.com/dariaos/ota-backend/internal/analytics"

	"github.com/google/wire"
)

var AnalyticsSet = wire.NewSet(
	analytics.NewDownloadStats,
	analytics.NewAdoptionReport,
)
