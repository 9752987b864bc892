package provider

import (
	"github.com/dariaos/ota-backend/internal/handler"

	"github.com/google/wire"
)

var HandlerSet = wire.NewSet(
	handler.NewUpdateHandler,
	handler.NewCatalogHandler,
	handler.NewUploadHandler,
	handler.NewDownloadHandler,
	handler.NewReportsHandler,
	handler.NewMetricsHandler,
	handler.NewHealthCheckHandler,
)
