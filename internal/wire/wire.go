//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/dariaos/ota-backend/internal/cache"
	"github.com/dariaos/ota-backend/internal/catalog"
	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/handler"
	"github.com/dariaos/ota-backend/internal/logstore"
	"github.com/dariaos/ota-backend/internal/provider"
	"github.com/dariaos/ota-backend/internal/tasks"
	"github.com/google/wire"
	"go.uber.org/zap"
)

type HandlerSet struct {
	UpdateHandler      *handler.UpdateHandler
	CatalogHandler     *handler.CatalogHandler
	UploadHandler      *handler.UploadHandler
	DownloadHandler    *handler.DownloadHandler
	ReportsHandler     *handler.ReportsHandler
	MetricsHandler     *handler.MetricsHandler
	HealthCheckHandler *handler.HealthCheckHandler
	Scheduler          *tasks.Scheduler
}

func NewHandlerSet(
	conf *config.Config,
	logger *zap.Logger,
	store *catalog.Store,
	cacheGroup *cache.BuildsCacheGroup,
	logs *logstore.Set,
) *HandlerSet {
	panic(wire.Build(
		provider.LogicSet,
		provider.AnalyticsSet,
		provider.HandlerSet,
		tasks.NewScheduler,
		wire.Struct(new(HandlerSet), "*"),
	))
}
