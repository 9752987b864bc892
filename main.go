package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dariaos/ota-backend/internal/cache"
	"github.com/dariaos/ota-backend/internal/catalog"
	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/handler"
	"github.com/dariaos/ota-backend/internal/logger"
	"github.com/dariaos/ota-backend/internal/logic"
	"github.com/dariaos/ota-backend/internal/logstore"
	"github.com/dariaos/ota-backend/internal/pkg/shutdown"
	"github.com/dariaos/ota-backend/internal/wire"
	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {

	setUpConfigAndLog()

	conf := config.CFG

	if err := bootstrapDirs(conf); err != nil {
		zap.L().Fatal("failed to provision data directories",
			zap.Error(err),
		)
	}

	store, err := catalog.NewStore(filepath.Join(conf.Paths.Data, "catalog.json"), zap.L())
	if err != nil {
		zap.L().Fatal("failed to open catalog",
			zap.Error(err),
		)
	}

	// deps
	var (
		logs  = logstore.NewSet(conf.Paths.Logs, zap.L())
		group = cache.NewBuildsCacheGroup()
		app   = fiber.New(fiber.Config{
			BodyLimit:    conf.Server.BodyLimit,
			ProxyHeader:  fiber.HeaderXForwardedFor,
			ErrorHandler: handler.Error,
		})
	)

	handlerSet := wire.NewHandlerSet(conf, zap.L(), store, group, logs)

	initRoute(app, handlerSet)

	if err := handlerSet.Scheduler.Start(); err != nil {
		zap.L().Fatal("failed to start scheduler",
			zap.Error(err),
		)
	}

	go func() {
		addr := fmt.Sprintf(":%d", conf.Server.Port)
		if err := app.Listen(addr); err != nil {
			zap.L().Fatal("failed to start server",
				zap.Error(err),
			)
		}
	}()

	shutdown.GracefulStop(func() {
		if err := app.Shutdown(); err != nil {
			zap.L().Error("failed to shut down server",
				zap.Error(err),
			)
		}
		handlerSet.Scheduler.Stop()
		logs.Close()
	})
}

func setUpConfigAndLog() {
	config.CFG = config.New()
	zap.ReplaceGlobals(logger.New(config.CFG))
}

func bootstrapDirs(conf *config.Config) error {
	dirs := []string{
		conf.Paths.Data,
		conf.Paths.Logs,
		logic.TempUploadDir(conf),
		logic.FullPackageDir(conf),
		logic.DeltaPackageDir(conf),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func initRoute(app *fiber.App, handlerSet *wire.HandlerSet) {
	app.Use(fiberzap.New(fiberzap.Config{
		Logger: zap.L(),
	}))

	r := app.Group("/")

	handlerSet.UpdateHandler.Register(r)

	handlerSet.DownloadHandler.Register(r)

	handlerSet.CatalogHandler.Register(r)

	handlerSet.UploadHandler.Register(r)

	handlerSet.ReportsHandler.Register(r)

	handlerSet.MetricsHandler.Register(r)

	handlerSet.HealthCheckHandler.Register(r)
}
