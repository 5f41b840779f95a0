package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/config"
	"github.com/nartankaplan/MDM-version3/internal/database"
	httpapi "github.com/nartankaplan/MDM-version3/internal/http"
	"github.com/nartankaplan/MDM-version3/internal/logger"
	"github.com/nartankaplan/MDM-version3/internal/mqtt"
	"github.com/nartankaplan/MDM-version3/internal/protocol"
	"github.com/nartankaplan/MDM-version3/internal/repository"
	"github.com/nartankaplan/MDM-version3/internal/service"
	"github.com/nartankaplan/MDM-version3/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "mdm-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Redis：主题缓存；未启用时用 NoopKV，所有读取 miss 直接走库
	var kv store.KV = store.NoopKV{}
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		kv = store.NewRedisKV(redisClient)
	}

	// 仓储层：DB 可用走 Postgres，否则回退内存实现（本地联调用）
	var (
		db           *sql.DB
		devicesRepo  repository.DevicesRepository
		appsRepo     repository.ApplicationsRepository
		commandsRepo repository.CommandsRepository
		eventsRepo   repository.EventsRepository
		settingsRepo repository.SettingsRepository
	)
	if cfg.DBEnabled {
		if d, dbErr := database.NewPostgresDB(&cfg.Database); dbErr == nil {
			db = d
			log.Info("DB enabled for mdm-data")
		} else {
			log.Warn("DB enabled but connection failed, falling back to in-memory repositories", zap.Error(dbErr))
		}
	}
	if db != nil {
		devicesRepo = repository.NewPostgresDevicesRepo(db)
		appsRepo = repository.NewPostgresApplicationsRepo(db)
		commandsRepo = repository.NewPostgresCommandsRepo(db)
		eventsRepo = repository.NewPostgresEventsRepo(db)
		settingsRepo = repository.NewPostgresSettingsRepo(db)
	} else {
		memDevices := repository.NewMemoryDevicesRepo()
		memApps := repository.NewMemoryApplicationsRepo()
		memCommands := repository.NewMemoryCommandsRepo()
		memEvents := repository.NewMemoryEventsRepo()
		memDevices.BindCascade(memCommands, memApps, memEvents)
		devicesRepo = memDevices
		appsRepo = memApps
		commandsRepo = memCommands
		eventsRepo = memEvents
		settingsRepo = repository.NewMemorySettingsRepo()
	}

	// 可选的 MQTT 即时推送通道
	var pusher service.Pusher
	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Enabled {
		if p, mqttErr := mqtt.NewPublisher(&cfg.MQTT, log); mqttErr == nil {
			mqttPub = p
			pusher = p
			log.Info("MQTT push channel enabled", zap.String("broker", cfg.MQTT.Broker))
		} else {
			log.Warn("MQTT enabled but connection failed, polling only", zap.Error(mqttErr))
		}
	}

	// 服务层
	settingsService := service.NewSettingsService(settingsRepo, kv, log)
	syncService := service.NewSyncService(devicesRepo, appsRepo, commandsRepo, eventsRepo,
		settingsService, cfg.MDM.KeepaliveTime, log)
	commandService := service.NewCommandService(devicesRepo, commandsRepo, eventsRepo, pusher, log)
	deviceService := service.NewDeviceService(devicesRepo, appsRepo, eventsRepo, log)
	appService := service.NewApplicationService(devicesRepo, appsRepo, commandsRepo, eventsRepo, pusher, log)

	// HTTP 层
	signer := protocol.NewSigner(cfg.MDM.SigningSecret)
	router := httpapi.NewRouter(log)
	router.RegisterSyncRoutes(httpapi.NewSyncHandler(syncService, signer, log))
	router.RegisterAdminRoutes(
		httpapi.NewDeviceHandler(deviceService, commandService, appService, log),
		httpapi.NewApplicationHandler(appService, log),
		httpapi.NewSettingsHandler(settingsService, log),
	)
	router.RegisterHealthRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttPub != nil {
		mqttPub.Disconnect()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
