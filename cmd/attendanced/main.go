package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/campus-attendance/internal/api"
	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/config"
	"github.com/Spok95/campus-attendance/internal/ctxutil"
	"github.com/Spok95/campus-attendance/internal/db"
	"github.com/Spok95/campus-attendance/internal/identity"
	"github.com/Spok95/campus-attendance/internal/jobs"
	"github.com/Spok95/campus-attendance/internal/logging"
	"github.com/Spok95/campus-attendance/internal/models"
	"github.com/Spok95/campus-attendance/internal/observability"
	"github.com/Spok95/campus-attendance/internal/storage/memory"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctxutil.DefaultDBTimeout = cfg.DBTimeout
	if !cfg.CampusSet {
		logger.Warn("CAMPUS_LAT/CAMPUS_LON not set, campus center is (0,0) and geolocation check-ins will be out of bounds")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	defer closeStore()

	jwt, err := identity.NewJWT(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Fatal("identity", zap.Error(err))
	}

	svc := attendance.NewService(store, attendance.Options{
		Logger:        logger.Named("attendance"),
		QRCodeTTL:     cfg.QRCodeTTL,
		NotifyOn:      cfg.NotifyOn,
		NotifyChannel: cfg.NotifyChannel,
		Location:      cfg.Location,
	})

	runner := jobs.New(ctx, logger.Named("jobs"))
	if cfg.NotifyInterval > 0 {
		runner.Every(cfg.NotifyInterval, "notifications", newDispatcher(cfg, svc, logger).Run)
	}

	srv := api.NewServer(api.Options{
		Service:             svc,
		Identity:            jwt,
		Campus:              cfg.Campus,
		RequireWithinBounds: cfg.GeoRequireWithinBounds,
		Logger:              logger.Named("http"),
	})
	if err := srv.Run(ctx, cfg.HTTPAddr); err != nil {
		observability.CaptureErr(err)
		logger.Error("http server", zap.Error(err))
	}
	stop()
	runner.Wait()
	logger.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (attendance.Store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), func() {}, nil
	}
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = database.Close() }
	if err := db.Migrate(ctx, database); err != nil {
		closeDB()
		return nil, nil, err
	}
	logger.Info("database ready", zap.Int("max_open", database.Stats().MaxOpenConnections))
	return db.New(database), closeDB, nil
}

func newDispatcher(cfg *config.Config, svc *attendance.Service, logger *zap.Logger) *jobs.Dispatcher {
	dlog := logger.Named("notify")
	senders := map[models.NotificationChannel]jobs.Sender{}
	if cfg.TelegramEnabled() {
		tg, err := jobs.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("telegram sender disabled", zap.Error(err))
		} else {
			senders[models.ChannelPush] = tg
		}
	}
	return jobs.NewDispatcher(svc, senders, jobs.LogSender{Log: dlog}, cfg.NotifyBatch, dlog)
}
