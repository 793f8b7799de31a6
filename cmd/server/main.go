package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/desk-booking/internal/booking"
	"github.com/iliyamo/desk-booking/internal/captcha"
	"github.com/iliyamo/desk-booking/internal/config"
	"github.com/iliyamo/desk-booking/internal/database"
	"github.com/iliyamo/desk-booking/internal/handler"
	"github.com/iliyamo/desk-booking/internal/logger"
	"github.com/iliyamo/desk-booking/internal/metrics"
	"github.com/iliyamo/desk-booking/internal/middleware"
	"github.com/iliyamo/desk-booking/internal/queue"
	"github.com/iliyamo/desk-booking/internal/repository"
	"github.com/iliyamo/desk-booking/internal/router"
	"github.com/iliyamo/desk-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	bcfg := config.LoadBookingConfig()
	acfg := config.LoadAMQPConfig()

	lg, err := logger.New(cfg.LogDir, "desk-booking")
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Close()
	lg.SetLevel(logger.ParseLevel(cfg.LogLevel))

	cutover, err := booking.ParseCutover(bcfg.Cutover)
	if err != nil {
		lg.Fatal("CONFIG", err.Error())
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatal("DATABASE", fmt.Sprintf("connect: %v", err))
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := migrate(cfg, lg); err != nil {
			lg.Fatal("DATABASE", fmt.Sprintf("migrate: %v", err))
		}
	}

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		lg.Warn("REDIS", fmt.Sprintf("running without redis: %v", err))
	} else {
		defer rdb.Close()
	}

	m := metrics.New()
	store := repository.NewReservationRepo(db)
	rebooker := booking.NewRebooker(store, cutover,
		booking.WithPageSize(bcfg.PageSize),
		booking.WithReleaseConcurrency(bcfg.ReleaseConcurrency),
	)
	verifier := captcha.New(bcfg.CaptchaBaseURL, bcfg.CaptchaConfigName, bcfg.CaptchaTimeout,
		captcha.WithLogger(lg),
		captcha.WithMetrics(m),
	)

	opts := []booking.DeskOption{
		booking.WithLogger(lg),
		booking.WithSubmitTimeout(bcfg.SubmitTimeout),
		booking.WithChallenge(booking.ChallengeHandle{
			SiteKey:           bcfg.CaptchaSiteKey,
			ConfigurationName: bcfg.CaptchaConfigName,
		}),
	}
	if rdb != nil {
		opts = append(opts, booking.WithLedger(repository.NewTokenLedger(rdb, "captcha", bcfg.TokenTTL)))
	}
	var publisher *service.Publisher
	if acfg.URL != "" {
		publisher = service.NewPublisher(acfg.URL, acfg.EventsQueue, acfg.ReleaseRetryQueue, lg)
		opts = append(opts, booking.WithNotifier(publisher))
	}
	desk := booking.NewDesk(store, rebooker, verifier, opts...)

	cache := middleware.NewLayoutCache(config.LoadCacheConfig(), rdb, lg)
	health := &handler.HealthHandler{
		Required: map[string]handler.Check{"mysql": db.PingContext},
		Optional: map[string]handler.Check{},
	}
	if rdb != nil {
		health.Optional["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Cfg:     cfg,
		Log:     lg,
		Metrics: m,
		Redis:   rdb,
		Health:  health,
		Auth:    handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), lg),
		Booking: handler.NewBookingHandler(desk, m),
		Admin:   handler.NewAdminHandler(desk, cache),
		Cache:   cache,
		Limit:   config.LoadRateLimitConfig(),
		Confirm: config.LoadConfirmRateLimitConfig(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if publisher != nil {
		audit := queue.NewAuditLog(acfg.AuditLogPath)
		retry := queue.NewReleaseRetry(rebooker, publisher, lg)
		g.Go(func() error { return queue.NewConsumer(acfg.URL, acfg.EventsQueue, audit.Handle, lg).Run(ctx) })
		g.Go(func() error { return queue.NewConsumer(acfg.URL, acfg.ReleaseRetryQueue, retry.Handle, lg).Run(ctx) })
	}

	addr := ":" + cfg.Port
	g.Go(func() error {
		lg.Info("SERVER", fmt.Sprintf("listening on %s (env=%s, cutover=%s UTC)", addr, cfg.Env, cutover))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		lg.Info("SERVER", "shutting down")
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("SERVER", err.Error())
	}
}

// migrate runs the embedded migrations on a dedicated connection; closing
// the migrator closes the connection it was given.
func migrate(cfg config.Config, lg *logger.Logger) error {
	conn, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	mg, err := database.NewMigrator(conn, lg)
	if err != nil {
		conn.Close()
		return err
	}
	defer mg.Close()
	return mg.Up()
}
