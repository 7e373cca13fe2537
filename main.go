// main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plantify/config"
	"plantify/controllers"
	"plantify/logger"
	"plantify/media"
	"plantify/middleware"
	"plantify/mlrelay"
	"plantify/notify"
	"plantify/routes"
	"plantify/services"
	"plantify/store"
	"plantify/utils"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog := logger.NewForEnvironment(cfg.App.Env, cfg.Log.Level)
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	client, err := utils.ConnectDB(ctx, cfg.Mongo.URL, cfg.Mongo.Timeout)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			zlog.Warn("mongo disconnect failed", zap.Error(err))
		}
	}()
	zlog.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	db := store.New(client.Database(cfg.Mongo.Database), cfg.Mongo.Timeout)
	if err := db.EnsureIndexes(ctx); err != nil {
		return err
	}

	blacklist, closeBlacklist, err := newBlacklist(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer closeBlacklist()

	uploader, err := newUploader(ctx, cfg, zlog)
	if err != nil {
		return err
	}

	relay := notify.NewRelay(newSender(cfg, zlog), zlog,
		notify.WithCountryCode(cfg.Notify.CountryCode),
		notify.WithWorkers(cfg.Notify.Workers),
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithTimeout(cfg.Notify.Timeout),
	)
	defer relay.Close()

	emailService := utils.NewEmailService(utils.NewMailer(cfg.Email, zlog))
	tokens := utils.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiration)
	validate := utils.NewValidator()

	orderService := services.NewOrderService(db.Products, db.Orders, db.Users, relay,
		services.WithReceipts(emailService),
		services.WithLogger(zlog),
	)

	// Initialize controllers
	ctrls := routes.Controllers{
		User: controllers.NewUserController(db.Users, tokens, blacklist, emailService, uploader, validate, controllers.UserSettings{
			CookieSecure:   cfg.Cookie.Secure,
			ResetTokenTTL:  cfg.Email.ResetTokenTTL,
			TempDir:        cfg.App.TempDir,
			ExposeResetURL: !cfg.IsProduction(),
		}),
		Product: controllers.NewProductController(db.Products, db.Users, uploader, validate, cfg.App.TempDir),
		Cart:    controllers.NewCartController(db.Carts, db.Products),
		Order:   controllers.NewOrderController(orderService),
		ML: controllers.NewMLController(
			mlrelay.NewClient(cfg.ML.PredictURL, cfg.ML.Timeout, mlrelay.WithLogger(zlog)),
			cfg.App.TempDir,
		),
	}
	auth := middleware.NewAuthenticator(tokens, blacklist, db.Users)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           routes.NewRouter(ctrls, auth, zlog, cfg.CORS.FrontendOrigin),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server is running", zap.String("port", cfg.App.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newBlacklist(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (utils.TokenBlacklist, func(), error) {
	if cfg.Redis.Addr == "" {
		zlog.Warn("REDIS_ADDR not set; token revocation is kept in memory")
		return utils.NewMemoryBlacklist(), func() {}, nil
	}
	bl, err := utils.NewRedisBlacklist(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return bl, func() { _ = bl.Close() }, nil
}

func newUploader(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (media.Uploader, error) {
	if cfg.Storage.Bucket == "" {
		zlog.Warn("S3_BUCKET not set; images are not persisted")
		return media.NewStubUploader(zlog), nil
	}
	u, err := media.NewS3Uploader(cfg.Storage, media.WithLogger(zlog))
	if err != nil {
		return nil, err
	}
	if err := u.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

func newSender(cfg *config.Config, zlog *zap.Logger) notify.Sender {
	if cfg.Twilio.AccountSID == "" {
		zlog.Warn("TWILIO_SID not set; WhatsApp messages are only logged")
		return notify.NewLogSender(zlog)
	}
	s, err := notify.NewWhatsAppSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.WhatsAppNumber)
	if err != nil {
		zlog.Error("twilio sender unavailable; falling back to log sender", zap.Error(err))
		return notify.NewLogSender(zlog)
	}
	return s
}
