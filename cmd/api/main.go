package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ottsonly-backend/internal/config"
	"ottsonly-backend/internal/handlers"
	"ottsonly-backend/internal/ledger"
	"ottsonly-backend/internal/middleware"
	"ottsonly-backend/internal/notify"
	"ottsonly-backend/internal/orders"
	"ottsonly-backend/internal/payment"
	"ottsonly-backend/internal/referral"
	"ottsonly-backend/internal/routes"
	"ottsonly-backend/internal/stock"
	"ottsonly-backend/internal/store"
	"ottsonly-backend/internal/store/memstore"
	"ottsonly-backend/internal/subscriptions"
	"ottsonly-backend/pkg/graceful"
	"ottsonly-backend/pkg/logger"
	"ottsonly-backend/pkg/money"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// backend is everything the services need from storage. Both the gorm
// store and the in-memory store satisfy it.
type backend interface {
	handlers.UserStore
	handlers.ProductStore
	handlers.Pinger
	ledger.Store
	stock.Store
	orders.Store
	subscriptions.Store
	payment.Store
	referral.Store
}

func main() {
	// 1. Config & logging
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.Configure(cfg.App.Env, cfg.App.LogLevel)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	graceful.SetupGracefulShutdown(cancel)

	// 2. Storage
	st, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	defer closeStore()

	// 3. Notifications
	sink, closeSink := notificationSink(ctx, cfg)
	defer closeSink()
	dispatcher := notify.NewDispatcher(sink, 512)
	go dispatcher.Run(ctx)

	// 4. Services
	led := ledger.NewService(st)
	stk := stock.NewService(st)
	subs := subscriptions.NewService(st)
	refs := referral.NewService(st, led, dispatcher, referral.Config{
		CommissionRate: cfg.Referral.CommissionRate,
		MinWithdrawal:  cfg.Referral.MinWithdrawal,
	})
	if cfg.Referral.AdminCreditPaysCommission {
		led.OnAdminCredit(func(ctx context.Context, userID string, amount money.Amount, txnID string) {
			if _, _, err := refs.CreditCommission(ctx, userID, amount, txnID); err != nil {
				logger.WithField("user_id", userID).WithError(err).Error("commission on admin credit failed")
			}
		})
	}
	pay := payment.NewService(st, led, refs, gateway(cfg), dispatcher, payment.Config{
		KeyID:             cfg.Payment.KeyID,
		KeySecret:         cfg.Payment.KeySecret,
		ProcessingTimeout: cfg.Payment.ProcessingTimeout,
	})
	go payment.NewReclaimer(pay, cfg.Payment.ReclaimInterval).Run(ctx)

	h := handlers.New(handlers.Deps{
		Users:         st,
		Products:      st,
		Health:        st,
		Ledger:        led,
		Stock:         stk,
		Orders:        orders.NewService(st, stk, led, subs, dispatcher),
		Subscriptions: subs,
		Payments:      pay,
		Referrals:     refs,
		JWTSecret:     cfg.JWT.Secret,
		JWTTTL:        cfg.JWT.TTL,
	})

	// 5. Router
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	go limiter.Cleanup(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, limiter)

	// 6. Serve until a signal arrives
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("%s listening on :%s (%s)", cfg.App.Name, cfg.App.Port, cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	select {
	case <-dispatcher.Done():
	case <-shutdownCtx.Done():
		logger.Warn("notification flush timed out")
	}
	logger.Info("server stopped")
}

func openStore(cfg *config.Config) (backend, func(), error) {
	if cfg.DB.Driver == "memory" {
		logger.Warn("using in-memory storage, data is lost on restart")
		return memstore.New(), func() {}, nil
	}
	db, err := config.ConnectDB(cfg.DB, cfg.IsProduction())
	if err != nil {
		return nil, nil, err
	}
	if err := config.Migrate(db); err != nil {
		config.CloseDB(db)
		return nil, nil, err
	}
	return store.New(db), func() { config.CloseDB(db) }, nil
}

// notificationSink publishes to a Redis stream when Redis is configured and
// starts the consumer that forwards entries to FCM. Without Redis events are
// only logged.
func notificationSink(ctx context.Context, cfg *config.Config) (notify.Sink, func()) {
	if cfg.Redis.Addr == "" {
		return notify.LogSink{}, func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closeRedis := func() {
		if err := rdb.Close(); err != nil {
			logger.WithError(err).Warn("close redis")
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).Warn("redis unreachable, notifications will be logged only")
		closeRedis()
		return notify.LogSink{}, func() {}
	}

	var deliverer notify.Deliverer = notify.LogDeliverer{}
	if cfg.Notify.FCMCredentials != "" {
		client, err := notify.NewFCMClient(ctx, cfg.Notify.FCMCredentials)
		if err != nil {
			logger.WithError(err).Warn("fcm disabled")
		} else {
			deliverer = notify.NewFCMDeliverer(client, cfg.Notify.FCMTopic)
		}
	}
	consumer := notify.NewStreamConsumer(rdb, deliverer, notify.ConsumerOptions{
		Stream:  cfg.Notify.Stream,
		Group:   cfg.Notify.Group,
		MinIdle: time.Minute,
	})
	go consumer.Run(ctx)

	logger.Infof("notifications go to redis stream %s", cfg.Notify.Stream)
	return notify.NewRedisStreamSink(rdb, cfg.Notify.Stream), closeRedis
}

func gateway(cfg *config.Config) payment.Gateway {
	if cfg.Payment.Gateway == "midtrans" {
		return payment.NewMidtransGateway(cfg.Payment.MidtransServerKey, cfg.Payment.MidtransProduction)
	}
	logger.Warn("using sandbox payment gateway")
	return payment.SandboxGateway{}
}
