package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/lms/api"
	"github.com/irsalhamdi/lms/api/background"
	"github.com/irsalhamdi/lms/config"
	"github.com/irsalhamdi/lms/core/checkout"
	"github.com/irsalhamdi/lms/database"
	"github.com/irsalhamdi/lms/idempotency"
	"github.com/irsalhamdi/lms/metrics"
	"github.com/irsalhamdi/lms/notify"
	"github.com/irsalhamdi/lms/payment"
	"github.com/irsalhamdi/lms/rate"
	"github.com/joho/godotenv"
	"github.com/plutov/paypal/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	const prefix = "LMS"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Session.Lifetime

	bg := background.New(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	var keys idempotency.Store = idempotency.NewMemory(cfg.Checkout.IdempotencyTTL)
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		keys = idempotency.NewRedis(rdb, prefix, cfg.Checkout.IdempotencyTTL)
		logger.Infof("idempotency keys stored in redis at %s", cfg.Redis.Address)
	}

	var sender notify.Sender = notify.NewLog(logger)
	if brokers := notify.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		k := notify.NewKafka(brokers, cfg.Kafka.ReceiptTopic)
		defer k.Close()

		sender = k
		logger.Infof("publishing receipts to kafka topic %s", cfg.Kafka.ReceiptTopic)
	}

	gateways, err := buildGateways(cfg)
	if err != nil {
		return err
	}

	store := checkout.NewStore(db)
	ck := checkout.New(checkout.Config{
		Catalog:   store,
		Ownership: store,
		Promos:    store,
		Ledger:    store,
		Records:   store,
		Cart:      store,
		Notifier:  notify.NewDispatcher(bg, sender, logger, mt),
		Gateways:  gateways,

		UnverifiedMethods: cfg.Checkout.UnverifiedMethods,
		Currency:          cfg.Checkout.Currency,
		Log:               logger,
		Metrics:           mt,
	})

	limiter := rate.NewLimiter(cfg.Checkout.RateBurst, cfg.Checkout.RateExpiry, rate.Every(cfg.Checkout.RateInterval))
	defer limiter.Stop()

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:  cfg.Cors.Origin,
		Log:         logger,
		DB:          db,
		Session:     sessionManager,
		Checkout:    ck,
		Idempotency: keys,
		Limiter:     limiter,
		Metrics:     mt,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}

// buildGateways registers a payment gateway for every provider that has
// credentials configured.
func buildGateways(cfg config.Config) (map[string]payment.Gateway, error) {
	gws := make(map[string]payment.Gateway)

	if cfg.Stripe.APISecret != "" {
		gws[payment.MethodStripe] = payment.NewStripe(payment.NewStripeAPI(cfg.Stripe.APISecret, cfg.Stripe.URL))
	}

	if cfg.Paypal.ClientID != "" {
		pp, err := paypal.NewClient(cfg.Paypal.ClientID, cfg.Paypal.Secret, cfg.Paypal.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to build the paypal client: %w", err)
		}

		if _, err = pp.GetAccessToken(context.TODO()); err != nil {
			return nil, fmt.Errorf("failed to get the first paypal access token: %w", err)
		}
		gws[payment.MethodPaypal] = payment.NewPaypal(pp)
	}

	return gws, nil
}
