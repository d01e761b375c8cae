package config

import (
	"time"

	"github.com/ardanlabs/conf/v3"
)

type Config struct {
	conf.Version
	Args     conf.Args
	Web      Web
	DB       DB
	Cors     Cors
	Session  Session
	Checkout Checkout
	Redis    Redis
	Kafka    Kafka
	Stripe   Stripe
	Paypal   Paypal
	Admin    Admin
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:lms"`
	MaxIdleConns int    `conf:"default:5"`
	MaxOpenConns int    `conf:"default:25"`
	DisableTLS   bool   `conf:"default:true"`
}

type Cors struct {
	Origin string
}

type Session struct {
	Lifetime time.Duration `conf:"default:24h"`
}

type Checkout struct {
	Currency       string        `conf:"default:USD"`
	RateBurst      int           `conf:"default:5"`
	RateInterval   time.Duration `conf:"default:2s"`
	RateExpiry     time.Duration `conf:"default:10m"`
	IdempotencyTTL time.Duration `conf:"default:24h"`
	// UnverifiedMethods lists payment methods, separated by ';', accepted
	// without gateway confirmation when a gateway is configured.
	UnverifiedMethods []string
}

// Redis is optional: an empty address keeps idempotency keys in process.
type Redis struct {
	Address  string
	Password string `conf:"mask"`
	DB       int    `conf:"default:0"`
}

// Kafka is optional: without brokers receipts are only logged.
type Kafka struct {
	Brokers      string
	ReceiptTopic string `conf:"default:lms.receipts"`
}

type Stripe struct {
	APISecret string `conf:"mask"`
	URL       string
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api-m.sandbox.paypal.com"`
}

type Admin struct {
	Name     string `conf:"default:Administrator"`
	Email    string `conf:"default:admin@lms.local"`
	Password string `conf:"mask"`
}
