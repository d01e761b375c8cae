// Command admin runs one-off maintenance tasks against the database:
//
//	admin migrate
//	admin ensure-admin
//	admin seed
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/lms/config"
	"github.com/irsalhamdi/lms/core/course"
	"github.com/irsalhamdi/lms/core/promo"
	"github.com/irsalhamdi/lms/core/user"
	"github.com/irsalhamdi/lms/database"
	"github.com/irsalhamdi/lms/validate"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(log *logrus.Logger) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var cfg config.Config
	help, err := conf.Parse("LMS", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cmd := cfg.Args.Num(0); cmd {
	case "migrate":
		if err := database.Migrate(cfg.DB); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil

	case "ensure-admin":
		return withDB(cfg.DB, func(db *sqlx.DB) error {
			return ensureAdmin(ctx, log, db, cfg.Admin)
		})

	case "seed":
		return withDB(cfg.DB, func(db *sqlx.DB) error {
			return seed(ctx, log, db)
		})

	default:
		return fmt.Errorf("unknown command %q, want one of migrate, ensure-admin, seed", cmd)
	}
}

func withDB(cfg config.DB, fn func(db *sqlx.DB) error) error {
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	return fn(db)
}

func ensureAdmin(ctx context.Context, log logrus.FieldLogger, db *sqlx.DB, cfg config.Admin) error {
	if cfg.Password == "" {
		return errors.New("admin password is required, set LMS_ADMIN_PASSWORD")
	}

	usr, created, err := user.EnsureAdmin(ctx, db, cfg.Name, cfg.Email, cfg.Password)
	if err != nil {
		return fmt.Errorf("ensuring admin: %w", err)
	}

	log.WithFields(logrus.Fields{
		"user_id": usr.ID,
		"email":   usr.Email,
		"created": created,
	}).Info("admin ready")
	return nil
}

// seed loads a small published catalog and a welcome promo code for local
// development.
func seed(ctx context.Context, log logrus.FieldLogger, db *sqlx.DB) error {
	now := time.Now().UTC()

	catalog := []struct {
		name  string
		price string
	}{
		{"Go Fundamentals", "49.90"},
		{"Concurrency in Practice", "79.00"},
		{"Intro to SQL", "0"},
	}

	for _, c := range catalog {
		crs := course.Course{
			ID:          validate.GenerateID(),
			Name:        c.name,
			Description: c.name,
			ImageURL:    "https://placehold.co/600x400",
			Price:       decimal.RequireFromString(c.price),
			Published:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
			Version:     1,
		}
		if err := course.Create(ctx, db, crs); err != nil {
			return err
		}
		log.WithField("course_id", crs.ID).Infof("seeded course %q", c.name)
	}

	p, err := promo.New(promo.PromoNew{
		Code:   "WELCOME10",
		Kind:   promo.Percent,
		Amount: decimal.NewFromInt(10),
	}, now)
	if err != nil {
		return err
	}

	switch err := promo.Create(ctx, db, p); {
	case errors.Is(err, promo.ErrCodeTaken):
		log.Infof("promo code %s already present", p.Code)
	case err != nil:
		return err
	default:
		log.Infof("seeded promo code %s", p.Code)
	}
	return nil
}
