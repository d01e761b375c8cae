// Package dbtest starts a throwaway PostgreSQL for store tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/irsalhamdi/lms/config"
	"github.com/irsalhamdi/lms/database"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/shopspring/decimal"
)

// New runs a migrated postgres container for the duration of the test. The
// test is skipped when no docker daemon is reachable.
func New(t *testing.T) (*sqlx.DB, config.DB) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=lms",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(res); err != nil {
			t.Logf("purging postgres container: %v", err)
		}
	})
	res.Expire(300)

	cfg := config.DB{
		User:         "postgres",
		Password:     "postgres",
		Host:         res.GetHostPort("5432/tcp"),
		Name:         "lms",
		MaxIdleConns: 2,
		MaxOpenConns: 20,
		DisableTLS:   true,
	}

	var db *sqlx.DB
	pool.MaxWait = time.Minute
	err = pool.Retry(func() error {
		var err error
		if db, err = database.Open(cfg); err != nil {
			return err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("waiting for postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(cfg); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	return db, cfg
}

// SeedUser inserts a USER account and returns its id.
func SeedUser(t *testing.T, db *sqlx.DB, email string) string {
	t.Helper()

	var id string
	const q = `
	INSERT INTO users (user_id, name, email, role, password_hash, active, created_at, updated_at)
	VALUES (gen_random_uuid(), $1, $2, 'USER', '\x00', true, now(), now())
	RETURNING user_id`

	if err := db.QueryRowContext(context.Background(), q, email, email).Scan(&id); err != nil {
		t.Fatalf("seeding user %s: %v", email, err)
	}
	return id
}

// SeedCourse inserts a course priced at price and returns its id.
func SeedCourse(t *testing.T, db *sqlx.DB, name string, price string, published bool) string {
	t.Helper()

	var id string
	const q = `
	INSERT INTO courses (course_id, name, description, image_url, price, published, created_at, updated_at, version)
	VALUES (gen_random_uuid(), $1, $1, 'https://img.test/' || $1, $2, $3, now(), now(), 1)
	RETURNING course_id`

	if err := db.QueryRowContext(context.Background(), q, name, decimal.RequireFromString(price), published).Scan(&id); err != nil {
		t.Fatalf("seeding course %s: %v", name, err)
	}
	return id
}

// SeedLesson inserts a lesson with a published version and returns its id.
func SeedLesson(t *testing.T, db *sqlx.DB, courseID string, index int) string {
	t.Helper()

	ctx := context.Background()

	var lessonID, versionID string
	const ql = `
	INSERT INTO lessons (lesson_id, course_id, index, title, created_at, updated_at)
	VALUES (gen_random_uuid(), $1, $2, 'lesson', now(), now())
	RETURNING lesson_id`

	if err := db.QueryRowContext(ctx, ql, courseID, index).Scan(&lessonID); err != nil {
		t.Fatalf("seeding lesson: %v", err)
	}

	const qv = `
	INSERT INTO lesson_versions (version_id, lesson_id, number, status, layout, created_at, published_at)
	VALUES (gen_random_uuid(), $1, 1, 'published', 'single', now(), now())
	RETURNING version_id`

	if err := db.QueryRowContext(ctx, qv, lessonID).Scan(&versionID); err != nil {
		t.Fatalf("seeding lesson version: %v", err)
	}

	if _, err := db.ExecContext(ctx, `UPDATE lessons SET published_version_id = $1 WHERE lesson_id = $2`, versionID, lessonID); err != nil {
		t.Fatalf("publishing seeded lesson: %v", err)
	}
	return lessonID
}

// Count returns the number of rows in table.
func Count(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()

	var n int
	if err := db.QueryRowContext(context.Background(), fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}
