package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/lms/api"
	"github.com/irsalhamdi/lms/api/background"
	"github.com/irsalhamdi/lms/core/checkout"
	"github.com/irsalhamdi/lms/core/claims"
	"github.com/irsalhamdi/lms/core/user"
	"github.com/irsalhamdi/lms/database/dbtest"
	"github.com/irsalhamdi/lms/idempotency"
	"github.com/irsalhamdi/lms/metrics"
	"github.com/irsalhamdi/lms/notify"
	"github.com/irsalhamdi/lms/payment"
	"github.com/irsalhamdi/lms/rate"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type TestEnv struct {
	*httptest.Server
	DB         *sqlx.DB
	Stripe     *mockStripe
	AdminEmail string
	AdminPass  string
	UserEmail  string
	UserPass   string
	OtherEmail string
	OtherPass  string
}

// NewTestEnv serves the whole API over a migrated database, with Stripe
// answered by a local mock.
func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	db, _ := dbtest.New(t)
	ctx := context.Background()

	log := logrus.New()
	log.SetOutput(io.Discard)
	lg := log.WithField("test", name)

	env := &TestEnv{
		DB:         db,
		Stripe:     newMockStripe(),
		AdminEmail: "admin@example.com",
		AdminPass:  "admin-secret",
		UserEmail:  "user@example.com",
		UserPass:   "user-secret",
		OtherEmail: "other@example.com",
		OtherPass:  "other-secret",
	}

	if _, _, err := user.EnsureAdmin(ctx, db, "Admin", env.AdminEmail, env.AdminPass); err != nil {
		return nil, fmt.Errorf("creating admin: %w", err)
	}

	for _, u := range []struct{ email, pass string }{
		{env.UserEmail, env.UserPass},
		{env.OtherEmail, env.OtherPass},
	} {
		usr, err := user.New(user.UserNew{
			Name:            u.email,
			Email:           u.email,
			Role:            claims.RoleUser,
			Password:        u.pass,
			PasswordConfirm: u.pass,
		}, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if err := user.Create(ctx, db, usr); err != nil {
			return nil, fmt.Errorf("creating user %s: %w", u.email, err)
		}
	}

	stripeSrv := httptest.NewServer(env.Stripe.handle())
	t.Cleanup(stripeSrv.Close)

	bg := background.New(lg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		bg.Shutdown(ctx)
	})

	mt := metrics.New(prometheus.NewRegistry())
	store := checkout.NewStore(db)
	ck := checkout.New(checkout.Config{
		Catalog:   store,
		Ownership: store,
		Promos:    store,
		Ledger:    store,
		Records:   store,
		Cart:      store,
		Notifier:  notify.NewDispatcher(bg, notify.NewLog(lg), lg, mt),
		Gateways: map[string]payment.Gateway{
			payment.MethodStripe: payment.NewStripe(payment.NewStripeAPI("sk_test_123", stripeSrv.URL)),
		},
		UnverifiedMethods: []string{"card"},
		Currency:          "USD",
		Log:               lg,
		Metrics:           mt,
	})

	limiter := rate.NewLimiter(100, time.Minute, 100)
	t.Cleanup(limiter.Stop)

	mux := api.APIMux(api.APIConfig{
		Log:         lg,
		DB:          db,
		Session:     scs.New(),
		Checkout:    ck,
		Idempotency: idempotency.NewMemory(time.Hour),
		Limiter:     limiter,
		Metrics:     mt,
	})

	env.Server = httptest.NewServer(mux)
	t.Cleanup(env.Server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	env.Server.Client().Jar = jar

	return env, nil
}

func Login(srv *httptest.Server, email, pass string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": pass})
	if err != nil {
		return err
	}

	w, err := srv.Client().Post(srv.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		return fmt.Errorf("can't login as %s: status code %s", email, w.Status)
	}
	return nil
}

func Logout(srv *httptest.Server) error {
	w, err := srv.Client().Post(srv.URL+"/auth/logout", "application/json", nil)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		return fmt.Errorf("can't logout: status code %s", w.Status)
	}
	return nil
}

// request builds a JSON request against the test server.
func (e *TestEnv) request(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}

	r, err := http.NewRequest(method, e.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")
	return r
}

// send runs r, fails the test unless the status is want and decodes the
// body into out when given.
func (e *TestEnv) send(t *testing.T, r *http.Request, want int, out any) *http.Response {
	t.Helper()

	w, err := e.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	b, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != want {
		t.Fatalf("%s %s: status code %s, want %d: %s", r.Method, r.URL.Path, w.Status, want, b)
	}

	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("decoding %s %s: %v", r.Method, r.URL.Path, err)
		}
	}
	return w
}

func (e *TestEnv) do(t *testing.T, method, path string, body any, want int, out any) {
	t.Helper()
	e.send(t, e.request(t, method, path, body), want, out)
}

func (e *TestEnv) as(t *testing.T, email, pass string) {
	t.Helper()
	if err := Login(e.Server, email, pass); err != nil {
		t.Fatal(err)
	}
}

func (e *TestEnv) logout(t *testing.T) {
	t.Helper()
	if err := Logout(e.Server); err != nil {
		t.Fatal(err)
	}
}
