package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/lms/api/middleware"
	"github.com/irsalhamdi/lms/api/web"
	"github.com/irsalhamdi/lms/api/weberr"
	"github.com/irsalhamdi/lms/core/auth"
	"github.com/irsalhamdi/lms/core/cart"
	"github.com/irsalhamdi/lms/core/checkout"
	"github.com/irsalhamdi/lms/core/course"
	"github.com/irsalhamdi/lms/core/enrollment"
	"github.com/irsalhamdi/lms/core/lesson"
	"github.com/irsalhamdi/lms/core/promo"
	"github.com/irsalhamdi/lms/core/user"
	"github.com/irsalhamdi/lms/database"
	"github.com/irsalhamdi/lms/idempotency"
	"github.com/irsalhamdi/lms/metrics"
	"github.com/irsalhamdi/lms/rate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin  string
	Log         logrus.FieldLogger
	DB          *sqlx.DB
	Session     *scs.SessionManager
	Checkout    *checkout.Checkout
	Idempotency idempotency.Store
	Limiter     *rate.Limiter
	Metrics     *metrics.Metrics
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Metrics(cfg.Metrics))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)
	ident := auth.Identify(cfg.Session)

	var limit web.Middleware
	if cfg.Limiter != nil {
		limit = middleware.RateLimit(cfg.Limiter)
	}

	a.Handle(http.MethodGet, "/health", handleHealth(cfg.DB))
	if cfg.Metrics != nil {
		a.Router.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/{id}", user.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPost, "/users", user.HandleCreate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/courses/owned", course.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/courses/{course_id}/lessons", lesson.HandleOutline(cfg.DB), ident)
	a.Handle(http.MethodPost, "/courses/{course_id}/lessons", lesson.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPost, "/courses/{course_id}/sections", lesson.HandleCreateSection(cfg.DB), admin)
	a.Handle(http.MethodPost, "/courses/{id}/enroll", enrollment.HandleEnrollFree(cfg.DB), authen)
	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB), ident)
	a.Handle(http.MethodGet, "/courses", course.HandleList(cfg.DB), ident)
	a.Handle(http.MethodPost, "/courses", course.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/courses/{id}", course.HandleUpdate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/lessons/{id}", lesson.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPut, "/lessons/{id}/draft", lesson.HandleSaveDraft(cfg.DB), admin)
	a.Handle(http.MethodPost, "/lessons/{id}/publish", lesson.HandlePublish(cfg.DB), admin)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart", cart.HandleClear(cfg.DB), authen)
	a.Handle(http.MethodPost, "/cart/items", cart.HandleAddItem(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart/items/{course_id}", cart.HandleRemoveItem(cfg.DB), authen)
	a.Handle(http.MethodPost, "/cart/sync", cart.HandleSync(cfg.DB), authen)

	a.Handle(http.MethodPost, "/promo-codes", promo.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodGet, "/promo-codes", promo.HandleList(cfg.DB), admin)

	a.Handle(http.MethodGet, "/checkout/summary", checkout.HandleSummary(cfg.Checkout), authen)
	a.Handle(http.MethodPost, "/checkout/complete", checkout.HandleComplete(cfg.Checkout, cfg.Idempotency, cfg.Log), authen, limit)
	a.Handle(http.MethodGet, "/checkout/invoices", checkout.HandleListInvoices(cfg.Checkout), authen)
	a.Handle(http.MethodGet, "/checkout/invoices/{id}", checkout.HandleShowInvoice(cfg.Checkout), authen)

	a.Handle(http.MethodGet, "/enrollments", enrollment.HandleList(cfg.DB), authen)
	a.Handle(http.MethodGet, "/enrollments/courses/{course_id}", enrollment.HandleProgress(cfg.DB), authen)
	a.Handle(http.MethodPut, "/enrollments/courses/{course_id}/lessons/{lesson_id}/complete", enrollment.HandleCompleteLesson(cfg.DB), authen)
	a.Handle(http.MethodPut, "/enrollments/{id}/certificate", enrollment.HandleIssueCertificate(cfg.DB), admin)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}

func handleHealth(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		if err := database.StatusCheck(ctx, db); err != nil {
			return weberr.NewError(err, "database not ready", http.StatusServiceUnavailable)
		}

		return web.Respond(ctx, w, struct {
			Status string `json:"status"`
		}{"ok"}, http.StatusOK)
	}
}
