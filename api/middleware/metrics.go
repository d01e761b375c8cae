package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/lms/api/web"
	"github.com/irsalhamdi/lms/metrics"
	"github.com/zenazn/goji/web/mutil"
)

func Metrics(mt *metrics.Metrics) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			route := r.URL.Path
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, err := cr.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			start := time.Now()
			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			status := lw.Status()
			if status == 0 {
				status = http.StatusOK
			}
			mt.ObserveRequest(route, r.Method, strconv.Itoa(status), time.Since(start))
			return err
		}
		return h
	}
	return m
}
