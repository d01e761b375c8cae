package test

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/lms/api/web"
)

// mockStripe answers PaymentIntent lookups for the intents a test marked as
// paid.
type mockStripe struct {
	mu   sync.Mutex
	paid map[string]int64
}

func newMockStripe() *mockStripe {
	return &mockStripe{paid: make(map[string]int64)}
}

func (m *mockStripe) pay(id string, cents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paid[id] = cents
}

func (m *mockStripe) handle() http.Handler {
	intent := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		m.mu.Lock()
		cents, ok := m.paid[id]
		m.mu.Unlock()

		if !ok {
			body := map[string]any{"error": map[string]any{"type": "invalid_request_error", "message": "No such payment_intent: " + id}}
			web.Respond(context.Background(), w, body, http.StatusNotFound)
			return
		}

		pi := map[string]any{
			"id":              id,
			"object":          "payment_intent",
			"status":          "succeeded",
			"currency":        "usd",
			"amount":          cents,
			"amount_received": cents,
		}
		web.Respond(context.Background(), w, pi, http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/v1/payment_intents/{id}", intent).Methods(http.MethodGet)
	return r
}
