package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/irsalhamdi/lms/api/background"
	"github.com/irsalhamdi/lms/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	got  []Receipt
	fail error
}

func (f *fakeSender) Send(ctx context.Context, r Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, r)
	return f.fail
}

func receipt() Receipt {
	return Receipt{
		InvoiceID:     "inv-1",
		InvoiceNumber: "INV-20260101-ABCDEFGH",
		UserID:        "user-1",
		TotalAmount:   decimal.RequireFromString("10"),
		Currency:      "USD",
		CourseIDs:     []string{"c1"},
	}
}

func TestDispatcherDelivers(t *testing.T) {
	log, _ := test.NewNullLogger()
	bg := background.New(log)
	snd := &fakeSender{}

	d := NewDispatcher(bg, snd, log, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Notify(ctx, receipt()))
	cancel()

	require.NoError(t, bg.Shutdown(context.Background()))
	require.Len(t, snd.got, 1)
	assert.Equal(t, "inv-1", snd.got[0].InvoiceID)
}

func TestDispatcherLogsFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	bg := background.New(log)
	mt := metrics.New(prometheus.NewRegistry())
	snd := &fakeSender{fail: errors.New("broker down")}

	d := NewDispatcher(bg, snd, log, mt)
	require.NoError(t, d.Notify(context.Background(), receipt()))
	require.NoError(t, bg.Shutdown(context.Background()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "INV-20260101-ABCDEFGH", entry.Data["invoice"])
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.PostCommitFailures("receipt")))
}

func TestDispatcherAfterShutdown(t *testing.T) {
	log, _ := test.NewNullLogger()
	bg := background.New(log)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bg.Shutdown(ctx))

	d := NewDispatcher(bg, &fakeSender{}, log, nil)
	assert.ErrorIs(t, d.Notify(context.Background(), receipt()), background.ErrShuttingDown)
}

func TestLogSender(t *testing.T) {
	log, hook := test.NewNullLogger()

	require.NoError(t, NewLog(log).Send(context.Background(), receipt()))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "10.00", hook.LastEntry().Data["total"])
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092"))
	assert.Empty(t, ParseBrokers(""))
}
