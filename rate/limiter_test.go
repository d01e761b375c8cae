package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	burst := 1

	interval := 10 * time.Millisecond
	lim := Every(interval)
	r := NewLimiter(burst, time.Hour, lim)
	defer r.Stop()

	tooshort := 1 * time.Millisecond

	account := "6b1f0a53-3f0c-4a55-9a71-1f1d6f2b3c11"
	expected := []bool{true, false, true, true, false, false}
	waits := []time.Duration{tooshort, interval, interval, tooshort, tooshort, tooshort}
	for i, exp := range expected {
		if got := r.Allow(account); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterWithBurst(t *testing.T) {
	account := "6b1f0a53-3f0c-4a55-9a71-1f1d6f2b3c11"
	burst := 10

	interval := 100 * time.Millisecond
	lim := Every(interval)

	tooshort := 10 * time.Millisecond

	shortest := 1 * time.Millisecond

	expected := []bool{true, true, true, true, true, true, true, true, true, true}
	waits := []time.Duration{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	expected = append(expected, false, true, true, false, false, false)
	waits = append(waits, interval, interval, tooshort, tooshort, shortest, shortest)

	rr := NewLimiter(burst, time.Hour, lim)
	defer rr.Stop()
	for i, exp := range expected {
		if got := rr.Allow(account); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	r := NewLimiter(1, time.Hour, Every(time.Hour))
	defer r.Stop()

	if !r.Allow("a") {
		t.Fatal("first call for a must pass")
	}
	if r.Allow("a") {
		t.Fatal("second call for a must be throttled")
	}
	if !r.Allow("b") {
		t.Fatal("b must not share a's bucket")
	}
}
