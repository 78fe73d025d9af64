// Package faultinject provides an http.RoundTripper that injects latency,
// transport errors, and fixed status codes into outbound requests. It backs
// the degradation tests for the cross-service paths: the fail-open loan check
// and the borrow flow's conflict handling.
package faultinject

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// ErrInjected is the transport error produced by a failure fault.
var ErrInjected = errors.New("injected transport failure")

// Fault describes what to inject. Rate is the probability in [0, 1] that a
// given request is hit.
type Fault struct {
	Latency    time.Duration
	Err        error
	StatusCode int
	Rate       float64
}

// Transport wraps a RoundTripper and applies the configured fault.
type Transport struct {
	next http.RoundTripper
	rng  *rand.Rand

	mu    sync.Mutex
	fault Fault
	hits  int
}

func New(next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{
		next: next,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Inject replaces the active fault. A zero Fault disables injection.
func (t *Transport) Inject(f Fault) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fault = f
	t.hits = 0
}

// Hits reports how many requests the active fault has affected.
func (t *Transport) Hits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hits
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	fault := t.fault
	apply := fault.Rate >= 1 || (fault.Rate > 0 && t.rng.Float64() < fault.Rate)
	if apply {
		t.hits++
	}
	t.mu.Unlock()

	if !apply {
		return t.next.RoundTrip(req)
	}

	if fault.Latency > 0 {
		select {
		case <-time.After(fault.Latency):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	if fault.Err != nil {
		return nil, fault.Err
	}
	if fault.StatusCode != 0 {
		return &http.Response{
			StatusCode: fault.StatusCode,
			Status:     http.StatusText(fault.StatusCode),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"error":"injected fault"}`))),
			Request:    req,
		}, nil
	}
	return t.next.RoundTrip(req)
}
