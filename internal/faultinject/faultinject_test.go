package faultinject

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	transport := New(nil)
	transport.Inject(Fault{Err: ErrInjected, Rate: 1})
	client := &http.Client{Transport: transport}

	_, err := client.Get(server.URL)
	require.Error(t, err)
	assert.Equal(t, 1, transport.Hits())
}

func TestInjectedStatus(t *testing.T) {
	transport := New(nil)
	transport.Inject(Fault{StatusCode: http.StatusServiceUnavailable, Rate: 1})
	client := &http.Client{Transport: transport}

	resp, err := client.Get("http://nowhere.invalid/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestInjectedLatencyRespectsContext(t *testing.T) {
	transport := New(nil)
	transport.Inject(Fault{Latency: time.Second, Rate: 1})
	client := &http.Client{Transport: transport, Timeout: 20 * time.Millisecond}

	start := time.Now()
	_, err := client.Get("http://nowhere.invalid/")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestZeroFaultPassesThrough(t *testing.T) {
	served := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
	}))
	defer server.Close()

	client := &http.Client{Transport: New(nil)}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 1, served)
}
