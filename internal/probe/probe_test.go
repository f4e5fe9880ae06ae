package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestServer(status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
}

func TestProbeOK(t *testing.T) {
	srv := newTestServer(http.StatusOK)
	defer srv.Close()

	p := New("test-agent", 5*time.Second, zap.NewNop())
	assert.NoError(t, p.Probe(context.Background(), srv.URL))
}

func TestProbeToleratesBotWall(t *testing.T) {
	srv := newTestServer(http.StatusForbidden)
	defer srv.Close()

	p := New("test-agent", 5*time.Second, zap.NewNop())
	assert.NoError(t, p.Probe(context.Background(), srv.URL),
		"403 from a plain client is not proof the browser will fail")
}

func TestProbeReportsHardFailure(t *testing.T) {
	srv := newTestServer(http.StatusNotFound)
	defer srv.Close()

	p := New("test-agent", 5*time.Second, zap.NewNop())
	assert.Error(t, p.Probe(context.Background(), srv.URL))
}

func TestProbeUnreachableHost(t *testing.T) {
	srv := newTestServer(http.StatusOK)
	url := srv.URL
	srv.Close()

	p := New("test-agent", time.Second, zap.NewNop())
	assert.Error(t, p.Probe(context.Background(), url))
}

func TestProbeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New("test-agent", time.Second, zap.NewNop())
	assert.ErrorIs(t, p.Probe(ctx, "http://127.0.0.1:1"), context.Canceled)
}
