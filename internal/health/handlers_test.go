package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiosko-dev/backend-kiosko/internal/health"
)

type fakeChecker struct {
	dbErr    error
	redisErr error
}

func (f fakeChecker) PingDB(context.Context, time.Duration) error    { return f.dbErr }
func (f fakeChecker) PingRedis(context.Context, time.Duration) error { return f.redisErr }

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	health.Handler{}.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestReadyAllHealthy(t *testing.T) {
	h := health.Handler{Checker: fakeChecker{}}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"db":"ok"`)
}

func TestReadyReportsFailingDependency(t *testing.T) {
	h := health.Handler{Checker: fakeChecker{dbErr: errors.New("connection refused")}}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "connection refused")
	require.Contains(t, rec.Body.String(), `"redis":"ok"`)
}

func TestReadyWithoutChecker(t *testing.T) {
	rec := httptest.NewRecorder()
	health.Handler{}.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
