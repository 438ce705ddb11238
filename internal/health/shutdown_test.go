package health_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/recurring-cart/internal/health"
)

func TestReadinessGateDrainsInstance(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })

	handler := health.Handler{Checker: stubChecker{}}
	probe := func() int {
		rec := httptest.NewRecorder()
		handler.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		return rec.Code
	}

	require.Equal(t, http.StatusOK, probe())

	health.SetReady(false)
	require.Equal(t, http.StatusServiceUnavailable, probe())

	health.SetReady(true)
	require.Equal(t, http.StatusOK, probe())
}
