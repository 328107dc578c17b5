package recovery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kafadas/kinjo/internal/api/respond"
	"github.com/kafadas/kinjo/internal/metrics"
)

func TestMiddleware_PanicBecomesJSON500(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := mux.NewRouter()
	r.Use(New(m))
	r.HandleFunc("/api/moments/{momentId}", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}).Methods("DELETE")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("DELETE", "/api/moments/m-123", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body respond.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 500, body.Code)
	assert.Equal(t, "unexpected error", body.Message)

	exp := httptest.NewRecorder()
	m.Handler().ServeHTTP(exp, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, exp.Body.String(), `kinjo_http_panics_total{route="/api/moments/{momentId}"} 1`)
}

func TestMiddleware_PassThrough(t *testing.T) {
	r := mux.NewRouter()
	r.Use(New(nil))
	r.HandleFunc("/api/reflections/{period}/regenerate", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods("POST")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/api/reflections/7d/regenerate", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestMiddleware_AbortHandlerPropagates(t *testing.T) {
	h := New(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/streak", nil))
	})
}
