package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lobbyd/internal/testutil"
)

func panicking(v any) http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(v)
	})
}

func TestRecoveryWritesPanicResponse(t *testing.T) {
	logger, logs := testutil.CaptureLogger()
	h := Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		w.WriteHeader(http.StatusInternalServerError)
	})(panicking("boom"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), `"msg":"handler panicked"`)
	assert.Contains(t, logs.String(), `"panic":"boom"`)
}

func TestRecoveryReraisesAbort(t *testing.T) {
	called := false
	h := Recovery(testutil.NopLogger(), func(http.ResponseWriter, *http.Request, any) {
		called = true
	})(panicking(http.ErrAbortHandler))

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.False(t, called)
}

func TestRecoveryLeavesUpgradesAlone(t *testing.T) {
	called := false
	h := Recovery(testutil.NopLogger(), func(http.ResponseWriter, *http.Request, any) {
		called = true
	})(panicking("boom"))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.False(t, called)
}

func TestLoggingLevels(t *testing.T) {
	logger, logs := testutil.CaptureLogger()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	h := Logging(logger, "/metrics")(ok)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, logs.String(), `"level":"DEBUG"`)
	assert.Contains(t, logs.String(), `"size":2`)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil))
	assert.Contains(t, logs.String(), `"level":"INFO","msg":"http request","method":"GET","path":"/api/v1/rooms"`)
}
