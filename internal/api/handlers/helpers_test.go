package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"promptforge/internal/core"
	"promptforge/internal/types"
)

// testLogger discards output; handler logs are not under test.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator(testLogger())
}

// testActor is the default authenticated caller used across handler tests.
var testActor = types.Actor{
	UserID: "user_test",
	Plan:   types.PlanFree,
	Email:  "test@example.com",
}

// serve routes the request through a chi mux with the handler's routes
// mounted, with the actor injected the way the auth middleware would.
func serve(t *testing.T, register func(chi.Router), req *http.Request, actor *types.Actor) *httptest.ResponseRecorder {
	t.Helper()

	if actor != nil {
		req = req.WithContext(types.WithActor(req.Context(), *actor))
	}

	r := chi.NewRouter()
	register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the data envelope of a successful response into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

// errorCode extracts the error code of a failed response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}
