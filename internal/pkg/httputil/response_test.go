package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"n": 1})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())
}

func TestFail_CarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-7"))
	rec := httptest.NewRecorder()

	Fail(rec, req, http.StatusConflict, "race_lost", "try again")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ErrorBody{Error: "try again", Code: "race_lost", RequestID: "req-7"}, decodeBody(t, rec))
}

func TestFail_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusUnauthorized, CodeUnauthorized, "no")
	assert.JSONEq(t, `{"error":"no","code":"unauthorized"}`, rec.Body.String())
}

func TestInternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	Internal(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Equal(t, CodeInternal, decodeBody(t, rec).Code)
}

func TestDecode(t *testing.T) {
	var dst struct {
		Days int `json:"days"`
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"days":30}`))
	assert.True(t, Decode(rec, req, &dst))
	assert.Equal(t, 30, dst.Days)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"days":`))
	assert.False(t, Decode(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidJSON, decodeBody(t, rec).Code)
}

func TestDecode_BodyTooLarge(t *testing.T) {
	var dst map[string]string
	big := `{"k":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rec := httptest.NewRecorder()
	assert.False(t, Decode(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big)), &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
