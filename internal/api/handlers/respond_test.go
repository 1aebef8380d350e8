package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hugh/turnout-tracker/internal/api/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		ok     bool
		status int
	}{
		{"valid", `{"email":"a@example.com","password":"x"}`, true, http.StatusOK},
		{"empty body", ``, false, http.StatusBadRequest},
		{"malformed", `{"email":`, false, http.StatusBadRequest},
		{"too large", `{"email":"` + strings.Repeat("a", maxJSONBody) + `"}`, false, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var v dto.LoginRequest
			ok := decodeJSON(rec, req, &v)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, "a@example.com", v.Email)
				return
			}

			assert.Equal(t, tt.status, rec.Code)
			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, dto.KindValidation, body.Kind)
		})
	}
}

func TestFormFile_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/voters/import", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	_, _, ok := formFile(rec, req, 1<<20)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	writeValidation(rec, map[string]string{"email": "Email is required"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Email is required", body.Details["email"])
}
