package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBearerTokenExtractsFromAuthorizationHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")

	token, ok := bearerToken(r)
	require.True(t, ok)
	require.Equal(t, "abc123", token)
}

func TestBearerTokenRejectsMissingOrMalformedHeader(t *testing.T) {
	cases := []string{"", "Basic abc123", "Bearer "}
	for _, header := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		_, ok := bearerToken(r)
		require.False(t, ok, "header %q should be rejected", header)
	}
}

func TestCorsPermissiveSetsHeadersAndShortCircuitsOptions(t *testing.T) {
	called := false
	handler := corsPermissive(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	handler.ServeHTTP(w, r)

	require.False(t, called)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
