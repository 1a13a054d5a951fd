package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func corsRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(origins))
	router.POST("/api/v1/documents/:id/compose", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestCORS(t *testing.T) {
	cases := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"preflight allowed", []string{"http://localhost:5173"}, http.MethodOptions, "http://localhost:5173", http.StatusNoContent, "http://localhost:5173"},
		{"post allowed", []string{"http://localhost:5173/"}, http.MethodPost, "http://localhost:5173", http.StatusOK, "http://localhost:5173"},
		{"unknown origin", []string{"http://localhost:5173"}, http.MethodPost, "http://evil.test", http.StatusOK, ""},
		{"preflight unknown origin", []string{"http://localhost:5173"}, http.MethodOptions, "http://evil.test", http.StatusNoContent, ""},
		{"wildcard", []string{"*"}, http.MethodPost, "https://app.example.com", http.StatusOK, "https://app.example.com"},
		{"no origin header", []string{"*"}, http.MethodPost, "", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/documents/123/compose", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			resp := httptest.NewRecorder()
			corsRouter(tc.origins...).ServeHTTP(resp, req)

			if resp.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.Code)
			}
			if got := resp.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
				t.Fatalf("expected Allow-Origin %q, got %q", tc.wantAllow, got)
			}
			if tc.wantAllow == "" {
				return
			}
			if resp.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Fatalf("expected credentials header")
			}
			if got := resp.Header().Get("Access-Control-Max-Age"); got != "600" {
				t.Fatalf("expected Max-Age 600, got %q", got)
			}
		})
	}
}
