package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestCountersIncrement(t *testing.T) {
	before := counterValue(t, documentsRolledUp)
	IncDocumentsRolledUp()
	if got := counterValue(t, documentsRolledUp); got != before+1 {
		t.Fatalf("expected rollup counter to increase by 1, got %v -> %v", before, got)
	}

	IncTransition("signed", "public")
	if got := counterValue(t, requestTransitions.WithLabelValues("signed", "public")); got < 1 {
		t.Fatalf("expected transition counter, got %v", got)
	}
}

func TestHandlerRendersRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ObserveHTTP(http.MethodGet, "/health", http.StatusOK, 5*time.Millisecond)

	r := gin.New()
	r.GET("/metrics", Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `esign_http_requests_total{method="GET",route="/health",status="200"}`) {
		t.Fatalf("expected http counter in output:\n%s", w.Body.String())
	}
}
