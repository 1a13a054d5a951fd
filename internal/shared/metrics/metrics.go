package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esign_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esign_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	documentsUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esign_documents_uploaded_total",
		Help: "Documents uploaded.",
	})

	documentsRolledUp = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esign_documents_rolled_up_total",
		Help: "Documents flipped to signed after their last pending request resolved.",
	})

	requestsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esign_signature_requests_created_total",
		Help: "Signature requests created.",
	})

	requestTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esign_signature_transitions_total",
		Help: "Signature request transitions by resulting status and path.",
	}, []string{"status", "path"})

	publicLinks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esign_public_links_issued_total",
		Help: "Public signing links issued.",
	})

	notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esign_notifications_total",
		Help: "Signer notifications by outcome.",
	}, []string{"result"})

	composeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esign_compose_duration_seconds",
		Help:    "Time spent burning a signature mark into a PDF.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		documentsUploaded,
		documentsRolledUp,
		requestsCreated,
		requestTransitions,
		publicLinks,
		notifications,
		composeDuration,
	)
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// IncDocumentsUploaded increments the upload counter.
func IncDocumentsUploaded() { documentsUploaded.Inc() }

// IncDocumentsRolledUp increments the rollup counter.
func IncDocumentsRolledUp() { documentsRolledUp.Inc() }

// IncRequestsCreated increments the request-created counter.
func IncRequestsCreated() { requestsCreated.Inc() }

// IncTransition counts a signature request leaving pending.
func IncTransition(status, path string) {
	requestTransitions.WithLabelValues(status, path).Inc()
}

// IncPublicLinks increments the public-link counter.
func IncPublicLinks() { publicLinks.Inc() }

// IncNotification counts a notification outcome (enqueued, failed, delivered).
func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

// ObserveCompose records a compose duration for the given mark kind.
func ObserveCompose(kind string, elapsed time.Duration) {
	composeDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
