package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	UsersCreated    prometheus.Counter
	PostsCreated    prometheus.Counter
	CommentsCreated prometheus.Counter
	RequestDuration *prometheus.HistogramVec
	DBPingDuration  prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "classhub_users_created_total",
			Help: "Total number of users created in the system",
		}),
		PostsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "classhub_posts_created_total",
			Help: "Total number of posts created in the system",
		}),
		CommentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "classhub_comments_created_total",
			Help: "Total number of comments created in the system",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classhub_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		DBPingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "classhub_db_ping_duration_seconds",
			Help:    "Latency of database health-check pings",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

// ObserveDBPing records one health-check ping duration.
func (m *Metrics) ObserveDBPing(d time.Duration) {
	if m == nil {
		return
	}
	m.DBPingDuration.Observe(d.Seconds())
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
}

// IncrementUsersCreated increments the users created counter by 1.
func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

// IncrementPostsCreated increments the posts created counter by 1.
func (m *Metrics) IncrementPostsCreated() {
	if m == nil {
		return
	}
	m.PostsCreated.Inc()
}

// IncrementCommentsCreated increments the comments created counter by 1.
func (m *Metrics) IncrementCommentsCreated() {
	if m == nil {
		return
	}
	m.CommentsCreated.Inc()
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
