package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Warbler collectors. Each instance registers on its own registry.
type Metrics struct {
	Signups          prometheus.Counter
	MessagesCreated  prometheus.Counter
	MessagesDeleted  prometheus.Counter
	Follows          prometheus.Counter
	Unfollows        prometheus.Counter
	LikeToggles      *prometheus.CounterVec
	AccessDenied     *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		Signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warbler_signups_total",
			Help: "Total number of successful signups",
		}),
		MessagesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warbler_messages_created_total",
			Help: "Total number of messages posted",
		}),
		MessagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warbler_messages_deleted_total",
			Help: "Total number of messages deleted by their author",
		}),
		Follows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warbler_follows_total",
			Help: "Total number of successful follow requests",
		}),
		Unfollows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warbler_unfollows_total",
			Help: "Total number of successful unfollow requests",
		}),
		LikeToggles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warbler_like_toggles_total",
				Help: "Total number of like toggles by outcome",
			},
			[]string{"action"},
		),
		AccessDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warbler_access_denied_total",
				Help: "Total number of requests refused by the authorization gate",
			},
			[]string{"route"},
		),
		RequestDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warbler_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Signups,
		m.MessagesCreated,
		m.MessagesDeleted,
		m.Follows,
		m.Unfollows,
		m.LikeToggles,
		m.AccessDenied,
		m.RequestDurations,
		prometheus.NewGoCollector(),
	)

	return m
}

// Registry exposes the registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
