package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	chatService "github.com/zhouzirui/philo-chat/backend/internal/service/chat"
)

// Recorder collects operation outcomes. It implements chat.Observer.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	completion *prometheus.HistogramVec
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "philochat_operations_total",
			Help: "Session operations by outcome.",
		}, []string{"op", "status"}),
		completion: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "philochat_completion_seconds",
			Help:    "Latency of completion turns, including the model call.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		}, []string{"status"}),
	}
	r.registry.MustRegister(r.operations, r.completion)
	return r
}

// ObserveOperation records one session operation.
func (r *Recorder) ObserveOperation(op string, status chatService.Status, elapsed time.Duration) {
	r.operations.WithLabelValues(op, status.String()).Inc()
	if op == "complete_chat" {
		r.completion.WithLabelValues(status.String()).Observe(elapsed.Seconds())
	}
}

// TrackSeats exposes the number of open seats as a gauge.
func (r *Recorder) TrackSeats(seats *chatService.Seats) {
	r.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "philochat_active_seats",
		Help: "Open client seats.",
	}, func() float64 { return float64(seats.Len()) }))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
