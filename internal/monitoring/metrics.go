package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets created by issuance, per ticket type",
		},
		[]string{"ticket_type"},
	)

	purchaseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_purchases_total",
			Help: "Purchase attempts by outcome",
		},
		[]string{"outcome"},
	)

	checkinOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_checkins_total",
			Help: "Check-in attempts by outcome",
		},
		[]string{"outcome"},
	)

	scanTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_ticks_total",
			Help: "Scan loop ticks by result",
		},
		[]string{"result"},
	)

	scanSessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_sessions_ended_total",
			Help: "Scan sessions by termination status",
		},
		[]string{"status"},
	)

	decodeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qr_decode_request_duration_seconds",
			Help:    "Latency of external QR decode service calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		},
		[]string{"mode", "status"},
	)

	checkinCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkin_cache_entries",
			Help: "Ticket ids held in the check-in fast-path cache",
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

func TrackIssued(ticketType string, n int) {
	ticketsIssued.WithLabelValues(ticketType).Add(float64(n))
}

func TrackPurchase(outcome string) {
	purchaseOutcomes.WithLabelValues(outcome).Inc()
}

func TrackCheckin(outcome string) {
	checkinOutcomes.WithLabelValues(outcome).Inc()
}

func TrackScanTick(result string) {
	scanTicks.WithLabelValues(result).Inc()
}

func TrackScanSessionEnd(status string) {
	scanSessionsEnded.WithLabelValues(status).Inc()
}

func TrackDecode(mode, status string, d time.Duration) {
	decodeLatency.WithLabelValues(mode, status).Observe(d.Seconds())
}

// Monitor samples gauges that have no natural event to hook.
type Monitor struct {
	redis    *redis.Client
	cacheKey string
	interval time.Duration
}

func NewMonitor(redisClient *redis.Client, cacheKey string) *Monitor {
	return &Monitor{redis: redisClient, cacheKey: cacheKey, interval: 30 * time.Second}
}

// Run collects until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.collect(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	goroutineCount.Set(float64(runtime.NumGoroutine()))

	if m.redis == nil || m.cacheKey == "" {
		return
	}
	if n, err := m.redis.SCard(ctx, m.cacheKey).Result(); err == nil {
		checkinCacheSize.Set(float64(n))
	}
}
