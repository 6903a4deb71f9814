package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_http_requests_total",
			Help: "Total number of HTTP requests processed by the messaging service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "messaging_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsActiveRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "messaging_ws_active_rooms",
			Help: "Number of rooms with at least one joined connection.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	wsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_ws_dropped_frames_total",
			Help: "Outbound frames dropped because a connection's send buffer was full.",
		},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_messages_sent_total",
			Help: "Messages persisted by the pipeline.",
		},
		[]string{"kind", "exempt"},
	)
	pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "messaging_pipeline_duration_seconds",
			Help:    "Time from accepting a send to broadcasting it.",
			Buckets: prometheus.DefBuckets,
		},
	)
	coinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_ledger_coins_total",
			Help: "Coins moved through the ledger.",
		},
		[]string{"direction"},
	)
	insufficientFundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_ledger_insufficient_funds_total",
			Help: "Debits rejected for insufficient funds.",
		},
	)
	refundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_ledger_refunds_total",
			Help: "Refunds issued after a failed message persist.",
		},
	)
	boostsActivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_boosts_activated_total",
			Help: "Boost purchases.",
		},
	)
	vipLevelUpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_vip_level_ups_total",
			Help: "VIP level increases by new level.",
		},
		[]string{"level"},
	)
	activityDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_activity_dropped_total",
			Help: "Activity records not fanned out because the queue was full.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsActiveRooms,
		wsEventsTotal,
		wsDroppedTotal,
		messagesSentTotal,
		pipelineDuration,
		coinsTotal,
		insufficientFundsTotal,
		refundsTotal,
		boostsActivatedTotal,
		vipLevelUpsTotal,
		activityDroppedTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() { wsActiveConnections.Inc() }
func DecWSActive() { wsActiveConnections.Dec() }

func SetActiveRooms(n int) { wsActiveRooms.Set(float64(n)) }

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncWSDropped() { wsDroppedTotal.Inc() }

func ObserveMessageSent(kind string, exempt bool, started time.Time) {
	messagesSentTotal.WithLabelValues(kind, strconv.FormatBool(exempt)).Inc()
	pipelineDuration.Observe(time.Since(started).Seconds())
}

// AddCoins records a balance movement; negative amounts count as debits.
func AddCoins(amount int64) {
	switch {
	case amount < 0:
		coinsTotal.WithLabelValues("debit").Add(float64(-amount))
	case amount > 0:
		coinsTotal.WithLabelValues("credit").Add(float64(amount))
	}
}

func IncInsufficientFunds() { insufficientFundsTotal.Inc() }
func IncRefund()            { refundsTotal.Inc() }
func IncBoostActivated()    { boostsActivatedTotal.Inc() }

func IncVipLevelUp(level int) {
	vipLevelUpsTotal.WithLabelValues(strconv.Itoa(level)).Inc()
}

func IncActivityDropped() { activityDroppedTotal.Inc() }

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
